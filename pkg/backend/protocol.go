package backend

import (
	"context"

	"rdawcore/pkg/document"
	"rdawcore/pkg/rpcproto"
	"rdawcore/pkg/tempo"
	"rdawcore/pkg/track"
)

// RequestKind tags the single request union this engine's RPC surface
// carries (spec §4.B "a protocol is a triple (Req, Res, Event) of tagged-
// union types"). Req itself (the Request struct below) plays the role of
// the original's enum-of-structs; Go has no sum type, so unused fields for
// a given Kind are simply left zero, the same flattening rpcproto.ServerMessage
// already uses for Response/Event/Error.
type RequestKind int

const (
	ReqCreateTrack RequestKind = iota
	ReqListTracks
	ReqGetTrackName
	ReqSetTrackName
	ReqAppendChild
	ReqInsertChild
	ReqRemoveChild
	ReqMoveTrack
	ReqGetTrackHierarchy
	ReqAddItem
	ReqGetItem
	ReqRemoveItem
	ReqMoveItem
	ReqResizeItem
	ReqCreateArrangement
	ReqGetArrangement
	ReqSetArrangementTempo
	ReqSubscribeTrack
	ReqUnsubscribeTrack
	ReqSaveDocument
	ReqCreateExternalAsset
	ReqCreateEmbeddedAsset
	ReqImportAudioSource
	ReqCreateAudioItem
	ReqExportEmbeddedAsset
)

// Request is the tagged union of every operation this backend serves.
type Request struct {
	Kind RequestKind

	TrackId   track.Id
	Parent    track.Id
	Child     track.Id
	Index     int
	NewParent track.Id
	NewIndex  int

	Name string

	ItemId   track.ItemId
	Item     track.TrackItem
	NewStart tempo.Time
	NewDur   tempo.Time

	ArrangementId ArrangementId
	BPM           float32

	Stream rpcproto.StreamId

	Revision document.Revision

	AssetPath      string
	AssetHash      [32]byte
	AssetSize      uint64
	AssetData      []byte
	AssetId        AssetId
	AudioSourceId  AudioSourceId
	Channels       int
	SampleRate     uint32
	Format         string
	SourceDuration tempo.RealTime
	ExportName     string
	ExportDir      string
}

// Response is the tagged union of every successful result this backend
// returns, mirroring Request's flattening approach.
type Response struct {
	TrackId       track.Id
	TrackIds      []track.Id
	Name          string
	ItemId        track.ItemId
	Item          track.TrackItem
	Hierarchy     *track.Hierarchy
	ArrangementId ArrangementId
	Arrangement   Arrangement
	Stream        rpcproto.StreamId
	AssetId       AssetId
	AudioSourceId AudioSourceId
	AudioItemId   AudioItemId
	ExportPath    string
}

// Handle dispatches one decoded Request, the function a rpc.Server wraps as
// its HandlerFunc (spec §4.B "a handler reads a Request, dispatches on the
// payload's variant, invokes the corresponding method").
func (b *Backend) Handle(_ context.Context, req Request) (Response, *rpcproto.Error) {
	switch req.Kind {
	case ReqCreateTrack:
		return Response{TrackId: b.CreateTrack()}, nil

	case ReqListTracks:
		return Response{TrackIds: b.ListTracks()}, nil

	case ReqGetTrackName:
		name, err := b.GetTrackName(req.TrackId)
		if err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{Name: name}, nil

	case ReqSetTrackName:
		if err := b.SetTrackName(req.TrackId, req.Name); err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{}, nil

	case ReqAppendChild:
		if err := b.AppendChild(req.Parent, req.Child); err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{}, nil

	case ReqInsertChild:
		if err := b.InsertChild(req.Parent, req.Child, req.Index); err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{}, nil

	case ReqRemoveChild:
		if err := b.RemoveChild(req.Parent, req.Index); err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{}, nil

	case ReqMoveTrack:
		if err := b.MoveTrack(req.Parent, req.Index, req.NewParent, req.NewIndex); err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{}, nil

	case ReqGetTrackHierarchy:
		h, err := b.GetTrackHierarchy(req.TrackId)
		if err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{Hierarchy: h}, nil

	case ReqAddItem:
		id, err := b.AddItem(req.TrackId, req.Item)
		if err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{ItemId: id}, nil

	case ReqGetItem:
		item, err := b.GetItem(req.TrackId, req.ItemId)
		if err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{Item: item}, nil

	case ReqRemoveItem:
		if err := b.RemoveItem(req.TrackId, req.ItemId); err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{}, nil

	case ReqMoveItem:
		if err := b.MoveItem(req.TrackId, req.ItemId, req.NewStart); err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{}, nil

	case ReqResizeItem:
		if err := b.ResizeItem(req.TrackId, req.ItemId, req.NewDur); err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{}, nil

	case ReqCreateArrangement:
		id := b.CreateArrangement(req.Name, req.BPM)
		return Response{ArrangementId: id}, nil

	case ReqGetArrangement:
		a, err := b.GetArrangement(req.ArrangementId)
		if err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{Arrangement: a}, nil

	case ReqSetArrangementTempo:
		if err := b.SetArrangementTempo(req.ArrangementId, req.BPM); err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{}, nil

	case ReqSubscribeTrack:
		return Response{Stream: b.SubscribeTrack(req.TrackId)}, nil

	case ReqUnsubscribeTrack:
		b.UnsubscribeTrack(req.TrackId, req.Stream)
		return Response{}, nil

	case ReqSaveDocument:
		if err := b.Save(req.ArrangementId, req.Revision); err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{}, nil

	case ReqCreateExternalAsset:
		return Response{AssetId: b.CreateExternalAsset(req.AssetPath, req.AssetHash, req.AssetSize)}, nil

	case ReqCreateEmbeddedAsset:
		id, err := b.CreateEmbeddedAsset(req.AssetData)
		if err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{AssetId: id}, nil

	case ReqImportAudioSource:
		id, err := b.ImportAudioSource(req.AssetId, req.Channels, req.SampleRate, req.Format, req.SourceDuration)
		if err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{AudioSourceId: id}, nil

	case ReqCreateAudioItem:
		id, err := b.CreateAudioItem(req.AudioSourceId)
		if err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{AudioItemId: id}, nil

	case ReqExportEmbeddedAsset:
		path, err := b.ExportEmbeddedAsset(req.AssetId, req.ExportName, req.ExportDir)
		if err != nil {
			return Response{}, toProtoErr(err)
		}
		return Response{ExportPath: path}, nil

	default:
		return Response{}, rpcproto.NewInvalidType("unknown request kind")
	}
}

func toProtoErr(err error) *rpcproto.Error {
	if err == nil {
		return nil
	}
	return rpcproto.NewError(err)
}
