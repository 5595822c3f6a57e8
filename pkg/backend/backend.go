// Package backend wires the object graph (pkg/object), the track hierarchy
// (pkg/track), the track-view cache (pkg/trackview), tempo maps (pkg/tempo),
// the document store (pkg/document) and the RPC envelope (pkg/rpc,
// pkg/rpcproto) into the single stateful service a client talks to (spec
// §3.4's "hub", §5). It replaces the teacher's pkg/tool.Registry: instead of
// one handler function per named tool, Backend exposes one Go method per
// domain operation and a single Handle dispatcher (protocol.go) that a
// rpc.Server can drive directly.
package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"rdawcore/pkg/document"
	"rdawcore/pkg/object"
	"rdawcore/pkg/rpc"
	"rdawcore/pkg/rpcproto"
	"rdawcore/pkg/tempo"
	"rdawcore/pkg/track"
	"rdawcore/pkg/trackview"
)

// Hub is the per-process in-memory registry of every live entity (spec
// §3.4, GLOSSARY "Hub"): one Storage per entity kind, plus the derived
// structures (track hierarchy manager, track-view cache) built on top of
// them. A Hub belongs to exactly one Backend.
type Hub struct {
	Tracks       *object.Storage[track.Track]
	Arrangements *object.Storage[Arrangement]
	TempoMaps    *object.Storage[tempo.TempoMap]
	AudioSources *object.Storage[AudioSource]
	AudioItems   *object.Storage[AudioItem]
	Assets       *object.Storage[Asset]

	Hierarchy *track.Manager
	Views     *trackview.Cache

	Registry *object.Registry

	// pendingTrackChildren and pendingArrangements buffer the cross-entity
	// references a deserialize pass discovers before every object it might
	// point at has necessarily been inserted yet (serialize.go resolves
	// them once the whole pass completes).
	pendingTrackChildren []pendingChildren
	pendingArrangements  []pendingArrangement
	pendingAudioItems    []pendingAudioItem
}

func newHub(notifyHierarchy func([]track.Id, track.HierarchyEvent)) *Hub {
	tracks := object.NewStorage[track.Track]()
	h := &Hub{
		Tracks:       tracks,
		Arrangements: object.NewStorage[Arrangement](),
		TempoMaps:    object.NewStorage[tempo.TempoMap](),
		AudioSources: object.NewStorage[AudioSource](),
		AudioItems:   object.NewStorage[AudioItem](),
		Assets:       object.NewStorage[Asset](),
		Views:        trackview.NewCache(),
	}
	h.Hierarchy = track.NewManager(tracks, notifyHierarchy)
	h.Registry = newObjectRegistry(h)
	return h
}

// Backend is the engine's per-connection request handler: it owns a Hub,
// the document the hub persists to, the track-event subscriber table, and
// the stream id allocator the subscriber table and any future per-arrangement
// subscriber tables share (spec §9 "the hub and subscriber table are
// per-backend-instance, not process-global").
type Backend struct {
	mu sync.Mutex

	hub *Hub
	doc *document.Document

	streamIds *rpcproto.StreamIdAllocator
	trackSubs *rpc.Subscribers[track.Id, TrackEvent]

	trackNameSeq int
}

// New creates a Backend around a fresh, unsaved Document (spec §6.4, "the
// CLI launches the backend thread... no flags required").
func New() (*Backend, error) {
	doc, err := document.New()
	if err != nil {
		return nil, err
	}
	return newBackend(doc), nil
}

// Open creates a Backend around a previously-saved document file.
func Open(path string) (*Backend, error) {
	doc, err := document.Open(path)
	if err != nil {
		return nil, err
	}
	b := newBackend(doc)
	if err := b.loadFromDocument(); err != nil {
		return nil, err
	}
	return b, nil
}

func newBackend(doc *document.Document) *Backend {
	b := &Backend{doc: doc, streamIds: &rpcproto.StreamIdAllocator{}}
	b.hub = newHub(b.dispatchHierarchyEvent)
	b.trackSubs = rpc.NewSubscribers[track.Id, TrackEvent](b.streamIds)
	return b
}

// Document exposes the backend's underlying document (e.g. for Save/Close
// by main.go).
func (b *Backend) Document() *document.Document { return b.doc }

func (b *Backend) dispatchHierarchyEvent(keys []track.Id, event track.HierarchyEvent) {
	ev := TrackEvent{Kind: EventChildrenChanged, NewChildren: event.NewChildren}
	for _, k := range keys {
		b.trackSubs.Notify(k, ev)
	}
	b.invalidateViews(event.Id)
}

func (b *Backend) invalidateViews(id track.Id) {
	b.hub.Views.Invalidate(id)
}

// CreateTrack inserts a new, parentless, childless track named per the
// engine's default naming scheme ("Track N", spec §8 scenario S1) and
// returns its id.
func (b *Backend) CreateTrack() track.Id {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trackNameSeq++
	name := fmt.Sprintf("Track %d", b.trackNameSeq)
	return b.hub.Tracks.Insert(object.Metadata{UUID: uuid.New()}, *track.New(name))
}

// ListTracks returns every live track id, in storage order.
func (b *Backend) ListTracks() []track.Id {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ids []track.Id
	b.hub.Tracks.Iter(func(id track.Id, _ object.Metadata, _ *track.Track) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// GetTrackName returns id's current display name.
func (b *Backend) GetTrackName(id track.Id) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.hub.Tracks.GetOrErr(id)
	if err != nil {
		return "", err
	}
	return t.Name, nil
}

// SetTrackName renames id, emitting NameChanged to its subscribers exactly
// once (spec §8 scenario S2).
func (b *Backend) SetTrackName(id track.Id, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.hub.Tracks.GetOrErr(id)
	if err != nil {
		return err
	}
	t.Name = name
	b.trackSubs.Notify(id, TrackEvent{Kind: EventNameChanged, NewName: name})
	return nil
}

// SubscribeTrack opens an event stream for id, returning the StreamId a
// client later hands to Unsubscribe (spec §8 property 9).
func (b *Backend) SubscribeTrack(id track.Id) rpcproto.StreamId {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trackSubs.Subscribe(id)
}

// UnsubscribeTrack closes one previously-opened stream for id.
func (b *Backend) UnsubscribeTrack(id track.Id, stream rpcproto.StreamId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trackSubs.CloseOne(id, stream)
}

// HandleCloseStream removes stream from the subscriber table regardless of
// which side initiated the close (spec §4.B: "CloseStream from either side
// removes the stream from the subscriber table"). Unlike UnsubscribeTrack,
// the caller here is rpc.Server.Run relaying a transport-level
// ClientCloseStream message, which carries only the bare StreamId, so the
// track key is recovered via trackSubs.FindKey first.
func (b *Backend) HandleCloseStream(stream rpcproto.StreamId) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.trackSubs.FindKey(stream)
	if !ok {
		return
	}
	b.trackSubs.CloseOne(id, stream)
}

// Deliver flushes every pending track event to transport, the cooperative
// event-loop tick described in spec §4.B/§5.
func (b *Backend) Deliver(ctx context.Context, transport rpc.EventSender[Response, TrackEvent]) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return rpc.Deliver(ctx, b.trackSubs, transport, func(e TrackEvent) TrackEvent { return e })
}
