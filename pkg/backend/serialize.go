// serialize.go wires the domain types in this package into
// pkg/object.Registry so a whole arrangement (and everything it
// transitively references) can be (de)serialized through pkg/object's
// work-stack traversal and persisted via the document's blob store (spec
// §4.D, §6.1). Each type defines its own numbered encoding starting at
// version 1, hand-rolled via encoding/binary the same way
// pkg/document/metadata.go encodes Metadata: there is no postcard-equivalent
// structured-encoding library in the example pack, and every payload here is
// a small, fixed-shape struct, which is the narrow case that package's
// doc comment already argues stdlib encoding is the right tool for.
package backend

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"

	"rdawcore/pkg/document"
	"rdawcore/pkg/object"
	"rdawcore/pkg/rdawerr"
	"rdawcore/pkg/tempo"
	"rdawcore/pkg/track"
)

const (
	arrangementVersion1 = 1
	trackVersion1       = 1
	tempoMapVersion1    = 1
	audioSourceVersion1 = 1
	audioItemVersion1   = 1
	assetVersion1       = 1
)

func writeUUID(buf *bytes.Buffer, id uuid.UUID) { buf.Write(id[:]) }

func readUUID(r *bytes.Reader) (uuid.UUID, error) {
	var id uuid.UUID
	if _, err := r.Read(id[:]); err != nil {
		return uuid.UUID{}, err
	}
	return id, nil
}

// newObjectRegistry builds the Serializer/Deserializer table for every
// domain type a document persists. It closes over hub so each (de)serializer
// can translate between local ids and UUIDs via hub's storages.
func newObjectRegistry(hub *Hub) *object.Registry {
	reg := object.NewRegistry()

	reg.Serializers[object.ObjectArrangement] = func(ctx *object.SerializeCtx, id uuid.UUID) ([]byte, error) {
		a, ok := findByUUID(hub.Arrangements, id)
		if !ok {
			return nil, rdawerr.New(rdawerr.NotFound, "arrangement not found")
		}
		trackUUID, _ := hub.Tracks.Metadata(a.MainTrack)
		tempoUUID, _ := hub.TempoMaps.Metadata(a.TempoMapId)
		ctx.AddDep(object.ObjectTrack, trackUUID.UUID)
		ctx.AddDep(object.ObjectTempoMap, tempoUUID.UUID)

		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, uint32(arrangementVersion1))
		writeLenString(&buf, a.Name)
		writeUUID(&buf, trackUUID.UUID)
		writeUUID(&buf, tempoUUID.UUID)
		return buf.Bytes(), nil
	}

	reg.Serializers[object.ObjectTrack] = func(ctx *object.SerializeCtx, id uuid.UUID) ([]byte, error) {
		t, ok := findByUUID(hub.Tracks, id)
		if !ok {
			return nil, rdawerr.New(rdawerr.NotFound, "track not found")
		}

		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, uint32(trackVersion1))
		writeLenString(&buf, t.Name)

		childUUIDs := make([]uuid.UUID, 0, len(t.Links.Children))
		for _, c := range t.Links.Children {
			m, _ := hub.Tracks.Metadata(c)
			childUUIDs = append(childUUIDs, m.UUID)
			ctx.AddDep(object.ObjectTrack, m.UUID)
		}
		binary.Write(&buf, binary.LittleEndian, uint32(len(childUUIDs)))
		for _, u := range childUUIDs {
			writeUUID(&buf, u)
		}

		var items []track.TrackItem
		t.Items.Iter(func(_ track.ItemId, _ object.Metadata, item *track.TrackItem) bool {
			items = append(items, *item)
			return true
		})
		binary.Write(&buf, binary.LittleEndian, uint32(len(items)))
		for _, it := range items {
			binary.Write(&buf, binary.LittleEndian, uint32(it.Inner.Type))
			writeUUID(&buf, it.Inner.UUID)
			writeTime(&buf, it.Start)
			writeTime(&buf, it.Duration)
			ctx.AddDep(it.Inner.Type, it.Inner.UUID)
		}
		return buf.Bytes(), nil
	}

	reg.Serializers[object.ObjectTempoMap] = func(_ *object.SerializeCtx, id uuid.UUID) ([]byte, error) {
		tm, ok := findByUUID(hub.TempoMaps, id)
		if !ok {
			return nil, rdawerr.New(rdawerr.NotFound, "tempo map not found")
		}
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, uint32(tempoMapVersion1))
		binary.Write(&buf, binary.LittleEndian, tm.BeatsPerMinute())
		return buf.Bytes(), nil
	}

	reg.Serializers[object.ObjectAudioSource] = func(_ *object.SerializeCtx, id uuid.UUID) ([]byte, error) {
		src, ok := findByUUID(hub.AudioSources, id)
		if !ok {
			return nil, rdawerr.New(rdawerr.NotFound, "audio source not found")
		}
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, uint32(audioSourceVersion1))
		buf.Write(src.BlobHash[:])
		binary.Write(&buf, binary.LittleEndian, uint32(src.Channels))
		binary.Write(&buf, binary.LittleEndian, src.SampleRate)
		writeLenString(&buf, src.Format)
		binary.Write(&buf, binary.LittleEndian, src.Duration.Nanos())
		return buf.Bytes(), nil
	}

	reg.Serializers[object.ObjectAudioItem] = func(ctx *object.SerializeCtx, id uuid.UUID) ([]byte, error) {
		ai, ok := findByUUID(hub.AudioItems, id)
		if !ok {
			return nil, rdawerr.New(rdawerr.NotFound, "audio item not found")
		}
		srcUUID, _ := hub.AudioSources.Metadata(ai.Source)
		ctx.AddDep(object.ObjectAudioSource, srcUUID.UUID)

		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, uint32(audioItemVersion1))
		writeUUID(&buf, srcUUID.UUID)
		return buf.Bytes(), nil
	}

	reg.Serializers[object.ObjectAsset] = func(_ *object.SerializeCtx, id uuid.UUID) ([]byte, error) {
		asset, ok := findByUUID(hub.Assets, id)
		if !ok {
			return nil, rdawerr.New(rdawerr.NotFound, "asset not found")
		}
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, uint32(assetVersion1))
		if asset.External {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		writeLenString(&buf, asset.Path)
		buf.Write(asset.Hash[:])
		binary.Write(&buf, binary.LittleEndian, asset.Size)
		return buf.Bytes(), nil
	}

	reg.Deserializers[object.ObjectTempoMap] = func(_ *object.DeserializeCtx, id uuid.UUID, data []byte) error {
		r := bytes.NewReader(data)
		var version uint32
		binary.Read(r, binary.LittleEndian, &version)
		if version != tempoMapVersion1 {
			return rdawerr.Newf(rdawerr.UnknownVersion, "tempo map version %d", version)
		}
		var bpm float32
		binary.Read(r, binary.LittleEndian, &bpm)
		hub.TempoMaps.Insert(object.Metadata{UUID: id}, *tempo.New(bpm))
		return nil
	}

	reg.Deserializers[object.ObjectTrack] = func(ctx *object.DeserializeCtx, id uuid.UUID, data []byte) error {
		r := bytes.NewReader(data)
		var version uint32
		binary.Read(r, binary.LittleEndian, &version)
		if version != trackVersion1 {
			return rdawerr.Newf(rdawerr.UnknownVersion, "track version %d", version)
		}
		nameLen := readLen(r)
		name := readString(r, nameLen)

		var childCount uint32
		binary.Read(r, binary.LittleEndian, &childCount)
		childUUIDs := make([]uuid.UUID, childCount)
		for i := range childUUIDs {
			u, err := readUUID(r)
			if err != nil {
				return rdawerr.Wrap(err, rdawerr.Deserialization, "read child uuid")
			}
			childUUIDs[i] = u
			ctx.AddDep(object.ObjectTrack, u)
		}

		var itemCount uint32
		binary.Read(r, binary.LittleEndian, &itemCount)
		items := make([]track.TrackItem, itemCount)
		for i := range items {
			var innerType uint32
			binary.Read(r, binary.LittleEndian, &innerType)
			innerUUID, err := readUUID(r)
			if err != nil {
				return rdawerr.Wrap(err, rdawerr.Deserialization, "read item inner uuid")
			}
			start, err := readTime(r)
			if err != nil {
				return rdawerr.Wrap(err, rdawerr.Deserialization, "read item start")
			}
			duration, err := readTime(r)
			if err != nil {
				return rdawerr.Wrap(err, rdawerr.Deserialization, "read item duration")
			}
			items[i] = track.TrackItem{
				Inner:    track.ItemRef{Type: object.ObjectType(innerType), UUID: innerUUID},
				Start:    start,
				Duration: duration,
			}
			ctx.AddDep(object.ObjectType(innerType), innerUUID)
		}

		selfId := hub.Tracks.PrepareInsert(object.Metadata{UUID: id})
		t := track.New(name)
		for _, item := range items {
			t.Items.Insert(object.Metadata{}, item)
		}
		// Children ids are resolved on a second pass once every track in
		// this document has been prepared, since a child may not have been
		// inserted yet (same two-phase rationale as spec §9's cyclic
		// references note). loadFromDocument, called once the whole
		// deserialize pass completes, fills these in via RebuildLinks.
		hub.pendingTrackChildren = append(hub.pendingTrackChildren, pendingChildren{id: selfId, childUUIDs: childUUIDs})
		hub.Tracks.FinishInsert(selfId, *t)
		return nil
	}

	reg.Deserializers[object.ObjectArrangement] = func(ctx *object.DeserializeCtx, id uuid.UUID, data []byte) error {
		r := bytes.NewReader(data)
		var version uint32
		binary.Read(r, binary.LittleEndian, &version)
		if version != arrangementVersion1 {
			return rdawerr.Newf(rdawerr.UnknownVersion, "arrangement version %d", version)
		}
		nameLen := readLen(r)
		name := readString(r, nameLen)
		trackUUID, err := readUUID(r)
		if err != nil {
			return rdawerr.Wrap(err, rdawerr.Deserialization, "read main track uuid")
		}
		tempoUUID, err := readUUID(r)
		if err != nil {
			return rdawerr.Wrap(err, rdawerr.Deserialization, "read tempo map uuid")
		}
		ctx.AddDep(object.ObjectTrack, trackUUID)
		ctx.AddDep(object.ObjectTempoMap, tempoUUID)

		selfId := hub.Arrangements.PrepareInsert(object.Metadata{UUID: id})
		hub.pendingArrangements = append(hub.pendingArrangements, pendingArrangement{
			id: selfId, uuid: id, name: name, trackUUID: trackUUID, tempoUUID: tempoUUID,
		})
		hub.Arrangements.FinishInsert(selfId, Arrangement{UUID: id, Name: name})
		return nil
	}

	reg.Deserializers[object.ObjectAudioItem] = func(ctx *object.DeserializeCtx, id uuid.UUID, data []byte) error {
		r := bytes.NewReader(data)
		var version uint32
		binary.Read(r, binary.LittleEndian, &version)
		if version != audioItemVersion1 {
			return rdawerr.Newf(rdawerr.UnknownVersion, "audio item version %d", version)
		}
		srcUUID, err := readUUID(r)
		if err != nil {
			return rdawerr.Wrap(err, rdawerr.Deserialization, "read audio item source uuid")
		}
		ctx.AddDep(object.ObjectAudioSource, srcUUID)

		selfId := hub.AudioItems.PrepareInsert(object.Metadata{UUID: id})
		hub.pendingAudioItems = append(hub.pendingAudioItems, pendingAudioItem{id: selfId, sourceUUID: srcUUID})
		hub.AudioItems.FinishInsert(selfId, AudioItem{})
		return nil
	}

	reg.Deserializers[object.ObjectAudioSource] = func(_ *object.DeserializeCtx, id uuid.UUID, data []byte) error {
		r := bytes.NewReader(data)
		var version uint32
		binary.Read(r, binary.LittleEndian, &version)
		if version != audioSourceVersion1 {
			return rdawerr.Newf(rdawerr.UnknownVersion, "audio source version %d", version)
		}
		var hash [32]byte
		r.Read(hash[:])
		var channels uint32
		binary.Read(r, binary.LittleEndian, &channels)
		var sampleRate uint32
		binary.Read(r, binary.LittleEndian, &sampleRate)
		formatLen := readLen(r)
		format := readString(r, formatLen)
		var nanos int64
		binary.Read(r, binary.LittleEndian, &nanos)

		hub.AudioSources.Insert(object.Metadata{UUID: id}, AudioSource{
			BlobHash: hash, Channels: int(channels), SampleRate: sampleRate,
			Format: format, Duration: tempo.RealFromNanos(nanos),
		})
		return nil
	}

	reg.Deserializers[object.ObjectAsset] = func(_ *object.DeserializeCtx, id uuid.UUID, data []byte) error {
		r := bytes.NewReader(data)
		var version uint32
		binary.Read(r, binary.LittleEndian, &version)
		if version != assetVersion1 {
			return rdawerr.Newf(rdawerr.UnknownVersion, "asset version %d", version)
		}
		externalByte, _ := r.ReadByte()
		pathLen := readLen(r)
		path := readString(r, pathLen)
		var hash [32]byte
		r.Read(hash[:])
		var size uint64
		binary.Read(r, binary.LittleEndian, &size)

		hub.Assets.Insert(object.Metadata{UUID: id}, Asset{
			External: externalByte == 1, Path: path, Hash: hash, Size: size,
		})
		return nil
	}

	return reg
}

type pendingChildren struct {
	id         track.Id
	childUUIDs []uuid.UUID
}

type pendingAudioItem struct {
	id         AudioItemId
	sourceUUID uuid.UUID
}

type pendingArrangement struct {
	id        ArrangementId
	uuid      uuid.UUID
	name      string
	trackUUID uuid.UUID
	tempoUUID uuid.UUID
}

func findByUUID[T any](s *object.Storage[T], id uuid.UUID) (*T, bool) {
	var found *T
	s.Iter(func(_ object.Id[T], m object.Metadata, obj *T) bool {
		if m.UUID == id {
			found = obj
			return false
		}
		return true
	})
	return found, found != nil
}

func idByUUID[T any](s *object.Storage[T], id uuid.UUID) (object.Id[T], bool) {
	var found object.Id[T]
	ok := false
	s.Iter(func(i object.Id[T], m object.Metadata, _ *T) bool {
		if m.UUID == id {
			found = i
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

func writeTime(buf *bytes.Buffer, t tempo.Time) {
	binary.Write(buf, binary.LittleEndian, uint32(t.Kind))
	if t.Kind == tempo.TimeReal {
		binary.Write(buf, binary.LittleEndian, t.Real.Nanos())
	} else {
		binary.Write(buf, binary.LittleEndian, int64(0))
	}
	if t.Kind == tempo.TimeBeat {
		binary.Write(buf, binary.LittleEndian, t.Beat.AsBeatsF64())
	} else {
		binary.Write(buf, binary.LittleEndian, float64(0))
	}
}

func readTime(r *bytes.Reader) (tempo.Time, error) {
	var kind uint32
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return tempo.Time{}, err
	}
	var nanos int64
	if err := binary.Read(r, binary.LittleEndian, &nanos); err != nil {
		return tempo.Time{}, err
	}
	var beats float64
	if err := binary.Read(r, binary.LittleEndian, &beats); err != nil {
		return tempo.Time{}, err
	}
	if tempo.TimeKind(kind) == tempo.TimeBeat {
		return tempo.FromBeat(tempo.BeatFromBeatsF64(beats)), nil
	}
	return tempo.FromReal(tempo.RealFromNanos(nanos)), nil
}

func writeLenString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

func readLen(r *bytes.Reader) uint32 {
	var n uint32
	binary.Read(r, binary.LittleEndian, &n)
	return n
}

func readString(r *bytes.Reader, n uint32) string {
	b := make([]byte, n)
	r.Read(b)
	return string(b)
}

// Save serializes rootArrangement and everything it transitively
// references into the document's blob store, then appends revision (spec
// §4.D, §8 scenario S6).
func (b *Backend) Save(rootArrangement ArrangementId, revision document.Revision) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, err := b.hub.Arrangements.GetOrErr(rootArrangement)
	if err != nil {
		return err
	}
	if err := object.Serialize(b.hub.Registry, b.doc, object.Dep{Type: object.ObjectArrangement, UUID: a.UUID}); err != nil {
		return err
	}
	if err := b.doc.SetMainArrangement(a.UUID); err != nil {
		return err
	}
	return b.doc.Save(revision)
}

// loadFromDocument deserializes the document's main arrangement (if any)
// back into the hub, resolving the two-phase child/arrangement references
// left pending by the Track/Arrangement deserializers above.
func (b *Backend) loadFromDocument() error {
	meta := b.doc.Metadata()
	if meta.MainArrangementUUID == nil {
		return nil
	}

	if err := object.Deserialize(b.hub.Registry, b.doc, object.Dep{Type: object.ObjectArrangement, UUID: *meta.MainArrangementUUID}); err != nil {
		return err
	}

	for _, pc := range b.hub.pendingTrackChildren {
		t, ok := b.hub.Tracks.Get(pc.id)
		if !ok {
			continue
		}
		children := make([]track.Id, 0, len(pc.childUUIDs))
		for _, u := range pc.childUUIDs {
			if cid, ok := idByUUID(b.hub.Tracks, u); ok {
				children = append(children, cid)
			}
		}
		t.Links.Children = children
	}
	b.hub.Hierarchy.RebuildLinks()
	b.hub.pendingTrackChildren = nil

	for _, pa := range b.hub.pendingArrangements {
		arr, ok := b.hub.Arrangements.Get(pa.id)
		if !ok {
			continue
		}
		mainTrack, _ := idByUUID(b.hub.Tracks, pa.trackUUID)
		tempoId, _ := idByUUID(b.hub.TempoMaps, pa.tempoUUID)
		arr.MainTrack = mainTrack
		arr.TempoMapId = tempoId
		if tm, ok := b.hub.TempoMaps.Get(tempoId); ok {
			arrUUID := pa.uuid
			tm.OnChange(func(float32) {
				b.mu.Lock()
				defer b.mu.Unlock()
				b.invalidateArrangementViews(arrUUID)
			})
		}
	}
	b.hub.pendingArrangements = nil

	for _, pi := range b.hub.pendingAudioItems {
		item, ok := b.hub.AudioItems.Get(pi.id)
		if !ok {
			continue
		}
		srcId, _ := idByUUID(b.hub.AudioSources, pi.sourceUUID)
		item.Source = srcId
	}
	b.hub.pendingAudioItems = nil

	return nil
}
