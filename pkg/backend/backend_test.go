package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rdawcore/pkg/document"
	"rdawcore/pkg/rdawerr"
	"rdawcore/pkg/rpcproto"
	"rdawcore/pkg/tempo"
	"rdawcore/pkg/track"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { b.Document().Close() })
	return b
}

// S1 — create/list track.
func TestScenarioCreateListTrack(t *testing.T) {
	b := newTestBackend(t)

	t1 := b.CreateTrack()
	t2 := b.CreateTrack()
	assert.NotEqual(t, t1, t2)

	ids := b.ListTracks()
	assert.ElementsMatch(t, []track.Id{t1, t2}, ids)

	name, err := b.GetTrackName(t1)
	require.NoError(t, err)
	assert.True(t, len(name) > len("Track ") && name[:6] == "Track ")
}

// S2 — name change event delivered exactly once.
func TestScenarioNameChangeEvent(t *testing.T) {
	b := newTestBackend(t)
	tr := b.CreateTrack()

	stream := b.SubscribeTrack(tr)
	require.NoError(t, b.SetTrackName(tr, "Foo"))

	sent := &recordingSender{}
	require.NoError(t, b.Deliver(context.Background(), sent))

	require.Len(t, sent.events, 1)
	assert.Equal(t, stream, sent.events[0].StreamId)
	assert.Equal(t, EventNameChanged, sent.events[0].EventBody.Kind)
	assert.Equal(t, "Foo", sent.events[0].EventBody.NewName)
}

// S3 — hierarchy DFS order, levels and parents.
func TestScenarioHierarchyTraversal(t *testing.T) {
	b := newTestBackend(t)

	root := b.CreateTrack()
	c1 := b.CreateTrack()
	c2 := b.CreateTrack()
	gc := b.CreateTrack()

	require.NoError(t, b.AppendChild(root, c1))
	require.NoError(t, b.AppendChild(root, c2))
	require.NoError(t, b.AppendChild(c1, gc))

	h, err := b.GetTrackHierarchy(root)
	require.NoError(t, err)

	assert.Equal(t, []track.Id{root, c1, gc, c2}, h.Ids)
	assert.Equal(t, []int{0, 1, 2, 1}, h.Levels)
	assert.Equal(t, []bool{false, true, true, true}, h.HasParent)
	assert.Equal(t, []track.Id{{}, root, c1, root}, h.Parents)
}

// S4 — cycle rejection leaves the hierarchy unchanged.
func TestScenarioCycleRejection(t *testing.T) {
	b := newTestBackend(t)

	root := b.CreateTrack()
	c1 := b.CreateTrack()
	require.NoError(t, b.AppendChild(root, c1))

	before, err := b.GetTrackHierarchy(root)
	require.NoError(t, err)

	err = b.InsertChild(c1, root, 0)
	require.Error(t, err)
	assert.Equal(t, rdawerr.RecursiveTrack, rdawerr.KindOf(err))

	after, err := b.GetTrackHierarchy(root)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// S5 — blob round-trip, 8193 zero bytes, Zstd.
func TestScenarioBlobRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	data := make([]byte, 8193)
	id, err := b.CreateEmbeddedAsset(data)
	require.NoError(t, err)

	asset, err := b.hub.Assets.GetOrErr(id)
	require.NoError(t, err)

	reader, found, err := b.doc.OpenBlobByHash(asset.Hash)
	require.NoError(t, err)
	require.True(t, found)

	buf := make([]byte, len(data))
	total := 0
	for total < len(buf) {
		n, rerr := reader.Read(buf[total:])
		total += n
		if rerr != nil || n == 0 {
			break
		}
	}
	assert.Equal(t, data, buf[:total])
}

func TestExportEmbeddedAsset(t *testing.T) {
	b := newTestBackend(t)

	data := []byte("hello embedded asset")
	id, err := b.CreateEmbeddedAsset(data)
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := b.ExportEmbeddedAsset(id, "My Recording!!", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "my-recording"), path)

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	extID := b.CreateExternalAsset("/tmp/whatever.wav", [32]byte{1}, 10)
	_, err = b.ExportEmbeddedAsset(extID, "x", dir)
	require.Error(t, err)
	assert.Equal(t, rdawerr.InvalidType, rdawerr.KindOf(err))
}

// S6 — document persistence: revisions returned in id order.
func TestScenarioDocumentPersistence(t *testing.T) {
	b := newTestBackend(t)
	arr := b.CreateArrangement("Song", 120)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, b.Save(arr, document.Revision{CreatedAt: t0, TimeSpentSecs: 15}))

	t1 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, b.Save(arr, document.Revision{CreatedAt: t1, TimeSpentSecs: 30}))

	revs, err := b.doc.Revisions()
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.EqualValues(t, 1, revs[0].Id)
	assert.Equal(t, uint64(15), revs[0].Revision.TimeSpentSecs)
	assert.EqualValues(t, 2, revs[1].Id)
	assert.Equal(t, uint64(30), revs[1].Revision.TimeSpentSecs)
}

func TestAddMoveResizeItemUpdatesView(t *testing.T) {
	b := newTestBackend(t)
	arr := b.CreateArrangement("Song", 120)
	a, err := b.GetArrangement(arr)
	require.NoError(t, err)

	itemId, err := b.AddItem(a.MainTrack, track.TrackItem{
		Start:    tempo.FromReal(tempo.RealFromSecs(0)),
		Duration: tempo.FromReal(tempo.RealFromSecs(2)),
	})
	require.NoError(t, err)

	view, err := b.GetOrComputeTrackView(a.MainTrack, a.UUID)
	require.NoError(t, err)
	item, ok := view.GetItem(itemId)
	require.True(t, ok)
	assert.Equal(t, int64(2*1_000_000_000), item.RealEnd.Sub(item.RealStart).Nanos())

	require.NoError(t, b.MoveItem(a.MainTrack, itemId, tempo.FromReal(tempo.RealFromSecs(10))))
	view, err = b.GetOrComputeTrackView(a.MainTrack, a.UUID)
	require.NoError(t, err)
	item, ok = view.GetItem(itemId)
	require.True(t, ok)
	assert.Equal(t, int64(10*1_000_000_000), item.RealStart.Nanos())

	require.NoError(t, b.ResizeItem(a.MainTrack, itemId, tempo.FromReal(tempo.RealFromSecs(5))))
	view, err = b.GetOrComputeTrackView(a.MainTrack, a.UUID)
	require.NoError(t, err)
	item, ok = view.GetItem(itemId)
	require.True(t, ok)
	assert.Equal(t, int64(10*1_000_000_000), item.RealStart.Nanos())
	assert.Equal(t, int64(5*1_000_000_000), item.RealEnd.Sub(item.RealStart).Nanos())
}

type recordingSender struct {
	events []rpcproto.ServerMessage[Response, TrackEvent]
	closes []rpcproto.StreamId
}

func (r *recordingSender) Send(_ context.Context, msg rpcproto.ServerMessage[Response, TrackEvent]) error {
	if msg.Kind == rpcproto.ServerCloseStream {
		r.closes = append(r.closes, msg.StreamId)
		return nil
	}
	r.events = append(r.events, msg)
	return nil
}
