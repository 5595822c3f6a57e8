package trackview

import (
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rdawcore/pkg/object"
	"rdawcore/pkg/tempo"
	"rdawcore/pkg/track"
)

var nextTestItemIndex uint32

func itemId() track.ItemId {
	nextTestItemIndex++
	return object.FromRaw[track.TrackItem](nextTestItemIndex, 1)
}

func realSecs(s float64) tempo.Time {
	return tempo.FromReal(tempo.RealFromSecsF64(s))
}

func TestViewAddItemResolvesAndIndexesThenRemove(t *testing.T) {
	tm := tempo.New(120.0)
	v := newView()

	item := track.TrackItem{
		Inner:    track.ItemRef{Type: object.ObjectAudioItem, UUID: uuid.New()},
		Start:    realSecs(1.0),
		Duration: realSecs(2.0),
	}
	id := itemId()

	viewItem := v.AddItem(tm, id, item)

	assert.Equal(t, item.Inner, viewItem.Inner)
	assert.Equal(t, item.Start, viewItem.Start)
	assert.Equal(t, item.Duration, viewItem.Duration)
	assert.True(t, viewItem.RealStart.ApproxEq(tempo.RealFromSecsF64(1.0), tempo.RealFromNanos(1)))
	assert.True(t, viewItem.RealEnd.ApproxEq(tempo.RealFromSecsF64(3.0), tempo.RealFromNanos(1)))

	assert.Len(t, v.GetRange(tm, nil, nil), 1)

	v.RemoveItem(id)

	_, ok := v.GetItem(id)
	assert.False(t, ok)
	assert.Len(t, v.GetRange(tm, nil, nil), 0)
}

func TestViewGetRangeMatchesOverlapSemantics(t *testing.T) {
	tm := tempo.New(120.0)
	v := newView()

	real0s := realSecs(0.0)
	real1s := realSecs(1.0)
	real2s := realSecs(2.0)
	real3s := realSecs(3.0)
	real5s := realSecs(5.0)

	item1 := track.TrackItem{Inner: track.ItemRef{Type: object.ObjectAudioItem, UUID: uuid.New()}, Start: real0s, Duration: real2s}
	item2 := track.TrackItem{Inner: track.ItemRef{Type: object.ObjectAudioItem, UUID: uuid.New()}, Start: real1s, Duration: real3s}
	item3 := track.TrackItem{Inner: track.ItemRef{Type: object.ObjectAudioItem, UUID: uuid.New()}, Start: real2s, Duration: real3s}

	id1, id2, id3 := itemId(), itemId(), itemId()

	v.AddItem(tm, id1, item1)
	v.AddItem(tm, id2, item2)
	v.AddItem(tm, id3, item3)

	find := func(start, end *tempo.Time) []track.ItemId {
		results := v.GetRange(tm, start, end)
		ids := make([]track.ItemId, len(results))
		for i, r := range results {
			ids[i] = r.Id
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].Raw() < ids[j].Raw() })
		return ids
	}

	sorted := func(ids ...track.ItemId) []track.ItemId {
		out := append([]track.ItemId(nil), ids...)
		sort.Slice(out, func(i, j int) bool { return out[i].Raw() < out[j].Raw() })
		return out
	}

	require.Equal(t, sorted(id1, id2, id3), find(nil, nil))
	require.Equal(t, sorted(id1, id2, id3), find(&real0s, &real3s))
	require.Equal(t, sorted(id1), find(&real0s, &real0s))
	require.Equal(t, sorted(id1, id2), find(&real0s, &real1s))
	require.Equal(t, sorted(id2, id3), find(&real3s, &real3s))
	require.Equal(t, sorted(id3), find(&real5s, &real5s))
}

func TestViewMoveItemUpdatesRealStartKeepsDuration(t *testing.T) {
	tm := tempo.New(120.0)
	v := newView()

	item := track.TrackItem{Inner: track.ItemRef{Type: object.ObjectAudioItem, UUID: uuid.New()}, Start: realSecs(0), Duration: realSecs(2)}
	id := itemId()
	v.AddItem(tm, id, item)

	newStart := realSecs(10)
	realStart, ok := v.MoveItem(tm, id, newStart)
	require.True(t, ok)
	assert.True(t, realStart.ApproxEq(tempo.RealFromSecsF64(10), tempo.RealFromNanos(1)))

	updated, _ := v.GetItem(id)
	assert.True(t, updated.RealEnd.Sub(updated.RealStart).ApproxEq(tempo.RealFromSecsF64(2), tempo.RealFromNanos(1)))
}

func TestViewResizeItemCallsResizeNotMove(t *testing.T) {
	tm := tempo.New(120.0)
	v := newView()

	item := track.TrackItem{Inner: track.ItemRef{Type: object.ObjectAudioItem, UUID: uuid.New()}, Start: realSecs(1), Duration: realSecs(2)}
	id := itemId()
	v.AddItem(tm, id, item)

	newDuration := realSecs(9)
	realDur, ok := v.ResizeItem(tm, id, newDuration)
	require.True(t, ok)
	assert.True(t, realDur.ApproxEq(tempo.RealFromSecsF64(9), tempo.RealFromNanos(1)))

	updated, _ := v.GetItem(id)
	assert.True(t, updated.RealStart.ApproxEq(tempo.RealFromSecsF64(1), tempo.RealFromNanos(1)),
		"resizing must not move the item's start, unlike the original's known move_item bug")
}
