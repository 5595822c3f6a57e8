package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rdawcore/pkg/tempo"
)

func TestAddGetRemoveItem(t *testing.T) {
	storage, mgr, _ := newHarness()
	trackID := insertTrack(storage, "track")

	item := TrackItem{
		Start:    tempo.FromReal(tempo.RealZero),
		Duration: tempo.FromReal(tempo.RealFromSecs(4)),
	}
	itemID, err := mgr.AddItem(trackID, item)
	require.NoError(t, err)

	got, err := mgr.GetItem(trackID, itemID)
	require.NoError(t, err)
	assert.Equal(t, item, got)

	require.NoError(t, mgr.RemoveItem(trackID, itemID))
	_, err = mgr.GetItem(trackID, itemID)
	assert.Error(t, err)
}

func TestMoveItemChangesStartOnly(t *testing.T) {
	storage, mgr, _ := newHarness()
	trackID := insertTrack(storage, "track")

	item := TrackItem{
		Start:    tempo.FromReal(tempo.RealZero),
		Duration: tempo.FromReal(tempo.RealFromSecs(2)),
	}
	itemID, err := mgr.AddItem(trackID, item)
	require.NoError(t, err)

	newStart := tempo.FromReal(tempo.RealFromSecs(10))
	require.NoError(t, mgr.MoveItem(trackID, itemID, newStart))

	got, err := mgr.GetItem(trackID, itemID)
	require.NoError(t, err)
	assert.Equal(t, newStart, got.Start)
	assert.Equal(t, item.Duration, got.Duration)
}

func TestResizeItemChangesDurationOnly(t *testing.T) {
	storage, mgr, _ := newHarness()
	trackID := insertTrack(storage, "track")

	item := TrackItem{
		Start:    tempo.FromReal(tempo.RealFromSecs(1)),
		Duration: tempo.FromReal(tempo.RealFromSecs(2)),
	}
	itemID, err := mgr.AddItem(trackID, item)
	require.NoError(t, err)

	newDuration := tempo.FromReal(tempo.RealFromSecs(8))
	require.NoError(t, mgr.ResizeItem(trackID, itemID, newDuration))

	got, err := mgr.GetItem(trackID, itemID)
	require.NoError(t, err)
	assert.Equal(t, newDuration, got.Duration)
	assert.Equal(t, item.Start, got.Start)
}
