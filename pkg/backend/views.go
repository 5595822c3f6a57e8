package backend

import (
	"github.com/google/uuid"

	"rdawcore/pkg/rdawerr"
	"rdawcore/pkg/track"
	"rdawcore/pkg/trackview"
)

// GetOrComputeTrackView returns the resolved, spatially-indexed view of
// trackID under arrangementID's tempo map, computing and caching it on
// first access. The view is cached whether or not anyone subscribes to the
// track; subscriptions are not tracked by the view cache.
func (b *Backend) GetOrComputeTrackView(trackID track.Id, arrangementID uuid.UUID) (*trackview.View, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.hub.Tracks.Get(trackID)
	if !ok {
		return nil, rdawerr.New(rdawerr.InvalidId, "track not found")
	}
	tm, ok := b.tempoMapFor(arrangementID)
	if !ok {
		return nil, rdawerr.New(rdawerr.InvalidId, "arrangement not found")
	}

	key := trackview.Key{TrackId: trackID, ArrangementId: arrangementID}
	view := b.hub.Views.GetOrInsert(key, func() *trackview.View {
		return trackview.Compute(t, tm)
	})
	return view, nil
}
