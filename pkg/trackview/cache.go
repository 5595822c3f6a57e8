package trackview

import (
	"github.com/google/uuid"

	"rdawcore/pkg/tempo"
	"rdawcore/pkg/track"
)

// Key identifies one (track, arrangement) pair's view. ArrangementId is
// kept as a bare uuid.UUID rather than a typed object.Id[Arrangement] so
// this package doesn't need to import pkg/backend's Arrangement type —
// pkg/backend is the only caller that knows both sides.
type Key struct {
	TrackId       track.Id
	ArrangementId uuid.UUID
}

// Cache lazily computes and keeps a View per (track, arrangement) pair on
// the first GetOrInsert for that pair. It does not track subscribers: a
// view stays cached until Invalidate drops it, whether or not any
// subscriber exists for the pair.
// Grounded on rdaw-backend/src/track/view.rs's TrackViewCache.
type Cache struct {
	views map[track.Id]map[uuid.UUID]*View
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{views: make(map[track.Id]map[uuid.UUID]*View)}
}

// GetOrInsert returns the view for key, computing it via build if absent.
// build is supplied by the caller (pkg/backend) since computing a view
// requires the track and its arrangement's tempo map, both of which live
// in the object hub rather than in this package.
func (c *Cache) GetOrInsert(key Key, build func() *View) *View {
	byArrangement, ok := c.views[key.TrackId]
	if !ok {
		byArrangement = make(map[uuid.UUID]*View)
		c.views[key.TrackId] = byArrangement
	}

	v, ok := byArrangement[key.ArrangementId]
	if !ok {
		v = build()
		byArrangement[key.ArrangementId] = v
	}
	return v
}

// Iter calls fn for every view currently cached for trackID.
func (c *Cache) Iter(trackID track.Id, fn func(arrangementID uuid.UUID, v *View)) {
	for arrangementID, v := range c.views[trackID] {
		fn(arrangementID, v)
	}
}

// Invalidate drops every cached view for trackID, forcing the next
// GetOrInsert to recompute from scratch.
func (c *Cache) Invalidate(trackID track.Id) {
	delete(c.views, trackID)
}

// InvalidateByTempoMap recomputes every cached view whose arrangement is
// listed in arrangementsUsing, per the OPEN QUESTION DECISION to eagerly recompute
// TrackViews on tempo change rather than lazily tag them stale.
func (c *Cache) InvalidateByTempoMap(arrangementsUsing []uuid.UUID, resolve func(key Key) (*track.Track, *tempo.TempoMap)) {
	using := make(map[uuid.UUID]bool, len(arrangementsUsing))
	for _, id := range arrangementsUsing {
		using[id] = true
	}

	for trackID, byArrangement := range c.views {
		for arrangementID := range byArrangement {
			if !using[arrangementID] {
				continue
			}
			key := Key{TrackId: trackID, ArrangementId: arrangementID}
			t, tm := resolve(key)
			if t == nil || tm == nil {
				continue
			}
			byArrangement[arrangementID] = Compute(t, tm)
		}
	}
}
