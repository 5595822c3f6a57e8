package backend

import (
	"rdawcore/pkg/tempo"
	"rdawcore/pkg/track"
)

// AddItem places item on trackID's timeline, refreshing any already-cached
// TrackView for that track (spec §4.F: a view's items always mirror its
// backing track's items) and notifying subscribers.
func (b *Backend) AddItem(trackID track.Id, item track.TrackItem) (track.ItemId, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.hub.Hierarchy.AddItem(trackID, item)
	if err != nil {
		return track.ItemId{}, err
	}

	b.trackSubs.Notify(trackID, TrackEvent{Kind: EventItemAdded, ItemId: id, Item: &item})
	b.refreshViewsForTrack(trackID)
	return id, nil
}

// GetItem returns itemID's current state on trackID.
func (b *Backend) GetItem(trackID track.Id, itemID track.ItemId) (track.TrackItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hub.Hierarchy.GetItem(trackID, itemID)
}

// RemoveItem deletes itemID from trackID.
func (b *Backend) RemoveItem(trackID track.Id, itemID track.ItemId) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.hub.Hierarchy.RemoveItem(trackID, itemID); err != nil {
		return err
	}
	b.trackSubs.Notify(trackID, TrackEvent{Kind: EventItemRemoved, ItemId: itemID})
	b.refreshViewsForTrack(trackID)
	return nil
}

// MoveItem relocates itemID to newStart, leaving its duration unchanged
// (spec §4.F, §9 "the resize bug": move_item must only ever touch Start).
func (b *Backend) MoveItem(trackID track.Id, itemID track.ItemId, newStart tempo.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.hub.Hierarchy.MoveItem(trackID, itemID, newStart); err != nil {
		return err
	}
	b.trackSubs.Notify(trackID, TrackEvent{Kind: EventItemMoved, ItemId: itemID, NewStart: &newStart})
	b.refreshViewsForTrack(trackID)
	return nil
}

// ResizeItem changes itemID's duration, leaving its start unchanged. Calls
// the correctly-named resize_item operation, not the original's buggy
// move_item substitution (spec §9, the one documented correctness
// deviation).
func (b *Backend) ResizeItem(trackID track.Id, itemID track.ItemId, newDuration tempo.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.hub.Hierarchy.ResizeItem(trackID, itemID, newDuration); err != nil {
		return err
	}
	b.trackSubs.Notify(trackID, TrackEvent{Kind: EventItemResized, ItemId: itemID, NewDuration: &newDuration})
	b.refreshViewsForTrack(trackID)
	return nil
}

// refreshViewsForTrack drops every cached TrackView for trackID, so the
// next GetOrComputeTrackView recomputes it from scratch. Item mutations are
// infrequent relative to view reads, so a full recompute (rather than the
// surgical AddItem/MoveItem/ResizeItem calls View itself exposes) keeps
// this call site simple; GetOrComputeTrackView still serves cache hits in
// between mutations.
func (b *Backend) refreshViewsForTrack(trackID track.Id) {
	b.hub.Views.Invalidate(trackID)
}
