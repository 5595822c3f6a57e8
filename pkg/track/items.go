package track

import (
	"rdawcore/pkg/object"
	"rdawcore/pkg/rdawerr"
	"rdawcore/pkg/tempo"
)

// ItemEvent describes one item mutation of one track (spec §4.E/§4.F —
// add_track_item/move_track_item/resize_track_item/remove_track_item in
// ops.rs). pkg/backend does not use this type: it publishes item changes
// as TrackEvents and keeps views in sync by dropping the track's cached
// TrackViews after each mutation.
type ItemEvent struct {
	TrackId  Id
	ItemId   ItemId
	Added    *TrackItem
	Removed  bool
	NewStart *tempo.Time
	NewDur   *tempo.Time
}

// AddItem inserts item into track's local item slot-map.
func (m *Manager) AddItem(trackID Id, item TrackItem) (ItemId, error) {
	t, err := m.get(trackID)
	if err != nil {
		return ItemId{}, err
	}
	id := t.Items.Insert(object.Metadata{}, item)
	return id, nil
}

// GetItem returns the item by id.
func (m *Manager) GetItem(trackID Id, itemID ItemId) (TrackItem, error) {
	t, err := m.get(trackID)
	if err != nil {
		return TrackItem{}, err
	}
	item, ok := t.Items.Get(itemID)
	if !ok {
		return TrackItem{}, rdawerr.New(rdawerr.InvalidId, "track item not found")
	}
	return *item, nil
}

// RemoveItem deletes itemID from track.
func (m *Manager) RemoveItem(trackID Id, itemID ItemId) error {
	t, err := m.get(trackID)
	if err != nil {
		return err
	}
	if !t.Items.Remove(itemID) {
		return rdawerr.New(rdawerr.InvalidId, "track item not found")
	}
	return nil
}

// MoveItem relocates itemID to newStart, leaving its duration unchanged.
func (m *Manager) MoveItem(trackID Id, itemID ItemId, newStart tempo.Time) error {
	t, err := m.get(trackID)
	if err != nil {
		return err
	}
	item, ok := t.Items.Get(itemID)
	if !ok {
		return rdawerr.New(rdawerr.InvalidId, "track item not found")
	}
	item.Start = newStart
	return nil
}

// ResizeItem changes itemID's duration, leaving its start unchanged.
//
// The original backend has a documented bug here: resize_track_item
// calls move_item on the view layer instead of resize_item, so resizing
// an item on screen actually repositions it. This implementation calls
// the correctly-named operation and does not reproduce that bug.
func (m *Manager) ResizeItem(trackID Id, itemID ItemId, newDuration tempo.Time) error {
	t, err := m.get(trackID)
	if err != nil {
		return err
	}
	item, ok := t.Items.Get(itemID)
	if !ok {
		return rdawerr.New(rdawerr.InvalidId, "track item not found")
	}
	item.Duration = newDuration
	return nil
}
