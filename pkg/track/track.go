// Package track implements the track hierarchy (spec §4.E): an ordered
// parent/child DAG with cycle prevention and transitive-ancestor
// maintenance, plus each track's slot-map of TrackItems. Grounded on
// rdaw-backend/src/track/ops.rs and rdaw-object/src/track.rs, with
// direct/transitive ancestor sets implemented as RoaringBitmaps (indexed
// by each Id's slot index) instead of the original's BTreeSet<TrackId> —
// this engine's one domain-stack enrichment beyond what the reference
// used, since track trees can be wide and ancestor-set membership tests
// run on every hierarchy mutation.
package track

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"rdawcore/pkg/object"
	"rdawcore/pkg/tempo"
)

// Id identifies a Track; ItemId identifies a TrackItem within one Track's
// local item slot-map.
type Id = object.Id[Track]
type ItemId = object.Id[TrackItem]

// Links holds a Track's hierarchy edges.
type Links struct {
	Children        []Id
	DirectAncestors *roaring.Bitmap
	Ancestors       *roaring.Bitmap
}

// Track is the hierarchy node and item container (spec §3.2).
type Track struct {
	Name  string
	Links Links
	Items *object.Storage[TrackItem]
}

// New creates an empty, parentless, childless track.
func New(name string) *Track {
	return &Track{
		Name: name,
		Links: Links{
			DirectAncestors: roaring.New(),
			Ancestors:       roaring.New(),
		},
		Items: object.NewStorage[TrackItem](),
	}
}

// ItemRef is a reference to the item a TrackItem places on the timeline.
// Kept as a type+UUID pair (like every other cross-entity reference in
// the object graph, spec §3.4) rather than a concrete AudioItem handle,
// since a track item's inner item is resolved through the hub, not
// embedded.
type ItemRef struct {
	Type object.ObjectType
	UUID uuid.UUID
}

// TrackItem places a referenced item on a track's timeline (spec §3.2).
type TrackItem struct {
	Inner    ItemRef
	Start    tempo.Time
	Duration tempo.Time
}
