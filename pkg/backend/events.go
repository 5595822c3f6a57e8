package backend

import (
	"rdawcore/pkg/tempo"
	"rdawcore/pkg/track"
)

// TrackEventKind tags the union of events a track subscriber can receive,
// the Go analogue of the original's per-variant TrackEvent enum (spec §4.E,
// §4.F, §8 scenario S2).
type TrackEventKind int

const (
	EventNameChanged TrackEventKind = iota
	EventChildrenChanged
	EventItemAdded
	EventItemRemoved
	EventItemMoved
	EventItemResized
)

func (k TrackEventKind) String() string {
	switch k {
	case EventNameChanged:
		return "NameChanged"
	case EventChildrenChanged:
		return "ChildrenChanged"
	case EventItemAdded:
		return "ItemAdded"
	case EventItemRemoved:
		return "ItemRemoved"
	case EventItemMoved:
		return "ItemMoved"
	case EventItemResized:
		return "ItemResized"
	default:
		return "Unknown"
	}
}

// TrackEvent is the tagged payload delivered to every stream subscribed to
// one track id. Only the fields relevant to Kind are populated, matching
// the original's enum-of-structs shape flattened into Go's lack of tagged
// unions the same way rpcproto.ServerMessage flattens Response/Event/Error.
type TrackEvent struct {
	Kind TrackEventKind

	NewName     string
	NewChildren []track.Id

	ItemId      track.ItemId
	Item        *track.TrackItem
	NewStart    *tempo.Time
	NewDuration *tempo.Time
}
