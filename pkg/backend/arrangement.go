package backend

import (
	"github.com/google/uuid"

	"rdawcore/pkg/object"
	"rdawcore/pkg/tempo"
	"rdawcore/pkg/track"
	"rdawcore/pkg/trackview"
)

// ArrangementId identifies an Arrangement in the hub.
type ArrangementId = object.Id[Arrangement]

// Arrangement is the top-level authored document (spec §3.2, GLOSSARY): a
// name, a main track, and the tempo map that main track's items resolve
// through. UUID is carried on the struct itself (rather than looked up via
// object.Storage[Arrangement].Metadata) since pkg/trackview.Key addresses
// an arrangement by bare uuid.UUID and callers need to go uuid -> Arrangement
// without a second index.
type Arrangement struct {
	UUID       uuid.UUID
	Name       string
	MainTrack  track.Id
	TempoMapId object.Id[tempo.TempoMap]
}

// CreateArrangement creates a new arrangement with a fresh main track and a
// tempo map at the given beats-per-minute, wiring the tempo map's OnChange
// callback to eagerly recompute every cached TrackView that depends on it
// (OPEN QUESTION DECISION: eager invalidation, see pkg/tempo.TempoMap).
func (b *Backend) CreateArrangement(name string, bpm float32) ArrangementId {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trackNameSeq++
	mainTrack := b.hub.Tracks.Insert(object.Metadata{UUID: uuid.New()}, *track.New(name))

	tm := tempo.New(bpm)
	tempoId := b.hub.TempoMaps.Insert(object.Metadata{UUID: tm.UUID()}, *tm)

	arrUUID := uuid.New()
	arrId := b.hub.Arrangements.Insert(object.Metadata{UUID: arrUUID}, Arrangement{
		UUID:       arrUUID,
		Name:       name,
		MainTrack:  mainTrack,
		TempoMapId: tempoId,
	})

	stored, _ := b.hub.TempoMaps.Get(tempoId)
	stored.OnChange(func(float32) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.invalidateArrangementViews(arrUUID)
	})

	return arrId
}

// GetArrangement returns the arrangement by id.
func (b *Backend) GetArrangement(id ArrangementId) (Arrangement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, err := b.hub.Arrangements.GetOrErr(id)
	if err != nil {
		return Arrangement{}, err
	}
	return *a, nil
}

// SetArrangementTempo changes the beats-per-minute of id's tempo map.
func (b *Backend) SetArrangementTempo(id ArrangementId, bpm float32) error {
	b.mu.Lock()
	a, err := b.hub.Arrangements.GetOrErr(id)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	tm, err := b.hub.TempoMaps.GetOrErr(a.TempoMapId)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.mu.Unlock()

	tm.SetBeatsPerMinute(bpm) // fires OnChange, which re-takes b.mu itself
	return nil
}

func (b *Backend) findArrangementByUUID(id uuid.UUID) (*Arrangement, bool) {
	var found *Arrangement
	b.hub.Arrangements.Iter(func(_ ArrangementId, _ object.Metadata, a *Arrangement) bool {
		if a.UUID == id {
			found = a
			return false
		}
		return true
	})
	return found, found != nil
}

func (b *Backend) tempoMapFor(arrangementUUID uuid.UUID) (*tempo.TempoMap, bool) {
	a, ok := b.findArrangementByUUID(arrangementUUID)
	if !ok {
		return nil, false
	}
	tm, ok := b.hub.TempoMaps.Get(a.TempoMapId)
	return tm, ok
}

func (b *Backend) invalidateArrangementViews(arrangementUUID uuid.UUID) {
	b.hub.Views.InvalidateByTempoMap([]uuid.UUID{arrangementUUID}, func(key trackview.Key) (*track.Track, *tempo.TempoMap) {
		t, ok := b.hub.Tracks.Get(key.TrackId)
		if !ok {
			return nil, nil
		}
		tm, ok := b.tempoMapFor(key.ArrangementId)
		if !ok {
			return nil, nil
		}
		return t, tm
	})
}
