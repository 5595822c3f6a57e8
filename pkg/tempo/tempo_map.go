package tempo

import (
	"sync"

	"github.com/google/uuid"
)

// TempoMap converts between RealTime and BeatTime at a fixed tempo.
// Grounded on rdaw-backend/src/tempo_map/mod.rs; tempo curves (multiple
// tempo changes over an arrangement) are out of scope per spec.md, so a
// TempoMap here is always a single constant beats-per-minute value.
type TempoMap struct {
	uuid uuid.UUID

	mu  sync.RWMutex
	bpm float32

	// onChange is invoked with the new bpm whenever SetBeatsPerMinute
	// succeeds, so that every TrackView computed against this map can
	// eagerly recompute its cached real-time bounds (OPEN QUESTION
	// DECISIONS: eager invalidation over lazy tagging).
	onChange []func(bpm float32)
}

// New creates a tempo map at the given beats-per-minute.
func New(beatsPerMinute float32) *TempoMap {
	return &TempoMap{uuid: uuid.New(), bpm: beatsPerMinute}
}

func (m *TempoMap) UUID() uuid.UUID { return m.uuid }

// BeatsPerMinute returns the current tempo.
func (m *TempoMap) BeatsPerMinute() float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bpm
}

// SetBeatsPerMinute changes the tempo and synchronously notifies every
// registered listener (spec §3.3: "the audio render thread must never
// observe a stale real_start/real_end once a parameter changes").
func (m *TempoMap) SetBeatsPerMinute(bpm float32) {
	m.mu.Lock()
	m.bpm = bpm
	listeners := append([]func(float32){}, m.onChange...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(bpm)
	}
}

// OnChange registers fn to be called, with the new bpm, every time
// SetBeatsPerMinute is called. pkg/backend registers a listener per
// arrangement to recompute that arrangement's cached TrackViews.
func (m *TempoMap) OnChange(fn func(bpm float32)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// ToReal converts a Time in either domain to RealTime.
func (m *TempoMap) ToReal(t Time) RealTime {
	if t.Kind == TimeReal {
		return t.Real
	}
	return m.BeatToReal(t.Beat)
}

// ToBeat converts a Time in either domain to BeatTime.
func (m *TempoMap) ToBeat(t Time) BeatTime {
	if t.Kind == TimeBeat {
		return t.Beat
	}
	return m.RealToBeat(t.Real)
}

// RealToBeat converts a RealTime to BeatTime at the current tempo.
func (m *TempoMap) RealToBeat(real RealTime) BeatTime {
	bpm := float64(m.BeatsPerMinute())
	beats := real.SecsF64() / 60.0 * bpm
	return BeatFromBeatsF64(beats)
}

// BeatToReal converts a BeatTime to RealTime at the current tempo.
func (m *TempoMap) BeatToReal(beat BeatTime) RealTime {
	bpm := float64(m.BeatsPerMinute())
	seconds := beat.AsBeatsF64() / bpm * 60.0
	return RealFromSecsF64(seconds)
}
