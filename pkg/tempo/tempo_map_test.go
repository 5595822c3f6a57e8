package tempo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeatRealRoundTrip(t *testing.T) {
	m := New(120)

	for _, beats := range []float64{0, 1, 2.5, 16, 123.75, -4} {
		real := m.BeatToReal(BeatFromBeatsF64(beats))
		back := m.RealToBeat(real)
		assert.InDelta(t, beats, back.AsBeatsF64(), 1e-4)
	}
}

func TestRealBeatRoundTrip(t *testing.T) {
	m := New(95)

	for _, secs := range []float64{0, 0.5, 1, 10, 61.25} {
		real := RealFromSecsF64(secs)
		beat := m.RealToBeat(real)
		back := m.BeatToReal(beat)
		assert.InDelta(t, secs, back.SecsF64(), 1e-3)
	}
}

func TestToRealToBeatPassThroughForNativeDomain(t *testing.T) {
	m := New(140)

	real := RealFromSecs(2)
	assert.Equal(t, real, m.ToReal(FromReal(real)))

	beat := BeatFromBeats(4)
	assert.Equal(t, beat, m.ToBeat(FromBeat(beat)))
}

func TestSetBeatsPerMinuteNotifiesListenersEagerly(t *testing.T) {
	m := New(120)

	var seen float32
	calls := 0
	m.OnChange(func(bpm float32) {
		seen = bpm
		calls++
	})

	m.SetBeatsPerMinute(150)
	assert.Equal(t, float32(150), seen)
	assert.Equal(t, 1, calls)
	assert.Equal(t, float32(150), m.BeatsPerMinute())
}

func TestBeatFixedPointPrecision(t *testing.T) {
	b := BeatFromBeatsF64(1.0 / 3.0)
	assert.False(t, math.IsNaN(b.AsBeatsF64()))
	assert.InDelta(t, 1.0/3.0, b.AsBeatsF64(), 1e-9)
}
