// Package tempo implements the engine's two time domains (spec §3.2):
// RealTime, a plain nanosecond count, and BeatTime, an I32.32 fixed-point
// count of beats, plus the TempoMap that converts between them. Grounded
// on rdaw-core/src/time.rs (RealTime) and rdaw-api/src/time.rs (BeatTime,
// backed there by the `fixed` crate's I32F32) and rdaw-backend's
// tempo_map/mod.rs.
package tempo

import "math"

const nanosPerSec = 1_000_000_000

// RealTime is a signed count of nanoseconds.
type RealTime struct {
	nanos int64
}

var (
	RealZero = RealTime{0}
	RealMin  = RealTime{math.MinInt64}
	RealMax  = RealTime{math.MaxInt64}
)

func RealFromNanos(nanos int64) RealTime { return RealTime{nanos: nanos} }
func RealFromSecs(secs int64) RealTime   { return RealTime{nanos: secs * nanosPerSec} }

func RealFromSecsF64(secs float64) RealTime {
	return RealTime{nanos: int64(secs * float64(nanosPerSec))}
}

func (t RealTime) Nanos() int64     { return t.nanos }
func (t RealTime) Secs() int64      { return t.nanos / nanosPerSec }
func (t RealTime) SecsF64() float64 { return float64(t.nanos) / float64(nanosPerSec) }

func (t RealTime) Add(o RealTime) RealTime { return RealTime{nanos: t.nanos + o.nanos} }
func (t RealTime) Sub(o RealTime) RealTime { return RealTime{nanos: t.nanos - o.nanos} }
func (t RealTime) Less(o RealTime) bool    { return t.nanos < o.nanos }
func (t RealTime) Compare(o RealTime) int {
	switch {
	case t.nanos < o.nanos:
		return -1
	case t.nanos > o.nanos:
		return 1
	default:
		return 0
	}
}

// ApproxEq reports whether t and o differ by no more than eps.
func (t RealTime) ApproxEq(o RealTime, eps RealTime) bool {
	diff := t.nanos - o.nanos
	if diff < 0 {
		diff = -diff
	}
	e := eps.nanos
	if e < 0 {
		e = -e
	}
	return diff <= e
}

// beatFracBits is the number of fractional bits in the I32.32 fixed-point
// representation of a beat count: 32 integer bits, 32 fractional bits,
// stored in an int64 the way the `fixed` crate's I32F32 packs into 64
// bits.
const beatFracBits = 32

// BeatTime is a signed I32.32 fixed-point count of beats.
type BeatTime struct {
	raw int64 // beats * 2^32
}

var (
	BeatZero = BeatTime{0}
	BeatMin  = BeatTime{math.MinInt64}
	BeatMax  = BeatTime{math.MaxInt64}
)

func BeatFromBeats(beats int32) BeatTime {
	return BeatTime{raw: int64(beats) << beatFracBits}
}

func BeatFromBeatsF64(beats float64) BeatTime {
	return BeatTime{raw: int64(math.Round(beats * (1 << beatFracBits)))}
}

func (b BeatTime) AsBeats() int32     { return int32(b.raw >> beatFracBits) }
func (b BeatTime) AsBeatsF64() float64 { return float64(b.raw) / (1 << beatFracBits) }

func (b BeatTime) Add(o BeatTime) BeatTime { return BeatTime{raw: b.raw + o.raw} }
func (b BeatTime) Sub(o BeatTime) BeatTime { return BeatTime{raw: b.raw - o.raw} }
func (b BeatTime) Less(o BeatTime) bool    { return b.raw < o.raw }
func (b BeatTime) Compare(o BeatTime) int {
	switch {
	case b.raw < o.raw:
		return -1
	case b.raw > o.raw:
		return 1
	default:
		return 0
	}
}

// TimeKind tags which domain a Time value is expressed in.
type TimeKind int

const (
	TimeReal TimeKind = iota
	TimeBeat
)

// Time is the tagged union of the two time domains an arrangement
// position may be expressed in (spec §3.2): a track item's offset, for
// instance, is stored as whichever domain the user placed it in, and is
// converted on demand via a TempoMap.
type Time struct {
	Kind TimeKind
	Real RealTime
	Beat BeatTime
}

func FromReal(t RealTime) Time { return Time{Kind: TimeReal, Real: t} }
func FromBeat(t BeatTime) Time { return Time{Kind: TimeBeat, Beat: t} }
