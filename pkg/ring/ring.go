// Package ring implements a lock-free single-producer/single-consumer
// bounded ring buffer (spec §4.A). Capacity must be a power of two. Index
// state is packed into a single atomic word per side: the low 63 bits are
// a monotonically wrapping index, the top bit is a "closed" flag set by
// that side when its endpoint is dropped.
//
// This is the local (single-process, heap-allocated) variant. A
// shared-memory variant sharing the same push/pop/refresh contract is a
// natural extension (see docwatch/assethistory for how this module keeps
// process-local state instead) but is not implemented here: nothing in
// this engine's in-process transport (pkg/rpc) requires crossing a process
// boundary, since network/IPC transport is an explicit spec non-goal.
package ring

import (
	"sync/atomic"

	"rdawcore/pkg/rdawerr"
)

const closedBit uint64 = 1 << 63

func pack(index uint64, closed bool) uint64 {
	index &^= closedBit
	if closed {
		return index | closedBit
	}
	return index
}

func unpack(word uint64) (index uint64, closed bool) {
	return word &^ closedBit, word&closedBit != 0
}

// core is the state shared between a Producer and a Consumer.
type core[T any] struct {
	buf  []T
	mask uint64

	// writeState is only ever written by the producer; read by both.
	writeState atomic.Uint64
	// readState is only ever written by the consumer; read by both.
	readState atomic.Uint64

	refcount atomic.Int32
}

// New creates a bounded SPSC ring of the given capacity (rounded up to the
// next power of two, clamped to [1, 1<<31]) and returns its two endpoints.
func New[T any](capacity int) (*Producer[T], *Consumer[T]) {
	capacity = nextPow2(capacity)

	c := &core[T]{
		buf:  make([]T, capacity),
		mask: uint64(capacity - 1),
	}
	c.refcount.Store(2)

	return &Producer[T]{core: c}, &Consumer[T]{core: c}
}

func nextPow2(n int) int {
	if n < 1 {
		n = 1
	}
	if n > 1<<31 {
		n = 1 << 31
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (c *core[T]) release() {
	if c.refcount.Add(-1) == 0 {
		var zero T
		for i := range c.buf {
			c.buf[i] = zero
		}
	}
}

// Producer is the write endpoint of a ring.
type Producer[T any] struct {
	core       *core[T]
	cachedRead uint64
	write      uint64
}

// Push writes a single value. It fails with OutOfMemory ("ring: full") if
// the ring is at capacity (after refreshing the cached read index), or Disconnected if
// the consumer has been closed.
func (p *Producer[T]) Push(v T) error {
	if p.write-p.cachedRead >= uint64(len(p.core.buf)) {
		p.refresh()
		if p.write-p.cachedRead >= uint64(len(p.core.buf)) {
			if _, closed := unpack(p.core.readState.Load()); closed {
				return rdawerr.New(rdawerr.Disconnected, "ring: consumer closed")
			}
			return rdawerr.New(rdawerr.OutOfMemory, "ring: full")
		}
	}

	p.core.buf[p.write&p.core.mask] = v
	p.write++
	p.core.writeState.Store(pack(p.write, false))
	return nil
}

// PushSlice writes the whole slice atomically: either every element is
// written, or none are (OutOfMemory/Disconnected is returned and the ring is
// unchanged).
func (p *Producer[T]) PushSlice(vs []T) error {
	p.refresh()
	free := uint64(len(p.core.buf)) - (p.write - p.cachedRead)
	if uint64(len(vs)) > free {
		if _, closed := unpack(p.core.readState.Load()); closed {
			return rdawerr.New(rdawerr.Disconnected, "ring: consumer closed")
		}
		return rdawerr.New(rdawerr.OutOfMemory, "ring: full")
	}

	start := p.write & p.core.mask
	n := uint64(len(p.core.buf))
	first := n - start
	if first > uint64(len(vs)) {
		first = uint64(len(vs))
	}
	copy(p.core.buf[start:], vs[:first])
	if rest := uint64(len(vs)) - first; rest > 0 {
		copy(p.core.buf[:rest], vs[first:])
	}

	p.write += uint64(len(vs))
	p.core.writeState.Store(pack(p.write, false))
	return nil
}

func (p *Producer[T]) refresh() {
	idx, _ := unpack(p.core.readState.Load())
	p.cachedRead = idx
}

// Close marks the producer side as closed; the consumer's Pop will still
// drain remaining elements, then return Disconnected once empty.
func (p *Producer[T]) Close() {
	p.core.writeState.Store(pack(p.write, true))
	p.core.release()
}

// Consumer is the read endpoint of a ring.
type Consumer[T any] struct {
	core        *core[T]
	cachedWrite uint64
	read        uint64
}

// Pop removes a single value, or fails with NotFound ("ring: empty") if
// none are available, or Disconnected once the producer has closed and
// every written element has been drained.
func (c *Consumer[T]) Pop() (T, error) {
	var zero T
	if c.read == c.cachedWrite {
		c.refresh()
		if c.read == c.cachedWrite {
			if _, closed := unpack(c.core.writeState.Load()); closed {
				return zero, rdawerr.New(rdawerr.Disconnected, "ring: producer closed")
			}
			return zero, rdawerr.New(rdawerr.NotFound, "ring: empty")
		}
	}

	v := c.core.buf[c.read&c.core.mask]
	c.core.buf[c.read&c.core.mask] = zero
	c.read++
	c.core.readState.Store(pack(c.read, false))
	return v, nil
}

// PopSlice drains up to len(out) elements into out, returning the number
// popped. It never partially blocks: it pops whatever is currently
// available (possibly zero), handling ring wrap-around with two copies.
func (c *Consumer[T]) PopSlice(out []T) (int, error) {
	if c.cachedWrite-c.read < uint64(len(out)) {
		c.refresh()
	}

	avail := c.cachedWrite - c.read
	n := uint64(len(out))
	if n > avail {
		n = avail
	}

	if n == 0 {
		if _, closed := unpack(c.core.writeState.Load()); closed {
			return 0, rdawerr.New(rdawerr.Disconnected, "ring: producer closed")
		}
		return 0, nil
	}

	start := c.read & c.core.mask
	bufLen := uint64(len(c.core.buf))
	first := bufLen - start
	if first > n {
		first = n
	}
	copy(out[:first], c.core.buf[start:start+first])
	if rest := n - first; rest > 0 {
		copy(out[first:n], c.core.buf[:rest])
	}

	c.read += n
	c.core.readState.Store(pack(c.read, false))
	return int(n), nil
}

func (c *Consumer[T]) refresh() {
	idx, _ := unpack(c.core.writeState.Load())
	c.cachedWrite = idx
}

// Close marks the consumer side as closed; subsequent Push calls observe
// Disconnected once they notice (refresh is lazy, matching the spec's
// "cached indices may be stale until refresh() is called").
func (c *Consumer[T]) Close() {
	c.core.readState.Store(pack(c.read, true))
	c.core.release()
}
