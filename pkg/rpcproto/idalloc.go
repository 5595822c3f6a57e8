package rpcproto

import "sync/atomic"

// IdAllocator hands out monotonically increasing ids, grounded on the
// teacher's atomic-counter style (spec §5.2 "RequestId/StreamId are
// allocated from a process-wide monotonic counter").
type IdAllocator[I ~uint64] struct {
	counter atomic.Uint64
}

// Next returns the next id in sequence, starting at 0.
func (a *IdAllocator[I]) Next() I {
	return I(a.counter.Add(1) - 1)
}

// RequestIdAllocator and StreamIdAllocator are the two concrete
// instantiations used by the client and server.
type RequestIdAllocator = IdAllocator[RequestId]
type StreamIdAllocator = IdAllocator[StreamId]
