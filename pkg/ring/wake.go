package ring

import "sync"

// Waker is the companion "wake primitive" for blocking Send/Recv built on
// top of a ring (spec §4.A). Each side advertises how many free slots (or
// available elements) it is blocked waiting for; the peer signals after
// every successful transfer, and the woken side rechecks its own condition.
//
// Go's runtime scheduler makes a parked goroutine cheap, so this is built
// on a condition variable rather than a futex/named-event: the semantics
// (advertise-then-recheck, signal-on-transfer) are identical to the
// thread-park/futex design the spec describes for native code, and the
// async "reactor waiting on many futexes" variant is simply every blocked
// goroutine being multiplexed by the Go scheduler instead of a bespoke
// epoll-of-futexes loop.
type Waker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	waiting int // slots the blocked side is waiting for, 0 if none
}

// NewWaker creates a waker for one side of a ring.
func NewWaker() *Waker {
	w := &Waker{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Wait blocks until ready() reports true, re-checking after every Signal.
// needed is recorded only for observability/metrics parity with the spec's
// "advertised counter"; the actual recheck is the ready() closure.
func (w *Waker) Wait(needed int, ready func() bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.waiting = needed
	for !ready() {
		w.cond.Wait()
	}
	w.waiting = 0
}

// Signal wakes the waiter unconditionally; it is called by the peer after
// every successful push/pop, mirroring the spec's "after every successful
// transfer, reads the counter and, if satisfied, signals".
func (w *Waker) Signal() {
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}

// Waiting reports the number of slots/elements currently being waited for,
// or 0 if the side is not parked.
func (w *Waker) Waiting() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.waiting
}
