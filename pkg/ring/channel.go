package ring

import "rdawcore/pkg/rdawerr"

// Sender pairs a Producer with the channel's pair of wakers so Send can
// block until space frees up, the way the spec's async senders suspend
// instead of spinning. notEmpty and notFull are shared with the paired
// Receiver (one Waker per direction, not one per endpoint): a push signals
// notEmpty, which is what a parked Recv waits on, and a pop signals
// notFull, which is what a parked Send waits on.
type Sender[T any] struct {
	p        *Producer[T]
	notEmpty *Waker
	notFull  *Waker
}

// Receiver is the Sender's counterpart, sharing the same notEmpty/notFull
// pair.
type Receiver[T any] struct {
	c        *Consumer[T]
	notEmpty *Waker
	notFull  *Waker
}

// NewChannel builds a bounded SPSC channel: a ring plus the two wakers its
// endpoints signal each other through.
func NewChannel[T any](capacity int) (*Sender[T], *Receiver[T]) {
	p, c := New[T](capacity)
	notEmpty := NewWaker()
	notFull := NewWaker()
	return &Sender[T]{p: p, notEmpty: notEmpty, notFull: notFull},
		&Receiver[T]{c: c, notEmpty: notEmpty, notFull: notFull}
}

// Send blocks until the value is pushed or the consumer disconnects.
func (s *Sender[T]) Send(v T) error {
	err := s.p.Push(v)
	if err == nil {
		s.notEmpty.Signal()
		return nil
	}
	if rdawerr.KindOf(err) == rdawerr.Disconnected {
		return err
	}

	s.notFull.Wait(1, func() bool {
		err = s.p.Push(v)
		return err == nil || rdawerr.KindOf(err) == rdawerr.Disconnected
	})
	if err == nil {
		s.notEmpty.Signal()
	}
	return err
}

// TrySend is the non-blocking variant used by the cooperative RPC event
// loop (spec §4.B "flushed during a cooperative deliver pass").
func (s *Sender[T]) TrySend(v T) error {
	err := s.p.Push(v)
	if err == nil {
		s.notEmpty.Signal()
	}
	return err
}

// Close marks this endpoint closed and wakes any Recv parked waiting for
// data, so it observes Disconnected instead of blocking forever.
func (s *Sender[T]) Close() {
	s.p.Close()
	s.notEmpty.Signal()
}

// Recv blocks until a value is available or the producer disconnects
// with nothing left to drain.
func (r *Receiver[T]) Recv() (T, error) {
	v, err := r.c.Pop()
	if err == nil {
		r.notFull.Signal()
		return v, nil
	}
	if rdawerr.KindOf(err) == rdawerr.Disconnected {
		return v, err
	}

	r.notEmpty.Wait(1, func() bool {
		v, err = r.c.Pop()
		return err == nil || rdawerr.KindOf(err) == rdawerr.Disconnected
	})
	if err == nil {
		r.notFull.Signal()
	}
	return v, err
}

// TryRecv is the non-blocking variant.
func (r *Receiver[T]) TryRecv() (T, error) {
	return r.c.Pop()
}

// Close marks this endpoint closed and wakes any Send parked waiting for
// space, so it observes Disconnected instead of blocking forever.
func (r *Receiver[T]) Close() {
	r.c.Close()
	r.notFull.Signal()
}
