package rpc

import (
	"context"

	"rdawcore/pkg/rpcproto"
)

// Subscribers tracks, per key K, the set of live event streams and a
// pending queue of not-yet-delivered events of type E. Grounded directly
// on the engine's rdaw-rpc Subscribers<K, E>: subscribe/notify/deliver are
// a line-for-line port, generalized with Go generics the way the teacher's
// pkg/events/hub.go generalizes "workspace" into any key.
type Subscribers[K comparable, E any] struct {
	ids     *rpcproto.StreamIdAllocator
	entries map[K]*subEntry[E]
	closed  []*subEntry[E]
	streams map[rpcproto.StreamId]K
}

// EventSender is the narrow capability Deliver needs from a server
// transport: the ability to push a ServerMessage. Any ServerTransport[Req,
// Res, Event] satisfies this structurally regardless of its Req type.
type EventSender[Res, Event any] interface {
	Send(ctx context.Context, msg rpcproto.ServerMessage[Res, Event]) error
}

type subEntry[E any] struct {
	streams       []rpcproto.StreamId
	closedStreams []rpcproto.StreamId
	queue         []E
}

// NewSubscribers creates an empty subscriber table sharing the given
// stream id allocator (stream ids are process-wide unique across every
// Subscribers table, matching the engine's single StreamIdAllocator per
// client connection).
func NewSubscribers[K comparable, E any](ids *rpcproto.StreamIdAllocator) *Subscribers[K, E] {
	return &Subscribers[K, E]{
		ids:     ids,
		entries: make(map[K]*subEntry[E]),
		streams: make(map[rpcproto.StreamId]K),
	}
}

// Subscribe registers a new stream for key and returns its id.
func (s *Subscribers[K, E]) Subscribe(key K) rpcproto.StreamId {
	id := s.ids.Next()

	e, ok := s.entries[key]
	if !ok {
		e = &subEntry[E]{}
		s.entries[key] = e
	}
	e.streams = append(e.streams, id)
	s.streams[id] = key

	return id
}

// Notify enqueues event for delivery to every stream subscribed to key.
// A no-op if nothing is subscribed to that key.
func (s *Subscribers[K, E]) Notify(key K, event E) {
	e, ok := s.entries[key]
	if !ok || len(e.streams) == 0 {
		return
	}
	e.queue = append(e.queue, event)
}

// FindKey returns the key a stream was subscribed under, if it is still live.
func (s *Subscribers[K, E]) FindKey(stream rpcproto.StreamId) (K, bool) {
	k, ok := s.streams[stream]
	return k, ok
}

// CloseAll closes every stream subscribed to key (e.g. the entity it
// tracks was deleted).
func (s *Subscribers[K, E]) CloseAll(key K) {
	if e, ok := s.entries[key]; ok {
		delete(s.entries, key)
		s.closed = append(s.closed, e)
	}
}

// CloseOne closes a single stream (e.g. the client dropped it).
func (s *Subscribers[K, E]) CloseOne(key K, stream rpcproto.StreamId) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	for i, id := range e.streams {
		if id == stream {
			e.streams = append(e.streams[:i], e.streams[i+1:]...)
			e.closedStreams = append(e.closedStreams, stream)
			delete(s.streams, stream)
			return
		}
	}
}

// Deliver flushes every entry's pending queue to its live streams and
// closes any stream that was removed since the last deliver pass. This is
// the cooperative event-loop tick referenced throughout spec §5: the
// backend calls Deliver once per iteration rather than pushing inline from
// every mutation. Each queued event is sent as its own message to every
// live stream of its key, in enqueue order.
func Deliver[K comparable, E, Res any](ctx context.Context, s *Subscribers[K, E], transport EventSender[Res, E], toEvent func(E) E) error {
	var toRemove []K
	var toClose []rpcproto.StreamId

	for key, e := range s.entries {
		if len(e.streams) == 0 {
			e.queue = nil
			toClose = append(toClose, e.closedStreams...)
			toRemove = append(toRemove, key)
			continue
		}

		for _, ev := range e.queue {
			for _, id := range e.streams {
				msg := rpcproto.ServerMessage[Res, E]{
					Kind:      rpcproto.ServerEvent,
					StreamId:  id,
					EventBody: toEvent(ev),
				}
				if err := transport.Send(ctx, msg); err != nil {
					return err
				}
			}
		}
		e.queue = nil
		toClose = append(toClose, e.closedStreams...)
		e.closedStreams = nil
	}

	for _, e := range s.closed {
		toClose = append(toClose, e.streams...)
		toClose = append(toClose, e.closedStreams...)
	}
	s.closed = nil

	for _, key := range toRemove {
		delete(s.entries, key)
	}

	for _, id := range toClose {
		msg := rpcproto.ServerMessage[Res, E]{Kind: rpcproto.ServerCloseStream, StreamId: id}
		if err := transport.Send(ctx, msg); err != nil {
			return err
		}
	}

	return nil
}
