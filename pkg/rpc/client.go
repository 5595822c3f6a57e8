package rpc

import (
	"context"
	"sync"

	"rdawcore/pkg/rpcproto"
)

// Client sends requests to a Server and demultiplexes responses and
// events back to their callers. Grounded on the engine's rdaw-rpc
// Client<P, T>: the original parks a task's Waker in a RequestSlot and
// wakes it from the read loop; the Go translation replaces "park a waker,
// poll a future" with "block receiving from a per-request channel", which
// is the idiomatic Go equivalent of the same wait/wake contract.
type Client[Req, Res, Event any] struct {
	transport ClientTransport[Req, Res, Event]
	reqIds    rpcproto.RequestIdAllocator

	mu       sync.Mutex
	pending  map[rpcproto.RequestId]chan pendingResult[Res]
	streams  map[rpcproto.StreamId]chan Event
	draining map[rpcproto.StreamId]struct{} // streams this client has asked the server to close
}

type pendingResult[Res any] struct {
	value Res
	err   *rpcproto.Error
}

// NewClient wraps a transport in request/response and subscription
// bookkeeping.
func NewClient[Req, Res, Event any](transport ClientTransport[Req, Res, Event]) *Client[Req, Res, Event] {
	return &Client[Req, Res, Event]{
		transport: transport,
		pending:   make(map[rpcproto.RequestId]chan pendingResult[Res]),
		streams:   make(map[rpcproto.StreamId]chan Event),
		draining:  make(map[rpcproto.StreamId]struct{}),
	}
}

// Request sends req and blocks until the matching response arrives (or the
// transport disconnects).
func (c *Client[Req, Res, Event]) Request(ctx context.Context, req Req) (Res, error) {
	var zero Res

	id := c.reqIds.Next()
	ch := make(chan pendingResult[Res], 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	msg := rpcproto.ClientMessage[Req]{Kind: rpcproto.ClientRequest, RequestId: id, RequestBody: req}
	if err := c.transport.Send(ctx, msg); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return zero, err
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return zero, r.err
		}
		return r.value, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return zero, ctx.Err()
	}
}

// Subscribe registers interest in a stream the server will later open for
// id (typically id is one field of a response that just requested a
// subscription). The returned channel receives events until the server
// closes the stream or Unsubscribe is called.
func (c *Client[Req, Res, Event]) Subscribe(id rpcproto.StreamId) <-chan Event {
	ch := make(chan Event, 64)
	c.mu.Lock()
	c.streams[id] = ch
	c.mu.Unlock()
	return ch
}

// Unsubscribe tells the server to stop delivering events for id. The
// actual ClientMessage is flushed on the next Run loop iteration.
func (c *Client[Req, Res, Event]) Unsubscribe(id rpcproto.StreamId) {
	c.mu.Lock()
	if ch, ok := c.streams[id]; ok {
		delete(c.streams, id)
		close(ch)
		c.draining[id] = struct{}{}
	}
	c.mu.Unlock()
}

// Run processes incoming server messages until the transport disconnects
// or ctx is cancelled, dispatching responses to their waiting Request
// calls and events to their subscribed channels. It also flushes
// CloseStream notifications queued by Unsubscribe.
func (c *Client[Req, Res, Event]) Run(ctx context.Context) error {
	for {
		c.flushCloses(ctx)

		msg, err := c.transport.Recv(ctx)
		if err != nil {
			c.disconnectAll(err)
			return err
		}

		switch msg.Kind {
		case rpcproto.ServerResponse:
			c.mu.Lock()
			ch, ok := c.pending[msg.RequestId]
			delete(c.pending, msg.RequestId)
			c.mu.Unlock()
			if ok {
				ch <- pendingResult[Res]{value: msg.ResponseOk, err: msg.ResponseErr}
			}

		case rpcproto.ServerEvent:
			c.mu.Lock()
			ch, ok := c.streams[msg.StreamId]
			c.mu.Unlock()
			if ok {
				select {
				case ch <- msg.EventBody:
				default:
				}
			}

		case rpcproto.ServerCloseStream:
			c.mu.Lock()
			if ch, ok := c.streams[msg.StreamId]; ok {
				delete(c.streams, msg.StreamId)
				close(ch)
			}
			c.mu.Unlock()
		}
	}
}

func (c *Client[Req, Res, Event]) flushCloses(ctx context.Context) {
	c.mu.Lock()
	ids := make([]rpcproto.StreamId, 0, len(c.draining))
	for id := range c.draining {
		ids = append(ids, id)
		delete(c.draining, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		_ = c.transport.Send(ctx, rpcproto.ClientMessage[Req]{Kind: rpcproto.ClientCloseStream, StreamId: id})
	}
}

func (c *Client[Req, Res, Event]) disconnectAll(err error) {
	protoErr := rpcproto.NewDisconnected()
	if pe, ok := err.(*rpcproto.Error); ok {
		protoErr = pe
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- pendingResult[Res]{err: protoErr}
		delete(c.pending, id)
	}
	for id, ch := range c.streams {
		close(ch)
		delete(c.streams, id)
	}
}
