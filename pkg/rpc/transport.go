// Package rpc implements the RPC boundary between the backend engine
// task and its UI client (spec §5): request/response dispatch, server-push
// event subscriptions, and the local in-process transport the single
// backend process uses to talk to itself. Grounded on the teacher's
// pkg/tool/registry.go (dispatch) and pkg/transport/stdio.go (the
// read-loop shape), generalized with the Go analogue of the original
// engine's rdaw-rpc crate (Protocol/Client/Subscribers).
package rpc

import (
	"context"

	"rdawcore/pkg/ring"
	"rdawcore/pkg/rpcproto"
)

// ClientTransport is how a Client sends requests and receives responses
// and events.
type ClientTransport[Req, Res, Event any] interface {
	Send(ctx context.Context, msg rpcproto.ClientMessage[Req]) error
	Recv(ctx context.Context) (rpcproto.ServerMessage[Res, Event], error)
}

// ServerTransport is how a Server receives requests and sends responses
// and events.
type ServerTransport[Req, Res, Event any] interface {
	Send(ctx context.Context, msg rpcproto.ServerMessage[Res, Event]) error
	Recv(ctx context.Context) (rpcproto.ClientMessage[Req], error)
}

// Local builds a connected pair of in-process transports backed by
// pkg/ring's SPSC channels, the same local-ring transport the original
// engine used before any network/IPC concern existed (spec §5, "the
// backend and its frontend run in the same process"; network transport is
// an explicit non-goal). capacity bounds how many in-flight messages can
// queue in either direction before Send blocks.
func Local[Req, Res, Event any](capacity int) (ClientTransport[Req, Res, Event], ServerTransport[Req, Res, Event]) {
	toServer, fromClient := ring.NewChannel[rpcproto.ClientMessage[Req]](capacity)
	toClient, fromServer := ring.NewChannel[rpcproto.ServerMessage[Res, Event]](capacity)

	return &localClient[Req, Res, Event]{send: toServer, recv: fromServer},
		&localServer[Req, Res, Event]{send: toClient, recv: fromClient}
}

type localClient[Req, Res, Event any] struct {
	send *ring.Sender[rpcproto.ClientMessage[Req]]
	recv *ring.Receiver[rpcproto.ServerMessage[Res, Event]]
}

func (t *localClient[Req, Res, Event]) Send(_ context.Context, msg rpcproto.ClientMessage[Req]) error {
	return wrapRingErr(t.send.Send(msg))
}

func (t *localClient[Req, Res, Event]) Recv(_ context.Context) (rpcproto.ServerMessage[Res, Event], error) {
	msg, err := t.recv.Recv()
	return msg, wrapRingErr(err)
}

type localServer[Req, Res, Event any] struct {
	send *ring.Sender[rpcproto.ServerMessage[Res, Event]]
	recv *ring.Receiver[rpcproto.ClientMessage[Req]]
}

func (t *localServer[Req, Res, Event]) Send(_ context.Context, msg rpcproto.ServerMessage[Res, Event]) error {
	return wrapRingErr(t.send.Send(msg))
}

func (t *localServer[Req, Res, Event]) Recv(_ context.Context) (rpcproto.ClientMessage[Req], error) {
	msg, err := t.recv.Recv()
	return msg, wrapRingErr(err)
}

func wrapRingErr(err error) error {
	if err == nil {
		return nil
	}
	return rpcproto.NewDisconnected()
}
