package rpc

import (
	"context"
	"log/slog"

	"rdawcore/pkg/rpcproto"
)

// HandlerFunc dispatches one decoded request to whatever backend state it
// addresses, returning either a response payload or a protocol error.
// Generalizes the teacher's tool.HandlerFunc (params []byte) (interface{},
// *mcp.Error) by carrying the request/response as native Go values instead
// of a raw-JSON params blob, since this engine's handlers operate directly
// on in-memory objects rather than marshalling through JSON at the
// dispatch boundary.
type HandlerFunc[Req, Res any] func(ctx context.Context, req Req) (Res, *rpcproto.Error)

// Server owns a ServerTransport and a single dispatch function. Unlike the
// teacher's Registry (one handler per named tool), this engine's Req is a
// single tagged union covering every operation (spec §5.1), so dispatch
// reduces to one type switch inside the caller-supplied HandlerFunc; Server
// itself is just the read/dispatch/write loop, grounded on
// pkg/transport/stdio.go's RunStdio.
type Server[Req, Res, Event any] struct {
	transport ServerTransport[Req, Res, Event]
	handle    HandlerFunc[Req, Res]
	log       *slog.Logger
}

// NewServer builds a server around transport, dispatching every request to
// handle.
func NewServer[Req, Res, Event any](transport ServerTransport[Req, Res, Event], handle HandlerFunc[Req, Res], log *slog.Logger) *Server[Req, Res, Event] {
	if log == nil {
		log = slog.Default()
	}
	return &Server[Req, Res, Event]{transport: transport, handle: handle, log: log}
}

// Run reads client messages until the transport disconnects or ctx is
// cancelled, dispatching each request through handle and writing back the
// response. CloseStream messages are passed through via onCloseStream so
// the caller can clean up its Subscribers table.
func (s *Server[Req, Res, Event]) Run(ctx context.Context, onCloseStream func(rpcproto.StreamId)) error {
	for {
		msg, err := s.transport.Recv(ctx)
		if err != nil {
			return err
		}

		switch msg.Kind {
		case rpcproto.ClientRequest:
			res, protoErr := s.handle(ctx, msg.RequestBody)
			reply := rpcproto.ServerMessage[Res, Event]{
				Kind:        rpcproto.ServerResponse,
				RequestId:   msg.RequestId,
				ResponseOk:  res,
				ResponseErr: protoErr,
			}
			if err := s.transport.Send(ctx, reply); err != nil {
				return err
			}

		case rpcproto.ClientCloseStream:
			if onCloseStream != nil {
				onCloseStream(msg.StreamId)
			}

		default:
			s.log.Warn("rpc: unknown client message kind", "kind", msg.Kind)
		}
	}
}
