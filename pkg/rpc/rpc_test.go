package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rdawcore/pkg/rpcproto"
)

func echoHandler(_ context.Context, req string) (string, *rpcproto.Error) {
	if req == "boom" {
		return "", rpcproto.NewInvalidType("refusing to echo boom")
	}
	return "echo:" + req, nil
}

func TestClientServerRequestResponse(t *testing.T) {
	clientT, serverT := Local[string, string, string](8)

	srv := NewServer[string, string, string](serverT, echoHandler, nil)
	go srv.Run(context.Background(), nil)

	cli := NewClient[string, string, string](clientT)
	go cli.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := cli.Request(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo:hello", res)
}

func TestClientRequestSurfacesProtocolError(t *testing.T) {
	clientT, serverT := Local[string, string, string](8)

	srv := NewServer[string, string, string](serverT, echoHandler, nil)
	go srv.Run(context.Background(), nil)

	cli := NewClient[string, string, string](clientT)
	go cli.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := cli.Request(ctx, "boom")
	require.Error(t, err)

	var protoErr *rpcproto.Error
	require.ErrorAs(t, err, &protoErr)
	assert.True(t, protoErr.InvalidType())
}

func TestSubscribersNotifyAndDeliver(t *testing.T) {
	ids := &rpcproto.StreamIdAllocator{}
	subs := NewSubscribers[string, string](ids)

	id := subs.Subscribe("track-1")
	subs.Notify("track-1", "renamed")
	subs.Notify("track-1", "moved")
	subs.Notify("track-2", "ignored, nobody subscribed")

	sent := &recordingSender[string, string]{}
	err := Deliver[string, string, string](context.Background(), subs, sent, func(e string) string { return e })
	require.NoError(t, err)

	require.Len(t, sent.events, 2)
	assert.Equal(t, id, sent.events[0].StreamId)
	assert.Equal(t, "renamed", sent.events[0].EventBody)
	assert.Equal(t, "moved", sent.events[1].EventBody)
}

func TestSubscribersCloseOneSendsCloseStream(t *testing.T) {
	ids := &rpcproto.StreamIdAllocator{}
	subs := NewSubscribers[string, string](ids)

	id := subs.Subscribe("track-1")
	subs.CloseOne("track-1", id)

	sent := &recordingSender[string, string]{}
	err := Deliver[string, string, string](context.Background(), subs, sent, func(e string) string { return e })
	require.NoError(t, err)

	require.Len(t, sent.closes, 1)
	assert.Equal(t, id, sent.closes[0])

	_, stillFound := subs.FindKey(id)
	assert.False(t, stillFound)
}

type recordingSender[Res, Event any] struct {
	events []rpcproto.ServerMessage[Res, Event]
	closes []rpcproto.StreamId
}

func (r *recordingSender[Res, Event]) Send(_ context.Context, msg rpcproto.ServerMessage[Res, Event]) error {
	if msg.Kind == rpcproto.ServerCloseStream {
		r.closes = append(r.closes, msg.StreamId)
		return nil
	}
	r.events = append(r.events, msg)
	return nil
}
