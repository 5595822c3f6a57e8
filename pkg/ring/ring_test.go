package ring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rdawcore/pkg/rdawerr"
)

func TestPushPopFIFOOrder(t *testing.T) {
	p, c := New[int](8)

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Push(i))
	}
	for i := 0; i < 5; i++ {
		v, err := c.Pop()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestPushFullWhenAtCapacity(t *testing.T) {
	p, _ := New[int](4)

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Push(i))
	}
	err := p.Push(99)
	require.Error(t, err)
	assert.Equal(t, rdawerr.OutOfMemory, rdawerr.KindOf(err))
}

func TestPopEmptyIsNotFound(t *testing.T) {
	_, c := New[int](4)

	_, err := c.Pop()
	require.Error(t, err)
	assert.Equal(t, rdawerr.NotFound, rdawerr.KindOf(err))
}

func TestProducerCloseDrainsThenDisconnected(t *testing.T) {
	p, c := New[int](4)

	require.NoError(t, p.Push(1))
	require.NoError(t, p.Push(2))
	p.Close()

	v, err := c.Pop()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = c.Pop()
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = c.Pop()
	require.Error(t, err)
	assert.Equal(t, rdawerr.Disconnected, rdawerr.KindOf(err))
}

func TestConsumerCloseReportsDisconnectedToProducer(t *testing.T) {
	p, c := New[int](4)
	c.Close()

	err := p.Push(1)
	require.NoError(t, err) // the slot was free; closed is only observed once full

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Push(i))
	}
	err = p.Push(42)
	require.Error(t, err)
	assert.Equal(t, rdawerr.Disconnected, rdawerr.KindOf(err))
}

func TestPushSliceAllOrNothing(t *testing.T) {
	p, c := New[int](8)

	require.NoError(t, p.PushSlice([]int{1, 2, 3}))
	err := p.PushSlice([]int{4, 5, 6, 7, 8, 9})
	require.Error(t, err)
	assert.Equal(t, rdawerr.OutOfMemory, rdawerr.KindOf(err))

	out := make([]int, 3)
	n, err := c.PopSlice(out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, out)
}

func TestPushSliceWrapsAroundBuffer(t *testing.T) {
	p, c := New[int](4)

	require.NoError(t, p.PushSlice([]int{1, 2, 3}))
	out := make([]int, 2)
	n, err := c.PopSlice(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// write index is now at 3, read index at 2; pushing 3 more wraps.
	require.NoError(t, p.PushSlice([]int{4, 5, 6}))

	rest := make([]int, 4)
	n, err = c.PopSlice(rest)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int{3, 4, 5, 6}, rest)
}

func TestPopSliceReturnsWhateverIsAvailable(t *testing.T) {
	p, c := New[int](8)
	require.NoError(t, p.Push(1))
	require.NoError(t, p.Push(2))

	out := make([]int, 5)
	n, err := c.PopSlice(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{1, 2}, out[:2])
}

func TestCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	p, _ := New[int](5)
	assert.Equal(t, 8, len(p.core.buf))
}

func TestChannelSendTryRecv(t *testing.T) {
	s, r := NewChannel[string](4)
	require.NoError(t, s.TrySend("hello"))

	v, err := r.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestChannelCloseSurfacesDisconnected(t *testing.T) {
	s, r := NewChannel[int](4)
	s.Close()

	_, err := r.TryRecv()
	require.Error(t, err)
	assert.Equal(t, rdawerr.Disconnected, rdawerr.KindOf(err))
}

// TestChannelBlockingRecvWakesOnSend parks Recv on an empty channel, then
// a concurrent Send must wake it rather than deadlock: a blocked Recv and
// the Send that satisfies it sit on opposite endpoints, so they only work
// if both share the same waker for this direction.
func TestChannelBlockingRecvWakesOnSend(t *testing.T) {
	s, r := NewChannel[string](4)

	done := make(chan string, 1)
	go func() {
		v, err := r.Recv()
		require.NoError(t, err)
		done <- v
	}()

	time.Sleep(20 * time.Millisecond) // let Recv park before Send runs
	require.NoError(t, s.Send("hello"))

	select {
	case v := <-done:
		assert.Equal(t, "hello", v)
	case <-time.After(2 * time.Second):
		t.Fatal("Recv never woke up after Send")
	}
}

// TestChannelBlockingSendWakesOnRecv fills the ring, parks Send on the
// full channel, then a concurrent Recv must wake it.
func TestChannelBlockingSendWakesOnRecv(t *testing.T) {
	s, r := NewChannel[int](2)
	require.NoError(t, s.Send(1))
	require.NoError(t, s.Send(2))

	done := make(chan error, 1)
	go func() {
		done <- s.Send(3)
	}()

	time.Sleep(20 * time.Millisecond) // let Send park before Recv runs
	v, err := r.Recv()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Send never woke up after Recv")
	}
}
