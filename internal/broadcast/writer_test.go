package broadcast

import (
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnWriter_DeliversInOrder(t *testing.T) {
	conn := newFakeConn()
	cw := newConnWriter(conn, clockwork.NewFakeClock(), 16, nil)
	defer cw.stop()

	for _, msg := range []string{"a", "b", "c"} {
		require.True(t, cw.enqueue([]byte(msg)))
	}

	for _, want := range []string{"a", "b", "c"} {
		f := conn.next(t)
		assert.Equal(t, websocket.TextMessage, f.kind)
		assert.Equal(t, want, string(f.data))
	}
}

func TestConnWriter_EnqueueFullBuffer(t *testing.T) {
	conn := newBlockingConn()
	cw := newConnWriter(conn, clockwork.NewFakeClock(), 1, nil)
	defer cw.stop()

	// The first message is picked up by the writer and parks in WriteMessage,
	// the second fills the buffer.
	require.True(t, cw.enqueue([]byte("1")))
	waitFor(t, func() bool { return len(cw.sendChannel) == 0 })
	require.True(t, cw.enqueue([]byte("2")))

	assert.False(t, cw.enqueue([]byte("3")))
}

func TestConnWriter_EnqueueAfterStop(t *testing.T) {
	conn := newFakeConn()
	cw := newConnWriter(conn, clockwork.NewFakeClock(), 4, nil)

	cw.stop()

	assert.False(t, cw.enqueue([]byte("late")))
	assert.True(t, conn.isClosed())
}

func TestConnWriter_StopIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	cw := newConnWriter(conn, clockwork.NewFakeClock(), 4, nil)

	cw.stop()
	cw.stop()
	cw.stopGraceful(websocket.CloseNormalClosure, "bye")

	conn.expectNoFrame(t, 20*time.Millisecond)
}

func TestConnWriter_WriteFailureReported(t *testing.T) {
	conn := newFailingConn()
	failures := make(chan error, 1)
	cw := newConnWriter(conn, clockwork.NewFakeClock(), 4, func(err error) { failures <- err })
	defer cw.stop()

	require.True(t, cw.enqueue([]byte("x")))

	select {
	case err := <-failures:
		assert.EqualError(t, err, "broken pipe")
	case <-time.After(2 * time.Second):
		t.Fatal("write failure was not reported")
	}
}

func TestConnWriter_NoFailureAfterStop(t *testing.T) {
	conn := newFakeConn()
	var reported bool
	cw := newConnWriter(conn, clockwork.NewFakeClock(), 4, func(error) { reported = true })

	cw.stop()
	cw.fail(errors.New("closed"))

	time.Sleep(10 * time.Millisecond)
	assert.False(t, reported)
}

func TestConnWriter_PingOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	conn := newFakeConn()
	cw := newConnWriter(conn, clock, 4, nil)
	defer cw.stop()

	clock.BlockUntil(1)
	clock.Advance(pingInterval)

	f := conn.next(t)
	assert.Equal(t, websocket.PingMessage, f.kind)
}

func TestConnWriter_StopGracefulSendsCloseFrame(t *testing.T) {
	conn := newFakeConn()
	cw := newConnWriter(conn, clockwork.NewFakeClock(), 4, nil)

	cw.stopGraceful(websocket.CloseGoingAway, "Server shutting down")

	f := conn.next(t)
	assert.Equal(t, websocket.CloseMessage, f.kind)
	assert.Equal(t, websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"), f.data)
	assert.True(t, conn.isClosed())
}
