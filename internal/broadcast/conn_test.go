package broadcast

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type frame struct {
	kind int
	data []byte
}

// fakeConn records written frames. writeErr makes every write fail and
// block makes writes hang until the connection is closed.
type fakeConn struct {
	mu        sync.Mutex
	frames    chan frame
	writeErr  error
	block     bool
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan frame, 256),
		closed: make(chan struct{}),
	}
}

func newFailingConn() *fakeConn {
	c := newFakeConn()
	c.writeErr = errors.New("broken pipe")
	return c
}

func newBlockingConn() *fakeConn {
	c := newFakeConn()
	c.block = true
	return c
}

func (c *fakeConn) WriteMessage(kind int, data []byte) error {
	c.mu.Lock()
	block, writeErr := c.block, c.writeErr
	c.mu.Unlock()

	if block && kind != websocket.CloseMessage {
		<-c.closed
		return errors.New("use of closed network connection")
	}
	if writeErr != nil {
		return writeErr
	}
	select {
	case <-c.closed:
		return errors.New("use of closed network connection")
	default:
	}
	c.frames <- frame{kind: kind, data: append([]byte(nil), data...)}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error          { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error           { return nil }
func (c *fakeConn) SetPongHandler(func(appData string) error) {}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) next(t *testing.T) frame {
	t.Helper()
	select {
	case f := <-c.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return frame{}
	}
}

func (c *fakeConn) nextMessage(t *testing.T) map[string]any {
	t.Helper()
	f := c.next(t)
	require.Equal(t, websocket.TextMessage, f.kind)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(f.data, &msg))
	return msg
}

func (c *fakeConn) expectNoFrame(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case f := <-c.frames:
		t.Fatalf("unexpected frame: kind=%d data=%s", f.kind, f.data)
	case <-time.After(wait):
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for range 200 {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
