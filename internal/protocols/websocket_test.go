package protocols

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

// dialTestWS serves the adapter's stream handler and dials it. Hooks must be
// installed on the adapter before calling.
func dialTestWS(t *testing.T, a *WSAdapter) *websocket.Conn {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", a.handleStream)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stream"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func newTestWSAdapter(t *testing.T) *WSAdapter {
	a, err := NewWSAdapter(Options{Width: 4, Height: 4})
	assert.NoError(t, err)
	return a
}

func TestWSAdapterReceivesFrames(t *testing.T) {
	a := newTestWSAdapter(t)
	ws := dialTestWS(t, a)

	assert.Eventually(t, a.IsConnected, time.Second, time.Millisecond)

	frame := make([]byte, 4*4*3)
	frame[0] = 42
	assert.NoError(t, ws.WriteMessage(websocket.BinaryMessage, frame))

	assert.Eventually(t, func() bool {
		f, err := a.PullFrame()
		if err != nil || f == nil {
			return false
		}
		return f.Data[0] == 42
	}, time.Second, time.Millisecond)

	// The mailbox holds one frame; a second pull comes back empty.
	f, err := a.PullFrame()
	assert.NoError(t, err)
	assert.Nil(t, f)
}

func TestWSAdapterRejectsWrongSize(t *testing.T) {
	a := newTestWSAdapter(t)
	ws := dialTestWS(t, a)

	assert.NoError(t, ws.WriteMessage(websocket.BinaryMessage, make([]byte, 7)))

	// The mismatch surfaces exactly once through PullFrame.
	assert.Eventually(t, func() bool {
		_, err := a.PullFrame()
		return err != nil
	}, time.Second, time.Millisecond)

	f, err := a.PullFrame()
	assert.NoError(t, err)
	assert.Nil(t, f)
}

func TestWSAdapterIgnoresTextMessages(t *testing.T) {
	a := newTestWSAdapter(t)
	ws := dialTestWS(t, a)

	assert.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))
	time.Sleep(20 * time.Millisecond)

	f, err := a.PullFrame()
	assert.NoError(t, err)
	assert.Nil(t, f)
}

func TestWSAdapterSessionHooks(t *testing.T) {
	a := newTestWSAdapter(t)

	connected := make(chan struct{})
	disconnected := make(chan struct{})
	a.OnConnect = func() { close(connected) }
	a.OnDisconnect = func() { close(disconnected) }

	ws := dialTestWS(t, a)

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("connect hook never fired")
	}

	ws.Close()
	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("disconnect hook never fired")
	}
	assert.False(t, a.IsConnected())
}
