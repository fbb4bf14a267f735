package protocols

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/net/netutil"

	"github.com/camlink/camlink/internal/media"
)

// DefaultWSPort is the WebSocket listener port.
const DefaultWSPort = 8750

func init() {
	Register("websocket", func(opts Options) (Adapter, error) {
		return NewWSAdapter(opts)
	})
}

// WSAdapter accepts raw RGB24 frames as binary WebSocket messages on
// /stream. It is a pull-based frame source: the sender does its own
// encoding, so there is no byte stream and no external decode process.
// Only the most recent frame is held; the decoder pulls it on demand.
type WSAdapter struct {
	Hooks
	width      int
	height     int
	frameBytes int

	mu        sync.Mutex
	port      int
	server    *http.Server
	connected bool
	latest    *media.Frame // one-slot mailbox, taken by PullFrame
	pullErr   error        // pending recoverable error for the next pull
}

func NewWSAdapter(opts Options) (*WSAdapter, error) {
	opts.applyDefaults()
	return &WSAdapter{
		width:      opts.Width,
		height:     opts.Height,
		frameBytes: media.FrameBytes(opts.Width, opts.Height),
	}, nil
}

// Start listens on the given port. WebSocket has no stream path; the
// argument is ignored.
func (a *WSAdapter) Start(port int, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		log.Warn("WebSocket adapter already started")
		return nil
	}
	if port == 0 {
		port = DefaultWSPort
	}
	a.port = port

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.Wrapf(err, "listen :%d", port)
	}
	// One sender at a time.
	lis = netutil.LimitListener(lis, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", a.handleStream)
	server := &http.Server{Handler: mux}
	a.server = server

	go func() {
		if err := server.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Error("WebSocket server: %v", err)
		}
	}()

	log.Info("WebSocket server listening on ws://0.0.0.0:%d/stream", port)
	return nil
}

func (a *WSAdapter) Stop() {
	a.mu.Lock()
	server := a.server
	a.server = nil
	a.latest = nil
	a.pullErr = nil
	a.mu.Unlock()

	if server == nil {
		return
	}
	// Abortive close: sender connections are killed, handlers fire their
	// disconnect hooks on the read error.
	server.Close()
	log.Info("WebSocket adapter stopped")
}

func (a *WSAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *WSAdapter) setConnected(v bool) bool {
	a.mu.Lock()
	changed := a.connected != v
	a.connected = v
	a.mu.Unlock()
	return changed
}

func (a *WSAdapter) ConnectionURLs(localIPs []string) []string {
	urls := make([]string, 0, len(localIPs))
	for _, ip := range localIPs {
		urls = append(urls, fmt.Sprintf("ws://%s:%d/stream", ip, a.port))
	}
	return urls
}

func (a *WSAdapter) Instructions() string {
	return fmt.Sprintf("Connect a WebSocket to one of the URLs shown above and send\n"+
		"each frame as one binary message of %d bytes (%dx%d RGB24).",
		a.frameBytes, a.width, a.height)
}

// PullFrame returns the most recently received frame, or (nil, nil) when no
// new frame has arrived since the last pull. A pending size-mismatch error
// is surfaced once, then cleared.
func (a *WSAdapter) PullFrame() (*media.Frame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pullErr != nil {
		err := a.pullErr
		a.pullErr = nil
		return nil, err
	}
	f := a.latest
	a.latest = nil
	return f, nil
}

func (a *WSAdapter) handleStream(w http.ResponseWriter, r *http.Request) {
	// Senders are phones on the local network, not browsers; skip the
	// same-origin check.
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	session := uuid.NewString()[:8]
	log.Info("Sender %s connected from %s", session, r.RemoteAddr)
	if a.setConnected(true) {
		a.fireConnect()
	}
	defer func() {
		log.Info("Sender %s disconnected", session)
		if a.setConnected(false) {
			a.fireDisconnect()
		}
	}()

	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		if len(data) != a.frameBytes {
			a.mu.Lock()
			a.pullErr = errors.Errorf("frame size mismatch: got %d bytes, want %d",
				len(data), a.frameBytes)
			a.mu.Unlock()
			continue
		}

		frame := media.NewFrame(a.width, a.height, data)
		a.mu.Lock()
		a.latest = frame
		a.mu.Unlock()
	}
}
