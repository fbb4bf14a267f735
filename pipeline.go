package camlink

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/camlink/camlink/internal/conn"
	"github.com/camlink/camlink/internal/decode"
	"github.com/camlink/camlink/internal/media"
	"github.com/camlink/camlink/internal/protocols"
)

// settleDelay is the pause between tearing a transport down and bringing it
// back up during a reconnect, giving the OS time to release the port.
const settleDelay = 500 * time.Millisecond

// Pipeline glues one protocol transport to the decoder and the connection
// manager: transport session events drive the connection state machine,
// decoded frames feed the health classifier, and the reconnection loop
// restarts the transport and decoder together.
//
// The callback fields are optional observers. Set them before Start; the
// pipeline's own wiring is composed around them and is never displaced.
type Pipeline struct {
	OnStateChange  func(conn.State)
	OnHealthChange func(conn.Health)
	OnFrame        func(*media.Frame)
	OnError        func(error)

	adapter protocols.Adapter
	decoder *decode.Decoder
	manager *conn.Manager

	mu      sync.Mutex
	running bool
	port    int
	path    string
}

// New assembles a pipeline around the given transport. The transport must
// not be started; the pipeline owns its lifecycle from here on.
func New(adapter protocols.Adapter, cfg Config) *Pipeline {
	cfg.applyDefaults()

	p := &Pipeline{
		adapter: adapter,
		decoder: decode.New(cfg.Width, cfg.Height, cfg.BufferDepth),
	}
	p.manager = conn.NewManager(conn.Config{
		MaxAttempts:   cfg.MaxReconnectAttempts,
		AutoReconnect: cfg.AutoReconnect,
		OnStateChange: func(s conn.State) {
			if p.OnStateChange != nil {
				p.OnStateChange(s)
			}
		},
		OnHealthChange: func(h conn.Health) {
			if p.OnHealthChange != nil {
				p.OnHealthChange(h)
			}
		},
		OnReconnect: p.performReconnect,
	})
	p.wire()
	return p
}

// wire composes the pipeline's bookkeeping around whatever hooks and
// callbacks are already installed on the transport and decoder.
func (p *Pipeline) wire() {
	hooks := p.adapter.Events()
	hooks.OnConnect = composeHook(hooks.OnConnect, p.manager.ReportConnectionEstablished)
	hooks.OnDisconnect = composeHook(hooks.OnDisconnect, p.manager.ReportConnectionLost)

	p.decoder.OnFrame = func(f *media.Frame) {
		p.manager.ReportFrameReceived()
		if p.OnFrame != nil {
			p.OnFrame(f)
		}
	}
	p.decoder.OnError = func(err error) {
		if p.OnError != nil {
			p.OnError(err)
		}
	}
}

// composeHook chains next after prev, preserving any hook a caller installed
// before the pipeline took over.
func composeHook(prev, next func()) func() {
	if prev == nil {
		return next
	}
	return func() {
		prev()
		next()
	}
}

// Start brings up the transport listener on the given port and path, starts
// the decoder on its output, and begins health monitoring. A bring-up
// failure is returned to the caller; automatic reconnection only covers
// established connections that drop.
func (p *Pipeline) Start(port int, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errAlreadyRunning
	}
	p.port = port
	p.path = path

	p.manager.ReportConnecting()

	if err := p.adapter.Start(port, path); err != nil {
		p.manager.ReportConnectionFailed()
		return errors.Wrap(err, "start transport")
	}
	if err := p.decoder.Start(p.adapter); err != nil {
		p.adapter.Stop()
		p.manager.ReportConnectionFailed()
		return errors.Wrap(err, "start decoder")
	}

	p.manager.StartMonitoring()
	p.running = true
	log.Info("Pipeline started")
	return nil
}

// Stop tears everything down in dependency order. Idempotent.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false

	p.manager.StopMonitoring()
	p.decoder.Stop()
	p.adapter.Stop()
	// Last: stopping the adapter may report the loss and spawn a fresh
	// backoff loop; cancel whatever loop is left.
	p.manager.CancelReconnect()
	log.Info("Pipeline stopped")
}

// performReconnect executes one reconnection attempt: stop the decoder and
// transport, let the port settle, then bring both back up. Invoked by the
// connection manager's backoff loop.
func (p *Pipeline) performReconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return errNotRunning
	}

	log.Info("Restarting transport and decoder")
	p.decoder.Stop()
	p.adapter.Stop()
	time.Sleep(settleDelay)

	if err := p.adapter.Start(p.port, p.path); err != nil {
		return errors.Wrap(err, "restart transport")
	}
	if err := p.decoder.Start(p.adapter); err != nil {
		p.adapter.Stop()
		return errors.Wrap(err, "restart decoder")
	}
	return nil
}

// LatestFrame returns the newest decoded frame, or nil if none is buffered.
func (p *Pipeline) LatestFrame() *media.Frame {
	return p.decoder.LatestFrame()
}

// State returns the current connection state.
func (p *Pipeline) State() conn.State {
	return p.manager.State()
}

// Health returns the current stream health classification.
func (p *Pipeline) Health() conn.Health {
	return p.manager.Health()
}

// FrameCount returns frames decoded since the pipeline last started.
func (p *Pipeline) FrameCount() uint64 {
	return p.decoder.FrameCount()
}

// ErrorCount returns recoverable decode errors since the pipeline last
// started.
func (p *Pipeline) ErrorCount() uint64 {
	return p.decoder.ErrorCount()
}

// Manager exposes the connection manager for manual reconnect triggers and
// auto-reconnect toggling.
func (p *Pipeline) Manager() *conn.Manager {
	return p.manager
}

// IsRunning reports whether Start has succeeded and Stop has not been called.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
