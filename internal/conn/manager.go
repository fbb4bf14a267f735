package conn

import (
	"sync"
	"time"

	"github.com/camlink/camlink/internal/logging"
)

var log = logging.DefaultLogger.WithTag("conn")

// Config collects all Manager settings. It is read once at construction;
// changing behavior requires constructing a new Manager.
type Config struct {
	// MaxAttempts bounds a single reconnection cycle. A fresh loss or a
	// manual trigger starts a new cycle.
	MaxAttempts int

	// Backoff is the per-attempt delay table. Attempts beyond the table
	// length wait the final entry, so configuring MaxAttempts above the
	// table length means every extra attempt waits Backoff[len-1].
	Backoff []time.Duration

	// MonitorInterval is the period between health evaluations.
	MonitorInterval time.Duration

	// AutoReconnect makes ReportConnectionLost start the backoff loop.
	AutoReconnect bool

	// OnStateChange is invoked, outside the manager lock, whenever the
	// connection state actually changes.
	OnStateChange func(State)

	// OnHealthChange is invoked, outside the manager lock, whenever the
	// health classification actually changes.
	OnHealthChange func(Health)

	// OnReconnect performs one concrete reconnection attempt (typically a
	// transport restart). An error return is logged and the backoff loop
	// continues.
	OnReconnect func() error
}

// DefaultConfig returns the stock reconnection and monitoring settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 10,
		Backoff: []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			30 * time.Second,
		},
		MonitorInterval: time.Second,
		AutoReconnect:   true,
	}
}

// Manager is the single source of truth for connection liveness and quality.
// It tracks the connection state machine, classifies stream health from
// frame-arrival cadence, and drives automatic recovery with exponential
// backoff.
type Manager struct {
	cfg Config

	mu            sync.Mutex
	state         State
	health        Health
	lastFrame     time.Time
	window        []time.Time // recent frame arrivals, newest last
	frameCount    uint64
	attempts      int
	autoReconnect bool
	reconnecting  bool          // a backoff loop goroutine is active
	reconnectQuit chan struct{} // closes to cancel the active loop

	monitorQuit chan struct{}
	monitorDone chan struct{}
}

// NewManager returns a Manager in the Disconnected state with Critical
// health. Zero-value config fields fall back to DefaultConfig values.
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = def.MonitorInterval
	}
	return &Manager{
		cfg:           cfg,
		state:         Disconnected,
		health:        HealthCritical,
		autoReconnect: cfg.AutoReconnect,
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Health returns the current health classification.
func (m *Manager) Health() Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

// FrameCount returns the number of frames reported since construction.
func (m *Manager) FrameCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frameCount
}

// ReconnectAttempts returns the attempt counter of the current cycle.
func (m *Manager) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// ReportConnecting marks the initial listener bring-up. Used once by the
// pipeline before the transport starts.
func (m *Manager) ReportConnecting() {
	m.mu.Lock()
	old := m.state
	m.state = Connecting
	m.mu.Unlock()

	if old != Connecting {
		m.notifyState(Connecting)
	}
}

// ReportConnectionEstablished transitions to Connected and resets the
// attempt counter. Idempotent: no notification if already Connected.
func (m *Manager) ReportConnectionEstablished() {
	m.mu.Lock()
	old := m.state
	m.state = Connected
	m.attempts = 0
	m.mu.Unlock()

	if old != Connected {
		log.Info("Connection established")
		m.notifyState(Connected)
	}
}

// ReportConnectionLost transitions to Disconnected and clears frame history.
// If a transition actually occurred and auto-reconnect is enabled, the
// backoff loop is started. Idempotent.
func (m *Manager) ReportConnectionLost() {
	m.mu.Lock()
	old := m.state
	m.state = Disconnected
	m.lastFrame = time.Time{}
	m.window = m.window[:0]
	shouldReconnect := m.autoReconnect
	m.mu.Unlock()

	if old != Disconnected {
		log.Info("Connection lost")
		m.notifyState(Disconnected)

		if shouldReconnect {
			m.startReconnection()
		}
	}
}

// ReportConnectionFailed transitions to Disconnected without starting
// recovery. Used when the initial listener bring-up fails; there is nothing
// to reconnect to yet.
func (m *Manager) ReportConnectionFailed() {
	m.mu.Lock()
	old := m.state
	m.state = Disconnected
	m.mu.Unlock()

	if old != Disconnected {
		m.notifyState(Disconnected)
	}
}

// ReportFrameReceived records a frame arrival. Used only as health input.
func (m *Manager) ReportFrameReceived() {
	now := time.Now()

	m.mu.Lock()
	m.lastFrame = now
	m.frameCount++
	m.window = append(m.window, now)
	if len(m.window) > windowSize {
		m.window = m.window[len(m.window)-windowSize:]
	}
	m.mu.Unlock()
}

// TriggerReconnect forces the state to Reconnecting and starts the backoff
// loop. Manual entry point; works regardless of the auto-reconnect setting.
func (m *Manager) TriggerReconnect() {
	m.mu.Lock()
	old := m.state
	m.state = Reconnecting
	m.mu.Unlock()

	if old != Reconnecting {
		log.Info("Reconnection triggered manually")
		m.notifyState(Reconnecting)
	}

	m.startReconnection()
}

// SetAutoReconnect toggles whether ReportConnectionLost starts recovery.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	m.autoReconnect = enabled
	m.mu.Unlock()
	log.Info("Auto-reconnect enabled: %v", enabled)
}

// backoffDelay returns the wait before the given 1-based attempt. Attempts
// past the end of the table reuse the final entry.
func (m *Manager) backoffDelay(attempt int) time.Duration {
	index := attempt - 1
	if index >= len(m.cfg.Backoff) {
		index = len(m.cfg.Backoff) - 1
	}
	return m.cfg.Backoff[index]
}

func (m *Manager) notifyState(s State) {
	if m.cfg.OnStateChange != nil {
		m.cfg.OnStateChange(s)
	}
}

// startReconnection launches the backoff loop unless one is already active.
func (m *Manager) startReconnection() {
	m.mu.Lock()
	if m.reconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnecting = true
	quit := make(chan struct{})
	m.reconnectQuit = quit
	m.mu.Unlock()

	go m.reconnectLoop(quit)
}

// CancelReconnect stops an active backoff loop without waiting out its
// current delay. No-op when no loop is running. Used on pipeline shutdown so
// a stopped pipeline does not keep firing reconnect triggers.
func (m *Manager) CancelReconnect() {
	m.mu.Lock()
	quit := m.reconnectQuit
	m.reconnectQuit = nil
	m.mu.Unlock()

	if quit != nil {
		close(quit)
	}
}

// reconnectLoop waits out the backoff table and fires the reconnect trigger
// until the connection is restored or the attempt ceiling is hit. At most
// one loop runs per Manager.
func (m *Manager) reconnectLoop(quit <-chan struct{}) {
	defer func() {
		m.mu.Lock()
		m.reconnecting = false
		m.mu.Unlock()
	}()

	for {
		m.mu.Lock()
		if m.state == Connected {
			m.mu.Unlock()
			log.Info("Connection restored, stopping reconnection attempts")
			return
		}
		if m.attempts >= m.cfg.MaxAttempts {
			m.mu.Unlock()
			break
		}
		m.attempts++
		attempt := m.attempts
		delay := m.backoffDelay(attempt)
		old := m.state
		m.state = Reconnecting
		m.mu.Unlock()

		if old != Reconnecting {
			m.notifyState(Reconnecting)
		}

		log.Info("Reconnection attempt %d/%d in %v", attempt, m.cfg.MaxAttempts, delay)
		select {
		case <-quit:
			log.Info("Reconnection cancelled")
			return
		case <-time.After(delay):
		}

		// The connection may have come back while we slept; don't disturb it.
		if m.State() == Connected {
			continue
		}

		if m.cfg.OnReconnect != nil {
			if err := m.cfg.OnReconnect(); err != nil {
				log.Error("Reconnection trigger failed: %v", err)
			}
		}
	}

	// Attempt ceiling reached for this cycle.
	m.mu.Lock()
	if m.state == Connected {
		// Success raced the ceiling check.
		m.mu.Unlock()
		return
	}
	old := m.state
	m.state = Disconnected
	m.mu.Unlock()

	log.Warn("Max reconnection attempts (%d) reached", m.cfg.MaxAttempts)
	if old != Disconnected {
		m.notifyState(Disconnected)
	}
}
