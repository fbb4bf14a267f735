package conn

import (
	"time"
)

const (
	// windowSize bounds the frame-arrival timestamp window.
	windowSize = 30

	// horizon is the recency cutoff for timestamps used in the FPS estimate.
	horizon = 2 * time.Second

	// assumedFPS is used when a single very recent frame is all we have.
	assumedFPS = 30.0
)

// StartMonitoring launches the periodic health evaluator. A second call
// while the monitor is running is a no-op.
func (m *Manager) StartMonitoring() {
	m.mu.Lock()
	if m.monitorQuit != nil {
		m.mu.Unlock()
		return
	}
	quit := make(chan struct{})
	done := make(chan struct{})
	m.monitorQuit = quit
	m.monitorDone = done
	m.mu.Unlock()

	go m.monitorLoop(quit, done)
	log.Info("Connection monitoring started")
}

// StopMonitoring stops the health evaluator, joining it within a bounded
// timeout. Idempotent.
func (m *Manager) StopMonitoring() {
	m.mu.Lock()
	quit := m.monitorQuit
	done := m.monitorDone
	m.monitorQuit = nil
	m.monitorDone = nil
	m.mu.Unlock()

	if quit == nil {
		return
	}
	close(quit)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		log.Warn("Health monitor did not exit within timeout")
	}
	log.Info("Connection monitoring stopped")
}

func (m *Manager) monitorLoop(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			m.evaluateHealth(time.Now())
		}
	}
}

// evaluateHealth reclassifies stream health from the timestamp window and
// notifies the subscriber if the classification changed. While not
// Connected, health is forced to Critical without an FPS estimate.
func (m *Manager) evaluateHealth(now time.Time) {
	var fps float64

	m.mu.Lock()
	old := m.health
	newHealth := HealthCritical
	if m.state == Connected && !m.lastFrame.IsZero() {
		m.window = trimWindow(m.window, now)
		fps = estimateFPS(m.window, m.lastFrame, now)
		newHealth = classify(fps)
	}
	m.health = newHealth
	m.mu.Unlock()

	if old != newHealth {
		log.Info("Connection health changed: %v -> %v (%.1f fps)", old, newHealth, fps)
		if m.cfg.OnHealthChange != nil {
			m.cfg.OnHealthChange(newHealth)
		}
	}
}

// trimWindow drops timestamps outside the recency horizon. The window is
// already bounded to windowSize entries at insertion.
func trimWindow(window []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-horizon)
	i := 0
	for ; i < len(window); i++ {
		if window[i].After(cutoff) {
			break
		}
	}
	return window[i:]
}

// estimateFPS derives an instantaneous frames-per-second estimate from the
// arrival window. With fewer than two samples it falls back to the age of
// the last frame: a frame under a second old assumes a healthy stream.
func estimateFPS(window []time.Time, last, now time.Time) float64 {
	if len(window) >= 2 {
		span := window[len(window)-1].Sub(window[0]).Seconds()
		if span > 0 {
			return float64(len(window)-1) / span
		}
		return assumedFPS
	}

	sinceLast := now.Sub(last).Seconds()
	if sinceLast < 1.0 {
		return assumedFPS
	}
	if sinceLast > 0 {
		return 1.0 / sinceLast
	}
	return 0
}

// classify maps an FPS estimate to a health bucket.
func classify(fps float64) Health {
	switch {
	case fps > 28:
		return HealthExcellent
	case fps >= 20:
		return HealthGood
	case fps >= 10:
		return HealthPoor
	default:
		return HealthCritical
	}
}
