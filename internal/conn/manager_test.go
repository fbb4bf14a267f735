package conn

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// fastBackoff keeps reconnection tests in the millisecond range.
var fastBackoff = []time.Duration{time.Millisecond, time.Millisecond}

// stateRecorder collects state notifications in order.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func TestInitialState(t *testing.T) {
	m := NewManager(Config{})
	assert.Equal(t, Disconnected, m.State())
	assert.Equal(t, HealthCritical, m.Health())
	assert.Equal(t, 0, m.ReconnectAttempts())
	assert.EqualValues(t, 0, m.FrameCount())
}

func TestStateNotificationsDeduped(t *testing.T) {
	rec := &stateRecorder{}
	m := NewManager(Config{
		AutoReconnect: false,
		OnStateChange: rec.record,
	})

	m.ReportConnectionEstablished()
	m.ReportConnectionEstablished() // no transition, no notification
	m.ReportConnectionLost()
	m.ReportConnectionLost()

	assert.Equal(t, []State{Connected, Disconnected}, rec.all())
}

func TestConnectionLostClearsFrameHistory(t *testing.T) {
	m := NewManager(Config{AutoReconnect: false})
	m.ReportConnectionEstablished()
	for i := 0; i < 5; i++ {
		m.ReportFrameReceived()
	}
	assert.EqualValues(t, 5, m.FrameCount())

	m.ReportConnectionLost()
	m.mu.Lock()
	assert.Empty(t, m.window)
	assert.True(t, m.lastFrame.IsZero())
	m.mu.Unlock()
}

func TestFrameWindowBounded(t *testing.T) {
	m := NewManager(Config{AutoReconnect: false})
	for i := 0; i < windowSize+10; i++ {
		m.ReportFrameReceived()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.window, windowSize)
}

func TestAutoReconnectDisabled(t *testing.T) {
	var calls int32
	m := NewManager(Config{
		AutoReconnect: false,
		Backoff:       fastBackoff,
		OnReconnect: func() error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})

	m.ReportConnectionEstablished()
	m.ReportConnectionLost()

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
	assert.Equal(t, Disconnected, m.State())
}

func TestReconnectSucceeds(t *testing.T) {
	var m *Manager
	var calls int32
	m = NewManager(Config{
		AutoReconnect: true,
		Backoff:       fastBackoff,
		MaxAttempts:   10,
		OnReconnect: func() error {
			atomic.AddInt32(&calls, 1)
			m.ReportConnectionEstablished()
			return nil
		},
	})

	m.ReportConnectionEstablished()
	m.ReportConnectionLost()

	assert.Eventually(t, func() bool {
		return m.State() == Connected
	}, time.Second, time.Millisecond)

	// Success resets the cycle and stops the loop.
	assert.Equal(t, 0, m.ReconnectAttempts())
	before := atomic.LoadInt32(&calls)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestReconnectExhaustsAttempts(t *testing.T) {
	const maxAttempts = 3

	rec := &stateRecorder{}
	var calls int32
	m := NewManager(Config{
		AutoReconnect: true,
		Backoff:       fastBackoff,
		MaxAttempts:   maxAttempts,
		OnStateChange: rec.record,
		OnReconnect: func() error {
			atomic.AddInt32(&calls, 1)
			return errors.New("still down")
		},
	})

	m.ReportConnectionEstablished()
	m.ReportConnectionLost()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == maxAttempts && m.State() == Disconnected
	}, time.Second, time.Millisecond)

	// The ceiling ends the cycle for good.
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, maxAttempts, atomic.LoadInt32(&calls))
	assert.Equal(t, maxAttempts, m.ReconnectAttempts())

	states := rec.all()
	assert.Equal(t, Disconnected, states[len(states)-1])
}

func TestTriggerReconnectIgnoresAutoSetting(t *testing.T) {
	var m *Manager
	var calls int32
	m = NewManager(Config{
		AutoReconnect: false,
		Backoff:       fastBackoff,
		OnReconnect: func() error {
			atomic.AddInt32(&calls, 1)
			m.ReportConnectionEstablished()
			return nil
		},
	})

	m.TriggerReconnect()

	assert.Eventually(t, func() bool {
		return m.State() == Connected
	}, time.Second, time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSetAutoReconnect(t *testing.T) {
	var calls int32
	m := NewManager(Config{
		AutoReconnect: true,
		Backoff:       fastBackoff,
		OnReconnect: func() error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})

	m.SetAutoReconnect(false)
	m.ReportConnectionEstablished()
	m.ReportConnectionLost()

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func TestConnectionFailedDoesNotRetry(t *testing.T) {
	rec := &stateRecorder{}
	var calls int32
	m := NewManager(Config{
		AutoReconnect: true,
		Backoff:       fastBackoff,
		OnStateChange: rec.record,
		OnReconnect: func() error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})

	m.ReportConnecting()
	m.ReportConnectionFailed()

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
	assert.Equal(t, []State{Connecting, Disconnected}, rec.all())
}

func TestCancelReconnectStopsLoop(t *testing.T) {
	var calls int32
	m := NewManager(Config{
		AutoReconnect: true,
		Backoff:       []time.Duration{50 * time.Millisecond},
		OnReconnect: func() error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})

	// No loop running yet; cancelling is a no-op.
	m.CancelReconnect()

	m.ReportConnectionEstablished()
	m.ReportConnectionLost() // loop starts, sleeping out the first delay
	m.CancelReconnect()

	assert.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return !m.reconnecting
	}, time.Second, time.Millisecond)

	// The cancelled loop never fires its trigger.
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))

	// A later manual trigger starts a fresh cycle.
	m.TriggerReconnect()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, time.Millisecond)
}

func TestBackoffDelayTable(t *testing.T) {
	m := NewManager(Config{}) // default table

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second, // clamped past the table end
		30 * time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, m.backoffDelay(i+1), "attempt %d", i+1)
	}
}
