package conn

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, HealthExcellent, classify(30))
	assert.Equal(t, HealthExcellent, classify(28.1))
	assert.Equal(t, HealthGood, classify(28))
	assert.Equal(t, HealthGood, classify(20))
	assert.Equal(t, HealthPoor, classify(19.9))
	assert.Equal(t, HealthPoor, classify(10))
	assert.Equal(t, HealthCritical, classify(9.9))
	assert.Equal(t, HealthCritical, classify(0))
}

func TestEstimateFPSFromWindow(t *testing.T) {
	now := time.Now()

	// 30 frames evenly spaced over one second is 29 intervals per ~second.
	window := make([]time.Time, 30)
	for i := range window {
		window[i] = now.Add(time.Duration(i-29) * 33 * time.Millisecond)
	}
	fps := estimateFPS(window, window[len(window)-1], now)
	assert.InDelta(t, 30.3, fps, 0.5)
}

func TestEstimateFPSZeroSpan(t *testing.T) {
	now := time.Now()
	window := []time.Time{now, now, now}
	assert.Equal(t, assumedFPS, estimateFPS(window, now, now))
}

func TestEstimateFPSSingleRecentFrame(t *testing.T) {
	now := time.Now()
	last := now.Add(-200 * time.Millisecond)
	assert.Equal(t, assumedFPS, estimateFPS([]time.Time{last}, last, now))
}

func TestEstimateFPSSingleStaleFrame(t *testing.T) {
	now := time.Now()
	last := now.Add(-2 * time.Second)
	assert.InDelta(t, 0.5, estimateFPS([]time.Time{last}, last, now), 0.01)
}

func TestTrimWindow(t *testing.T) {
	now := time.Now()
	window := []time.Time{
		now.Add(-5 * time.Second),
		now.Add(-3 * time.Second),
		now.Add(-1 * time.Second),
		now.Add(-100 * time.Millisecond),
	}

	trimmed := trimWindow(window, now)
	assert.Len(t, trimmed, 2)
	assert.Equal(t, window[2], trimmed[0])
}

func TestEvaluateHealthRequiresConnection(t *testing.T) {
	m := NewManager(Config{AutoReconnect: false})
	for i := 0; i < 10; i++ {
		m.ReportFrameReceived()
	}

	// Frames alone are not enough while disconnected.
	m.evaluateHealth(time.Now())
	assert.Equal(t, HealthCritical, m.Health())
}

func TestEvaluateHealthNotifiesOnChange(t *testing.T) {
	var mu sync.Mutex
	var changes []Health
	m := NewManager(Config{
		AutoReconnect: false,
		OnHealthChange: func(h Health) {
			mu.Lock()
			changes = append(changes, h)
			mu.Unlock()
		},
	})

	m.ReportConnectionEstablished()
	for i := 0; i < windowSize+1; i++ {
		m.ReportFrameReceived()
	}

	now := time.Now()
	m.evaluateHealth(now)
	m.evaluateHealth(now) // no change, no second notification

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Health{HealthExcellent}, changes)
	assert.Equal(t, HealthExcellent, m.Health())
}

func TestMonitoringLifecycle(t *testing.T) {
	m := NewManager(Config{
		AutoReconnect:   false,
		MonitorInterval: time.Millisecond,
	})

	m.StartMonitoring()
	m.StartMonitoring() // second start is a no-op
	time.Sleep(10 * time.Millisecond)
	m.StopMonitoring()
	m.StopMonitoring() // idempotent
}
