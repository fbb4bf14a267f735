// Package stats exposes pipeline counters as Prometheus metrics.
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the instrument set for one pipeline. Register a set of
// subscriber callbacks on the pipeline and feed them here.
type Metrics struct {
	registry *prometheus.Registry

	FramesDecoded    prometheus.Counter
	DecodeErrors     prometheus.Counter
	StateTransitions *prometheus.CounterVec

	// ReconnectAttempts is the attempt counter of the current reconnection
	// cycle, sampled from the connection manager. Resets to zero on success.
	ReconnectAttempts prometheus.Gauge

	// ConnectionState is the state machine position as an enum gauge:
	// 0 disconnected, 1 connecting, 2 connected, 3 reconnecting.
	ConnectionState prometheus.Gauge

	// ConnectionHealth is the health classification as an enum gauge:
	// 0 critical, 1 poor, 2 good, 3 excellent.
	ConnectionHealth prometheus.Gauge
}

// New returns a metric set on its own private registry, so tests and
// multiple pipelines never collide on the default registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camlink_frames_decoded_total",
			Help: "Frames successfully decoded.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camlink_decode_errors_total",
			Help: "Recoverable decode and stream errors.",
		}),
		ReconnectAttempts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camlink_reconnect_attempts",
			Help: "Attempt counter of the current reconnection cycle.",
		}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camlink_state_transitions_total",
			Help: "Connection state transitions, labeled by new state.",
		}, []string{"state"}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camlink_connection_state",
			Help: "Current connection state (0-3).",
		}),
		ConnectionHealth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camlink_connection_health",
			Help: "Current stream health (0-3).",
		}),
	}

	m.registry.MustRegister(
		m.FramesDecoded,
		m.DecodeErrors,
		m.ReconnectAttempts,
		m.StateTransitions,
		m.ConnectionState,
		m.ConnectionHealth,
	)
	return m
}

// Handler serves this metric set in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
