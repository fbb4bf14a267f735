package protocols

import (
	"github.com/camlink/camlink/internal/logging"
)

var log = logging.DefaultLogger.WithTag("protocols")

// Adapter is the pluggable transport that accepts a sender's video stream
// and turns it into a frame source for the decoder. Concrete adapters also
// satisfy one of the two frame-source shapes consumed by the decode package:
// a blocking byte stream (VideoOutput/Diagnostics) or a non-blocking pull
// (PullFrame).
type Adapter interface {
	// Start begins listening on the given port. The path argument is
	// protocol specific (RTMP stream key); adapters that have no notion of
	// a path ignore it. A failure to start is transport-fatal and is not
	// retried by the adapter itself.
	Start(port int, path string) error

	// Stop tears down the listener and any decode process. It always
	// succeeds from the caller's perspective and is safe to call
	// repeatedly, including before Start.
	Stop()

	// IsConnected reports whether a sender is currently streaming.
	IsConnected() bool

	// ConnectionURLs formats sender-facing connection URLs for the given
	// local IP addresses.
	ConnectionURLs(localIPs []string) []string

	// Instructions returns human-readable directions for connecting a
	// sender to this adapter.
	Instructions() string

	// Events exposes the connect/disconnect notification hooks for wiring.
	Events() *Hooks
}

// Hooks holds the zero-argument connect/disconnect notifications emitted by
// an adapter. Concrete adapters embed it; orchestration composes additional
// subscribers onto the existing callbacks rather than replacing them.
type Hooks struct {
	OnConnect    func()
	OnDisconnect func()
}

// Events returns the hooks themselves, satisfying the Adapter interface for
// any type embedding Hooks.
func (h *Hooks) Events() *Hooks { return h }

func (h *Hooks) fireConnect() {
	if h.OnConnect != nil {
		h.OnConnect()
	}
}

func (h *Hooks) fireDisconnect() {
	if h.OnDisconnect != nil {
		h.OnDisconnect()
	}
}
