package transport

import "aria/internal/logging"

// Factory builds a fresh transport of the requested kind for each connection
// attempt. The connection manager discards transports after a failure.
type Factory interface {
	New(kind Kind, callbacks Callbacks) Transport
	// Supports reports whether the kind is usable in this environment
	// (e.g. websockets blocked by network policy).
	Supports(kind Kind) bool
}

// DefaultFactory builds the built-in transports.
type DefaultFactory struct {
	Logger logging.Logger

	// DisableWebSocket marks the primary kind unavailable, e.g. when a
	// proxy strips Upgrade headers. The connection manager then starts
	// directly on the fallback stream.
	DisableWebSocket bool
}

func (f *DefaultFactory) New(kind Kind, callbacks Callbacks) Transport {
	switch kind {
	case KindSSE:
		return NewSSE(callbacks, f.Logger)
	default:
		return NewWebSocket(callbacks, f.Logger)
	}
}

func (f *DefaultFactory) Supports(kind Kind) bool {
	if kind == KindWebSocket {
		return !f.DisableWebSocket
	}
	return kind == KindSSE
}

var _ Factory = (*DefaultFactory)(nil)
