package transport

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies which channel technology carries events.
type Kind string

const (
	// KindWebSocket is the primary bidirectional channel.
	KindWebSocket Kind = "websocket"
	// KindSSE is the unidirectional fallback stream.
	KindSSE Kind = "sse"
)

// ErrNotConnected is returned by Send when no channel is open.
var ErrNotConnected = errors.New("transport: not connected")

// ErrSendUnsupported is returned by Send on unidirectional transports.
var ErrSendUnsupported = errors.New("transport: channel is receive-only")

// ConnectError wraps a failed connection attempt so the connection manager
// can distinguish it from send-path failures.
type ConnectError struct {
	Kind Kind
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("transport: connect over %s: %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Callbacks receive raw channel signals. All callbacks are optional and are
// invoked from the transport's read goroutine; they must not block.
type Callbacks struct {
	// OnMessage receives one raw inbound frame.
	OnMessage func(data []byte)
	// OnClose fires once when an established channel drops, with the cause.
	OnClose func(err error)
	// OnError reports channel-level errors that did not close the channel.
	OnError func(err error)
}

func (c Callbacks) message(data []byte) {
	if c.OnMessage != nil {
		c.OnMessage(data)
	}
}

func (c Callbacks) closed(err error) {
	if c.OnClose != nil {
		c.OnClose(err)
	}
}

func (c Callbacks) failed(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// Transport owns one physical channel to the event server. It carries no
// retry logic and no event semantics; reconnection belongs to the connection
// manager and decoding to the event bus.
type Transport interface {
	Kind() Kind
	// Connect opens the channel and starts delivering frames to the
	// callbacks. It returns once the channel is established or failed.
	Connect(ctx context.Context, url string) error
	// Send pushes one outbound frame. Fails fast when not connected.
	Send(data []byte) error
	// Connected reports whether a channel is currently open.
	Connected() bool
	// Disconnect closes the channel without firing OnClose.
	Disconnect() error
}
