package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"aria/internal/logging"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// WebSocketTransport carries frames over one gorilla/websocket connection.
type WebSocketTransport struct {
	callbacks Callbacks
	logger    logging.Logger

	mu   sync.RWMutex
	conn *websocket.Conn

	writeMu sync.Mutex
}

// NewWebSocket creates a websocket transport delivering frames to callbacks.
func NewWebSocket(callbacks Callbacks, logger logging.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		callbacks: callbacks,
		logger:    logging.OrNop(logger),
	}
}

func (t *WebSocketTransport) Kind() Kind { return KindWebSocket }

func (t *WebSocketTransport) Connect(ctx context.Context, url string) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return &ConnectError{Kind: KindWebSocket, Err: errors.New("already connected")}
	}
	t.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return &ConnectError{Kind: KindWebSocket, Err: err}
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn)
	return nil
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			wasCurrent := t.conn == conn
			if wasCurrent {
				t.conn = nil
			}
			t.mu.Unlock()
			_ = conn.Close()

			// Disconnect clears t.conn first, so an intentional close
			// never surfaces as a drop.
			if wasCurrent {
				t.callbacks.closed(err)
			}
			return
		}
		t.callbacks.message(data)
	}
}

func (t *WebSocketTransport) Send(data []byte) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.callbacks.failed(err)
		return err
	}
	return nil
}

func (t *WebSocketTransport) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn != nil
}

func (t *WebSocketTransport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	// Best-effort close frame so the server can drop the session cleanly.
	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()
	return conn.Close()
}

var _ Transport = (*WebSocketTransport)(nil)
