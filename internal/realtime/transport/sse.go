package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"aria/internal/logging"
)

// SSETransport reads the fallback server-sent-events stream. It is
// receive-only: outbound sends fail fast and belong on the primary channel.
type SSETransport struct {
	callbacks Callbacks
	logger    logging.Logger
	client    *http.Client

	mu     sync.RWMutex
	cancel context.CancelFunc
	active bool
}

// NewSSE creates an SSE transport delivering frames to callbacks.
func NewSSE(callbacks Callbacks, logger logging.Logger) *SSETransport {
	return &SSETransport{
		callbacks: callbacks,
		logger:    logging.OrNop(logger),
		client:    &http.Client{}, // no overall timeout: the stream is long-lived
	}
}

func (t *SSETransport) Kind() Kind { return KindSSE }

func (t *SSETransport) Connect(ctx context.Context, url string) error {
	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return &ConnectError{Kind: KindSSE, Err: fmt.Errorf("already connected")}
	}
	t.mu.Unlock()

	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return &ConnectError{Kind: KindSSE, Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		return &ConnectError{Kind: KindSSE, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return &ConnectError{Kind: KindSSE, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	t.mu.Lock()
	t.cancel = cancel
	t.active = true
	t.mu.Unlock()

	go t.readLoop(streamCtx, resp)
	return nil
}

// readLoop parses the text/event-stream framing and re-assembles each event
// into the same JSON envelope shape the websocket channel delivers, so the
// bus decodes both kinds identically.
func (t *SSETransport) readLoop(ctx context.Context, resp *http.Response) {
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var data strings.Builder

	flush := func() {
		if data.Len() == 0 && eventType == "" {
			return
		}
		payload := data.String()
		if payload == "" {
			payload = "{}"
		}
		frame, err := json.Marshal(map[string]json.RawMessage{
			"type":    json.RawMessage(fmt.Sprintf("%q", eventType)),
			"payload": json.RawMessage(payload),
		})
		if err == nil {
			t.callbacks.message(frame)
		} else {
			t.logger.Warn("SSE frame reassembly failed: %v", err)
		}
		eventType = ""
		data.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment, keep-alive only.
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	err := scanner.Err()

	t.mu.Lock()
	wasActive := t.active
	intentional := ctx.Err() != nil
	t.active = false
	t.cancel = nil
	t.mu.Unlock()

	if wasActive && !intentional {
		if err == nil {
			err = fmt.Errorf("sse stream ended")
		}
		t.callbacks.closed(err)
	}
}

func (t *SSETransport) Send([]byte) error {
	if !t.Connected() {
		return ErrNotConnected
	}
	return ErrSendUnsupported
}

func (t *SSETransport) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

func (t *SSETransport) Disconnect() error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.active = false
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

var _ Transport = (*SSETransport)(nil)
