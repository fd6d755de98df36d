package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSSEServer(t *testing.T, events []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		flusher := w.(http.Flusher)

		fmt.Fprintf(w, ": heartbeat\n\n")
		flusher.Flush()

		for _, event := range events {
			fmt.Fprint(w, event)
			flusher.Flush()
		}
		<-r.Context().Done()
	}))
}

func TestSSEReassemblesEnvelopes(t *testing.T) {
	server := newSSEServer(t, []string{
		"event: signal.detected\ndata: {\"title\":\"Funding round\"}\n\n",
	})
	defer server.Close()

	frames := make(chan []byte, 4)
	tr := NewSSE(Callbacks{OnMessage: func(data []byte) { frames <- data }}, nil)

	require.NoError(t, tr.Connect(context.Background(), server.URL))
	defer tr.Disconnect()

	select {
	case frame := <-frames:
		var envelope struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(frame, &envelope))
		assert.Equal(t, "signal.detected", envelope.Type)
		assert.JSONEq(t, `{"title":"Funding round"}`, string(envelope.Payload))
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
}

func TestSSESendIsReceiveOnly(t *testing.T) {
	server := newSSEServer(t, nil)
	defer server.Close()

	tr := NewSSE(Callbacks{}, nil)
	require.NoError(t, tr.Connect(context.Background(), server.URL))
	defer tr.Disconnect()

	assert.ErrorIs(t, tr.Send([]byte("x")), ErrSendUnsupported)
}

func TestSSESendWhenDisconnected(t *testing.T) {
	tr := NewSSE(Callbacks{}, nil)
	assert.ErrorIs(t, tr.Send([]byte("x")), ErrNotConnected)
}

func TestSSEConnectRejectsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	tr := NewSSE(Callbacks{}, nil)
	err := tr.Connect(context.Background(), server.URL)
	require.Error(t, err)
	assert.False(t, tr.Connected())
}

func TestSSEStreamEndFiresOnClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		// Return immediately: the stream ends server-side.
	}))
	defer server.Close()

	closed := make(chan error, 1)
	tr := NewSSE(Callbacks{OnClose: func(err error) { closed <- err }}, nil)
	require.NoError(t, tr.Connect(context.Background(), server.URL))

	select {
	case err := <-closed:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("OnClose never fired")
	}
}

func TestDefaultFactoryCapabilities(t *testing.T) {
	factory := &DefaultFactory{}
	assert.True(t, factory.Supports(KindWebSocket))
	assert.True(t, factory.Supports(KindSSE))
	assert.IsType(t, &WebSocketTransport{}, factory.New(KindWebSocket, Callbacks{}))
	assert.IsType(t, &SSETransport{}, factory.New(KindSSE, Callbacks{}))

	factory.DisableWebSocket = true
	assert.False(t, factory.Supports(KindWebSocket))
}
