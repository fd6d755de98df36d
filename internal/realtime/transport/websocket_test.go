package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	}))
}

func TestWebSocketRoundTrip(t *testing.T) {
	server := newEchoServer(t)
	defer server.Close()

	received := make(chan []byte, 1)
	tr := NewWebSocket(Callbacks{
		OnMessage: func(data []byte) { received <- data },
	}, nil)

	if err := tr.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Disconnect()

	if !tr.Connected() {
		t.Fatalf("expected Connected() after dial")
	}
	if err := tr.Send([]byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != `{"type":"ping"}` {
			t.Fatalf("unexpected echo: %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for echo")
	}
}

func TestWebSocketSendFailsFastWhenDisconnected(t *testing.T) {
	tr := NewWebSocket(Callbacks{}, nil)
	if err := tr.Send([]byte("x")); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestWebSocketConnectFailureWrapsConnectError(t *testing.T) {
	tr := NewWebSocket(Callbacks{}, nil)
	err := tr.Connect(context.Background(), "ws://127.0.0.1:1/ws")
	if err == nil {
		t.Fatalf("expected connect error")
	}
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectError, got %T", err)
	}
	if connErr.Kind != KindWebSocket {
		t.Fatalf("expected websocket kind, got %s", connErr.Kind)
	}
}

func TestWebSocketServerCloseFiresOnClose(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	closed := make(chan error, 1)
	tr := NewWebSocket(Callbacks{
		OnClose: func(err error) { closed <- err },
	}, nil)

	if err := tr.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case err := <-closed:
		if err == nil {
			t.Fatalf("expected close cause")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("OnClose never fired")
	}
	if tr.Connected() {
		t.Fatalf("transport still reports connected after drop")
	}
}

func TestWebSocketDisconnectDoesNotFireOnClose(t *testing.T) {
	server := newEchoServer(t)
	defer server.Close()

	closed := make(chan error, 1)
	tr := NewWebSocket(Callbacks{
		OnClose: func(err error) { closed <- err },
	}, nil)

	if err := tr.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := tr.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	select {
	case err := <-closed:
		t.Fatalf("intentional disconnect surfaced as drop: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}
