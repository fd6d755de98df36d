package devserver

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario(t *testing.T) {
	body := `name: smoke
events:
  - delay: 10ms
    type: step_started
    payload:
      goal_id: g1
      step_id: s1
  - type: execution.complete
    payload:
      goal_id: g1
      success: true
`
	s, err := ParseScenario([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "smoke", s.Name)
	require.Len(t, s.Events, 2)
	assert.Equal(t, 10*time.Millisecond, s.Events[0].Delay)
	assert.Equal(t, "step_started", s.Events[0].Type)
	assert.Equal(t, "g1", s.Events[1].Payload["goal_id"])
}

func TestParseScenarioRejectsUntypedEvent(t *testing.T) {
	_, err := ParseScenario([]byte("events:\n  - delay: 5ms\n"))
	assert.Error(t, err)
}

func TestBroadcasterFanOutAndCancel(t *testing.T) {
	b := NewBroadcaster(nil)
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish([]byte("one"))
	assert.Equal(t, "one", string(<-ch1))
	assert.Equal(t, "one", string(<-ch2))

	cancel1()
	b.Publish([]byte("two"))
	assert.Equal(t, "two", string(<-ch2))
	select {
	case frame := <-ch1:
		t.Fatalf("cancelled subscriber got %q", frame)
	default:
	}
	assert.Equal(t, 1, b.Subscribers())
}

func TestBroadcasterDropsForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish([]byte("frame"))
	}
	// Buffer holds exactly subscriberBuffer frames; the rest were dropped.
	assert.Len(t, ch, subscriberBuffer)
}

func newTestServer(t *testing.T, scenario *Scenario) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Options{Scenario: scenario})
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestWebSocketDeliversPublishedFrames(t *testing.T) {
	s, ts := newTestServer(t, DefaultScenario())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.broadcaster.Subscribers() == 1 },
		time.Second, 5*time.Millisecond)
	s.broadcaster.Publish([]byte(`{"type":"step_started","payload":{"goal_id":"g1"}}`))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "step_started")
}

func TestSSEDeliversPublishedFrames(t *testing.T) {
	s, ts := newTestServer(t, DefaultScenario())

	resp, err := http.Get(ts.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return s.broadcaster.Subscribers() == 1 },
		time.Second, 5*time.Millisecond)
	s.broadcaster.Publish([]byte(`{"type":"signal.detected","payload":{"title":"hi"}}`))

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for event == "" || data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	assert.Equal(t, "signal.detected", event)
	assert.JSONEq(t, `{"title":"hi"}`, data)
}

func TestScenarioPlaysToConnectedClient(t *testing.T) {
	scenario := &Scenario{
		Name: "fast",
		Events: []ScenarioEvent{
			{Delay: time.Millisecond, Type: "step_started", Payload: map[string]any{"goal_id": "g1", "step_id": "s1"}},
			{Delay: time.Millisecond, Type: "step_completed", Payload: map[string]any{"goal_id": "g1", "step_id": "s1", "success": true}},
		},
	}
	s, ts := newTestServer(t, scenario)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.play(ctx)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var types []string
	for len(types) < 2 {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if strings.Contains(string(data), "step_started") {
			types = append(types, "step_started")
		}
		if strings.Contains(string(data), "step_completed") {
			types = append(types, "step_completed")
		}
	}
	assert.Equal(t, []string{"step_started", "step_completed"}, types)
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t, DefaultScenario())
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
