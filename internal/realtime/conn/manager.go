package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"aria/internal/logging"
	"aria/internal/realtime/metrics"
	"aria/internal/realtime/transport"
)

// ErrRetriesExhausted is the terminal failure after the retry budget is spent.
// The manager stays in StateFailed until Reset is called.
var ErrRetriesExhausted = errors.New("conn: retries exhausted")

// Config tunes the reconnection policy.
type Config struct {
	// URL of the primary websocket endpoint.
	URL string
	// FallbackURL of the SSE stream. Empty disables the fallback kind.
	FallbackURL string

	// MaxRetries bounds consecutive failed attempts before StateFailed.
	MaxRetries int
	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration
	// CapDelay caps the unjittered backoff interval.
	CapDelay time.Duration
	// FallbackAfter switches to the fallback kind once this many
	// consecutive attempts failed on the primary. Zero keeps the primary
	// kind for the whole retry budget.
	FallbackAfter int
}

func (c Config) withDefaults() Config {
	out := c
	if out.MaxRetries <= 0 {
		out.MaxRetries = 5
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = time.Second
	}
	if out.CapDelay <= 0 {
		out.CapDelay = 30 * time.Second
	}
	return out
}

// StateChange describes one lifecycle transition for observers.
type StateChange struct {
	State  State
	Kind   transport.Kind
	Reason string
}

// Snapshot is the point-in-time connection status. It is always served from
// memory; no probe traffic is required to answer "are we connected".
type Snapshot struct {
	State   State
	Kind    transport.Kind
	Attempt int
	LastErr error
}

// Hooks receive the manager's outputs. OnFrame runs on the transport read
// goroutine and must hand off quickly; OnStateChange fires for every
// transition in order.
type Hooks struct {
	OnFrame       func(data []byte)
	OnStateChange func(change StateChange)
}

// Manager wraps a Transport with the reconnecting state machine. It owns
// kind selection (primary vs fallback), the backoff schedule, and the retry
// budget; it knows nothing about event payloads.
type Manager struct {
	cfg     Config
	factory transport.Factory
	hooks   Hooks
	logger  logging.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	state      State
	kind       transport.Kind
	attempt    int
	lastErr    error
	current    transport.Transport
	generation int
	delays     *backoff.ExponentialBackOff
}

// NewManager builds a manager in StateIdle. Start must be called to connect.
func NewManager(cfg Config, factory transport.Factory, hooks Hooks, logger logging.Logger, m *metrics.Metrics) *Manager {
	cfg = cfg.withDefaults()
	if m == nil {
		m = metrics.New(nil)
	}
	return &Manager{
		cfg:     cfg,
		factory: factory,
		hooks:   hooks,
		logger:  logging.OrNop(logger),
		metrics: m,
		state:   StateIdle,
		kind:    transport.KindWebSocket,
		delays:  newBackOff(cfg),
	}
}

// newBackOff maps the configured schedule onto an exponential backoff:
// delay = min(base * 2^attempt, cap) with a ±20% randomization window.
func newBackOff(cfg Config) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = cfg.CapDelay
	b.MaxElapsedTime = 0 // the retry budget is attempt-counted, not time-boxed
	b.Reset()
	return b
}

// Start moves idle → connecting and begins dialing in the background.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.state != StateIdle {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("conn: start from %s", state)
	}
	m.kind = m.selectKindLocked()
	m.generation++
	gen := m.generation
	m.setStateLocked(StateConnecting, "start")
	m.mu.Unlock()

	go m.attemptLoop(gen)
	return nil
}

// Reset returns a failed manager to idle so Start can be called again.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateFailed {
		return fmt.Errorf("conn: reset from %s", m.state)
	}
	m.attempt = 0
	m.lastErr = nil
	m.delays.Reset()
	m.setStateLocked(StateIdle, "manual reset")
	return nil
}

// Close tears the connection down and stops any pending retry. The manager
// returns to idle and emits a final state change.
func (m *Manager) Close() {
	m.mu.Lock()
	m.generation++
	current := m.current
	m.current = nil
	m.attempt = 0
	if m.state != StateIdle {
		m.setStateLocked(StateIdle, "closed")
	}
	m.mu.Unlock()

	if current != nil {
		_ = current.Disconnect()
	}
}

// Send pushes one outbound frame over the active channel. It fails fast when
// not connected; the caller owns any retry policy.
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	current := m.current
	state := m.state
	m.mu.Unlock()

	if state != StateConnected || current == nil {
		m.metrics.SendFailures.Inc()
		return transport.ErrNotConnected
	}
	if err := current.Send(data); err != nil {
		m.metrics.SendFailures.Inc()
		return err
	}
	return nil
}

// Snapshot returns the current status from memory.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, Kind: m.kind, Attempt: m.attempt, LastErr: m.lastErr}
}

// attemptLoop dials until connected, the retry budget is spent, or the
// generation moves on (Close/Reset). One loop runs at a time per generation.
func (m *Manager) attemptLoop(gen int) {
	for {
		m.mu.Lock()
		if m.generation != gen {
			m.mu.Unlock()
			return
		}
		kind := m.kind
		url := m.urlForLocked(kind)
		m.mu.Unlock()

		var tr transport.Transport
		callbacks := transport.Callbacks{
			OnMessage: m.handleFrame,
			OnClose:   func(err error) { m.handleDrop(tr, err) },
			OnError: func(err error) {
				m.logger.Warn("transport error on %s channel: %v", kind, err)
			},
		}
		tr = m.factory.New(kind, callbacks)

		err := tr.Connect(context.Background(), url)

		m.mu.Lock()
		if m.generation != gen {
			m.mu.Unlock()
			if err == nil {
				_ = tr.Disconnect()
			}
			return
		}

		if err == nil {
			m.current = tr
			m.attempt = 0
			m.lastErr = nil
			m.delays.Reset()
			m.setStateLocked(StateConnected, "handshake complete")
			m.mu.Unlock()
			m.logger.Info("connected over %s", kind)
			return
		}

		m.attempt++
		m.lastErr = err
		m.metrics.ReconnectAttempts.Inc()
		m.logger.Warn("connect attempt %d over %s failed: %v", m.attempt, kind, err)

		if m.attempt > m.cfg.MaxRetries {
			m.setStateLocked(StateFailed, ErrRetriesExhausted.Error())
			m.mu.Unlock()
			m.logger.Error("giving up after %d attempts: %v", m.attempt, err)
			return
		}

		// Kind fallback keeps the same backoff sequence and attempt count.
		if next := m.selectKindLocked(); next != m.kind {
			m.logger.Info("switching transport kind %s -> %s", m.kind, next)
			m.kind = next
		}

		delay := m.delays.NextBackOff()
		m.setStateLocked(StateReconnecting, fmt.Sprintf("retry in %s", delay.Round(time.Millisecond)))
		m.mu.Unlock()

		time.Sleep(delay)

		m.mu.Lock()
		if m.generation != gen {
			m.mu.Unlock()
			return
		}
		m.setStateLocked(StateConnecting, fmt.Sprintf("attempt %d", m.attempt+1))
		m.mu.Unlock()
	}
}

// handleDrop reacts to an established channel closing underneath us.
func (m *Manager) handleDrop(tr transport.Transport, cause error) {
	m.mu.Lock()
	if m.current != tr || m.state != StateConnected {
		// A stale transport closing after replacement is not a drop.
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.lastErr = cause
	gen := m.generation
	reason := "connection lost"
	if cause != nil {
		reason = cause.Error()
	}
	m.setStateLocked(StateReconnecting, reason)
	m.setStateLocked(StateConnecting, "redial")
	m.mu.Unlock()

	m.logger.Warn("connection dropped: %v", cause)
	go m.attemptLoop(gen)
}

func (m *Manager) handleFrame(data []byte) {
	if m.hooks.OnFrame != nil {
		m.hooks.OnFrame(data)
	}
}

// selectKindLocked picks the transport kind for the next attempt.
func (m *Manager) selectKindLocked() transport.Kind {
	primaryOK := m.factory.Supports(transport.KindWebSocket)
	fallbackOK := m.cfg.FallbackURL != "" && m.factory.Supports(transport.KindSSE)

	if !primaryOK {
		if fallbackOK {
			return transport.KindSSE
		}
		return transport.KindWebSocket
	}
	if fallbackOK && m.cfg.FallbackAfter > 0 && m.attempt >= m.cfg.FallbackAfter {
		return transport.KindSSE
	}
	return transport.KindWebSocket
}

func (m *Manager) urlForLocked(kind transport.Kind) string {
	if kind == transport.KindSSE && m.cfg.FallbackURL != "" {
		return m.cfg.FallbackURL
	}
	return m.cfg.URL
}

// setStateLocked records the transition and notifies observers. Callers hold
// m.mu; observer callbacks therefore must not call back into the manager.
func (m *Manager) setStateLocked(state State, reason string) {
	m.state = state
	m.metrics.ConnectionState.Set(state.GaugeValue())
	if m.hooks.OnStateChange != nil {
		m.hooks.OnStateChange(StateChange{State: state, Kind: m.kind, Reason: reason})
	}
}
