package client

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"aria/internal/logging"
	"aria/internal/realtime/bus"
	"aria/internal/realtime/conn"
	"aria/internal/realtime/events"
	"aria/internal/realtime/metrics"
	"aria/internal/realtime/poller"
	"aria/internal/realtime/transport"
	"aria/internal/store/briefing"
	"aria/internal/store/execution"
	"aria/internal/store/feed"
	"aria/internal/store/notify"
	"aria/internal/store/pending"
	"aria/internal/store/transcript"
)

const defaultToastDuration = 8 * time.Second

// Options configures a Client. Zero values take the documented defaults.
type Options struct {
	// URL of the primary websocket endpoint.
	URL string
	// FallbackURL of the SSE stream; empty disables the fallback kind.
	FallbackURL string

	MaxRetries    int
	BaseDelay     time.Duration
	CapDelay      time.Duration
	FallbackAfter int
	// DisableWebSocket forces the fallback kind from the first attempt.
	DisableWebSocket bool

	// FeedLimit bounds the recommendation feed.
	FeedLimit int
	// PollInterval drives the safety-net reconciliation pass.
	PollInterval time.Duration
	// Reconcile replaces the default reconciliation pass when set.
	Reconcile poller.ReconcileFunc

	// OnProgress receives progress_update events; the goal-list cache that
	// consumes them lives outside this module.
	OnProgress func(update events.ProgressUpdate)

	// Registerer receives the realtime metrics when non-nil.
	Registerer prometheus.Registerer

	Logger logging.Logger

	// factory overrides the transport factory, for tests.
	factory transport.Factory
}

// Client is the realtime sync core: one logical connection fanned out to the
// per-concern state containers. Each container is owned exclusively by the
// client's dispatch path; readers get copies via the exported fields'
// snapshot methods.
type Client struct {
	Executions    *execution.Store
	Pending       *pending.Queue
	Notifications *notify.Center
	Feed          *feed.Feed
	Transcript    *transcript.Transcript
	Briefings     *briefing.Store

	opts    Options
	logger  logging.Logger
	metrics *metrics.Metrics
	bus     *bus.Bus
	manager *conn.Manager
	poller  *poller.Poller
	subs    []bus.Subscription
}

// New assembles a client. Nothing connects until Start.
func New(opts Options) *Client {
	logger := logging.OrNop(opts.Logger)
	m := metrics.New(opts.Registerer)

	c := &Client{
		Executions:    execution.NewStore(logger, m),
		Pending:       pending.NewQueue(logger),
		Notifications: notify.NewCenter(logger),
		Feed:          feed.NewFeed(opts.FeedLimit, logger),
		Transcript:    transcript.New(logger),
		Briefings:     briefing.NewStore(),
		opts:          opts,
		logger:        logger,
		metrics:       m,
	}

	factory := opts.factory
	if factory == nil {
		factory = &transport.DefaultFactory{
			Logger:           logger,
			DisableWebSocket: opts.DisableWebSocket,
		}
	}

	c.manager = conn.NewManager(conn.Config{
		URL:           opts.URL,
		FallbackURL:   opts.FallbackURL,
		MaxRetries:    opts.MaxRetries,
		BaseDelay:     opts.BaseDelay,
		CapDelay:      opts.CapDelay,
		FallbackAfter: opts.FallbackAfter,
	}, factory, conn.Hooks{
		OnFrame:       func(data []byte) { c.bus.HandleFrame(data) },
		OnStateChange: c.emitStateChange,
	}, logger, m)

	c.bus = bus.New(c.manager, logger, m)
	c.registerReducers()

	reconcile := opts.Reconcile
	if reconcile == nil {
		reconcile = c.defaultReconcile
	}
	c.poller = poller.New(opts.PollInterval, reconcile, logger)

	return c
}

// Start opens the connection and the safety-net poller.
func (c *Client) Start(ctx context.Context) error {
	if err := c.manager.Start(); err != nil {
		return err
	}
	c.poller.Start(ctx)
	return nil
}

// Close tears everything down: poller, subscriptions, connection, dispatch.
func (c *Client) Close() {
	c.poller.Stop()
	for _, sub := range c.subs {
		c.bus.Off(sub)
	}
	c.manager.Close()
	c.bus.Close()
	c.Notifications.Close()
}

// Connection reports the lifecycle status from memory; no probe involved.
func (c *Client) Connection() conn.Snapshot {
	return c.manager.Snapshot()
}

// Reset returns a failed connection to idle so Start can run again.
func (c *Client) Reset() error {
	return c.manager.Reset()
}

// Bus exposes the dispatcher for page components that register their own
// handlers. Callers own their subscriptions and must Off them on teardown.
func (c *Client) Bus() *bus.Bus {
	return c.bus
}

// Send pushes one outbound event. Fire-and-forget: a failure is returned,
// never queued for retry.
func (c *Client) Send(eventType string, payload any) error {
	return c.bus.Send(eventType, payload)
}

// ApproveActions removes the ids locally and notifies the server in one
// outbound push. The local removal is not rolled back on send failure; the
// server re-announces still-pending actions.
func (c *Client) ApproveActions(actionIDs []string) error {
	c.Pending.RemoveBatch(actionIDs)
	return c.Send("action.approve", map[string]any{"action_ids": actionIDs})
}

// RejectAction removes one pending action and notifies the server.
func (c *Client) RejectAction(actionID string) error {
	c.Pending.Remove(actionID)
	return c.Send("action.reject", map[string]any{"action_id": actionID})
}

// BeginExecution seeds the execution store with a goal's full step list.
// Launching a goal happens over REST outside this module, so the page that
// made the call initializes progress tracking here; per-step events arriving
// before this call are dropped and counted.
func (c *Client) BeginExecution(goalID, title string, steps []execution.Step) {
	c.Executions.Begin(goalID, title, steps)
}

// SendChat pushes one user chat message; the reply streams back as
// aria.message events.
func (c *Client) SendChat(text string) error {
	return c.Send("chat.message", map[string]any{"text": text})
}

func (c *Client) registerReducers() {
	c.on(events.TypeStepStarted, func(evt *events.Envelope) {
		var payload events.StepStarted
		if !c.decode(evt, &payload) {
			return
		}
		startedAt := evt.ReceivedAt
		c.Executions.UpdateStep(payload.GoalID, payload.StepID, execution.StepPatch{
			Status:    execution.StepActive,
			StartedAt: &startedAt,
			Title:     &payload.Title,
			Agent:     &payload.Agent,
		})
	})

	c.on(events.TypeStepCompleted, func(evt *events.Envelope) {
		var payload events.StepCompleted
		if !c.decode(evt, &payload) {
			return
		}
		status := execution.StepCompleted
		if !payload.Success {
			status = execution.StepFailed
		}
		completedAt := evt.ReceivedAt
		c.Executions.UpdateStep(payload.GoalID, payload.StepID, execution.StepPatch{
			Status:        status,
			CompletedAt:   &completedAt,
			ResultSummary: &payload.ResultSummary,
			ErrorMessage:  &payload.ErrorMessage,
		})
	})

	c.on(events.TypeStepRetrying, func(evt *events.Envelope) {
		var payload events.StepRetrying
		if !c.decode(evt, &payload) {
			return
		}
		// Retrying is only ever entered from an explicit event, never
		// inferred from timing.
		c.Executions.UpdateStep(payload.GoalID, payload.StepID, execution.StepPatch{
			Status:     execution.StepRetrying,
			RetryCount: &payload.RetryCount,
		})
	})

	c.on(events.TypeExecutionComplete, func(evt *events.Envelope) {
		var payload events.ExecutionComplete
		if !c.decode(evt, &payload) {
			return
		}
		c.Executions.Complete(payload.GoalID, payload.Success, payload.Summary)
	})

	c.on(events.TypeActionPending, func(evt *events.Envelope) {
		var payload events.ActionPending
		if !c.decode(evt, &payload) {
			return
		}
		c.Pending.Add(pending.Action{
			ActionID:    payload.ActionID,
			Title:       payload.Title,
			Agent:       payload.Agent,
			RiskLevel:   payload.RiskLevel,
			Description: payload.Description,
			ReceivedAt:  evt.ReceivedAt,
		})
	})

	c.on(events.TypeSignalDetected, func(evt *events.Envelope) {
		var payload events.SignalDetected
		if !c.decode(evt, &payload) {
			return
		}
		c.Notifications.Push(severityKind(payload.Severity), payload.Title, payload.SignalType, defaultToastDuration)
		c.Feed.Push(feed.Item{
			Title:    payload.Title,
			Priority: payload.Severity,
			Source:   feed.SourceSignal,
		})
	})

	c.on(events.TypeProgressUpdate, func(evt *events.Envelope) {
		var payload events.ProgressUpdate
		if !c.decode(evt, &payload) {
			return
		}
		if c.opts.OnProgress != nil {
			c.opts.OnProgress(payload)
		}
	})

	c.on(events.TypeAriaMessage, func(evt *events.Envelope) {
		var payload events.AriaMessage
		if !c.decode(evt, &payload) {
			return
		}
		c.Transcript.Apply(payload)
	})

	c.on(events.TypeBriefingReady, func(evt *events.Envelope) {
		var payload events.BriefingReady
		if !c.decode(evt, &payload) {
			return
		}
		c.Briefings.SetReady(payload.BriefingID, payload.Duration, payload.Topics)
	})
}

func (c *Client) on(eventType string, handler bus.Handler) {
	c.subs = append(c.subs, c.bus.On(eventType, handler))
}

func (c *Client) decode(evt *events.Envelope, out any) bool {
	if err := evt.Decode(out); err != nil {
		c.metrics.DecodeErrors.Inc()
		c.logger.Warn("malformed %s payload dropped: %v", evt.Type, err)
		return false
	}
	return true
}

// emitStateChange converts manager transitions into synthetic bus frames so
// observers see lifecycle events interleaved with server frames. It runs
// under the manager's lock and therefore only enqueues.
func (c *Client) emitStateChange(change conn.StateChange) {
	payload := events.MustPayload(events.ConnectionStateChanged{
		State:     string(change.State),
		Transport: string(change.Kind),
		Reason:    change.Reason,
	})
	c.bus.Inject(&events.Envelope{Type: events.TypeConnectionStateChanged, Payload: payload})

	switch change.State {
	case conn.StateConnected:
		c.bus.Inject(&events.Envelope{
			Type:    events.TypeConnectionEstablished,
			Payload: events.MustPayload(map[string]string{"transport": string(change.Kind)}),
		})
	case conn.StateReconnecting:
		c.bus.Inject(&events.Envelope{Type: events.TypeConnectionError, Payload: events.MustPayload(struct{}{})})
	case conn.StateFailed:
		c.bus.Inject(&events.Envelope{Type: events.TypeConnectionFailed, Payload: events.MustPayload(struct{}{})})
	}
}

// defaultReconcile re-asserts derived state that costs nothing to recompute.
// Re-applying an unchanged snapshot is harmless, which is the whole point of
// the safety net.
func (c *Client) defaultReconcile(context.Context) error {
	snap := c.manager.Snapshot()
	c.metrics.ConnectionState.Set(snap.State.GaugeValue())
	return nil
}

func severityKind(severity string) notify.Kind {
	switch severity {
	case "error", "critical":
		return notify.KindError
	case "warning", "high":
		return notify.KindWarning
	case "success":
		return notify.KindSuccess
	default:
		return notify.KindInfo
	}
}
