package events

import (
	"encoding/json"
	"time"
)

// Event type identifiers pushed by the server.
const (
	TypeConnectionEstablished  = "connection.established"
	TypeConnectionStateChanged = "connection.state_changed"
	TypeConnectionError        = "connection.error"
	TypeConnectionFailed       = "connection.failed"

	TypeStepStarted       = "step_started"
	TypeStepCompleted     = "step_completed"
	TypeStepRetrying      = "step_retrying"
	TypeExecutionComplete = "execution.complete"

	TypeActionPending  = "action.pending"
	TypeSignalDetected = "signal.detected"
	TypeProgressUpdate = "progress_update"
	TypeAriaMessage    = "aria.message"
	TypeBriefingReady  = "briefing.ready"
)

// Envelope is one inbound frame as delivered by the transport. The payload
// stays opaque until a consumer-specific decoder runs; the server guarantees
// neither uniqueness nor ordering, so ReceivedAt is local arrival time.
type Envelope struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"-"`
}

// StepStarted announces that an agent began a step of a goal's execution.
type StepStarted struct {
	GoalID string `json:"goal_id"`
	StepID string `json:"step_id"`
	Agent  string `json:"agent"`
	Title  string `json:"title"`
}

// StepCompleted reports a terminal per-step outcome.
type StepCompleted struct {
	GoalID        string `json:"goal_id"`
	StepID        string `json:"step_id"`
	Success       bool   `json:"success"`
	ResultSummary string `json:"result_summary,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// StepRetrying reports an explicit retry of a running step.
type StepRetrying struct {
	GoalID     string `json:"goal_id"`
	StepID     string `json:"step_id"`
	RetryCount int    `json:"retry_count"`
	Reason     string `json:"reason"`
}

// ExecutionComplete terminates a goal's execution regardless of per-step state.
type ExecutionComplete struct {
	GoalID  string `json:"goal_id"`
	Success bool   `json:"success"`
	Summary string `json:"summary,omitempty"`
	Title   string `json:"title"`
}

// ActionPending is a proposed operation awaiting human approval.
type ActionPending struct {
	ActionID    string `json:"action_id"`
	Title       string `json:"title"`
	Agent       string `json:"agent"`
	RiskLevel   string `json:"risk_level"`
	Description string `json:"description,omitempty"`
}

// SignalDetected is an externally detected market signal.
type SignalDetected struct {
	Title      string `json:"title"`
	SignalType string `json:"signal_type"`
	Severity   string `json:"severity"`
}

// ProgressUpdate carries coarse goal progress for the goal-list cache.
type ProgressUpdate struct {
	GoalID   string  `json:"goal_id"`
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
}

// AriaMessage is one assistant chat message, either a streamed delta chunk or
// a completed message with rich content blocks.
type AriaMessage struct {
	MessageID   string          `json:"message_id"`
	Role        string          `json:"role,omitempty"`
	Delta       string          `json:"delta,omitempty"`
	Complete    bool            `json:"complete,omitempty"`
	RichContent []RichContent   `json:"rich_content,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// RichContent is one structured block inside an assistant message.
type RichContent struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
	Text string          `json:"text,omitempty"`
}

// BriefingReady announces a generated daily briefing.
type BriefingReady struct {
	BriefingID string   `json:"briefing_id"`
	Duration   int      `json:"duration"`
	Topics     []string `json:"topics"`
}

// ConnectionStateChanged mirrors the synthetic frames the connection manager
// injects into the bus so UI observers see lifecycle transitions as events.
type ConnectionStateChanged struct {
	State     string `json:"state"`
	Transport string `json:"transport,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Decode unmarshals the envelope payload into out.
func (e *Envelope) Decode(out any) error {
	if len(e.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), out)
	}
	return json.Unmarshal(e.Payload, out)
}

// MustPayload marshals v for use as an envelope payload. It is intended for
// tests and the dev server, where v is always marshalable.
func MustPayload(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
