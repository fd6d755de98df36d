package execution

import (
	"sync"
	"sync/atomic"
	"time"

	"aria/internal/logging"
	"aria/internal/realtime/metrics"
)

// StepStatus is the per-step lifecycle phase.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepRetrying  StepStatus = "retrying"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// OverallStatus is derived from the step list, never set directly.
type OverallStatus string

const (
	OverallExecuting OverallStatus = "executing"
	OverallCompleted OverallStatus = "completed"
	OverallFailed    OverallStatus = "failed"
)

// Step is one agent action inside a goal's execution.
type Step struct {
	ID            string
	Title         string
	Agent         string
	Status        StepStatus
	RetryCount    int
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ResultSummary string
	ErrorMessage  string
}

// Execution tracks one goal's run end to end.
type Execution struct {
	GoalID        string
	Title         string
	Steps         []Step
	OverallStatus OverallStatus
	Summary       string
	UpdatedAt     time.Time
}

// StepPatch merges non-zero fields into a step. Pointer fields distinguish
// "leave alone" from "set to zero value".
type StepPatch struct {
	Status        StepStatus
	RetryCount    *int
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ResultSummary *string
	ErrorMessage  *string
	Title         *string
	Agent         *string
}

// Store holds execution progress per goal. Duplicate events merge into the
// same step keyed by (goal_id, step_id), so replays are idempotent.
type Store struct {
	logger  logging.Logger
	metrics *metrics.Metrics

	mu         sync.RWMutex
	executions map[string]*Execution

	dropped atomic.Uint64
	now     func() time.Time
}

// NewStore creates an empty execution store.
func NewStore(logger logging.Logger, m *metrics.Metrics) *Store {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Store{
		logger:     logging.OrNop(logger),
		metrics:    m,
		executions: make(map[string]*Execution),
		now:        time.Now,
	}
}

// Begin creates the execution for a goal with its full step list, all steps
// pending. Step updates arriving before Begin are dropped; the dropped
// counter makes that visible (see DroppedUpdates).
func (s *Store) Begin(goalID, title string, steps []Step) {
	if goalID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[goalID]; exists {
		// Duplicate init: keep the existing run so in-flight progress
		// is not wiped by a replayed event.
		return
	}

	exec := &Execution{GoalID: goalID, Title: title, UpdatedAt: s.now()}
	for _, step := range steps {
		if step.Status == "" {
			step.Status = StepPending
		}
		exec.Steps = append(exec.Steps, step)
	}
	exec.OverallStatus = deriveOverall(exec.Steps)
	s.executions[goalID] = exec
}

// UpdateStep merges a patch into the matching step and recomputes the overall
// status. A missing execution or step is a counted no-op, not an error.
func (s *Store) UpdateStep(goalID, stepID string, patch StepPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[goalID]
	if !ok {
		s.recordDropLocked(goalID, stepID, "no execution")
		return
	}

	var step *Step
	for i := range exec.Steps {
		if exec.Steps[i].ID == stepID {
			step = &exec.Steps[i]
			break
		}
	}
	if step == nil {
		s.recordDropLocked(goalID, stepID, "unknown step")
		return
	}

	applyPatch(step, patch)
	exec.OverallStatus = deriveOverall(exec.Steps)
	exec.UpdatedAt = s.now()
}

// Complete force-terminates the execution. Steps still pending, active or
// retrying are closed out to match success, covering servers that emit the
// terminal event without flushing every per-step update first.
func (s *Store) Complete(goalID string, success bool, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[goalID]
	if !ok {
		s.recordDropLocked(goalID, "", "no execution")
		return
	}

	now := s.now()
	terminal := StepCompleted
	if !success {
		terminal = StepFailed
	}
	for i := range exec.Steps {
		switch exec.Steps[i].Status {
		case StepPending, StepActive, StepRetrying:
			exec.Steps[i].Status = terminal
			if exec.Steps[i].CompletedAt == nil {
				completedAt := now
				exec.Steps[i].CompletedAt = &completedAt
			}
		}
	}
	exec.Summary = summary
	exec.OverallStatus = deriveOverall(exec.Steps)
	exec.UpdatedAt = now
}

// Get returns a deep copy of the execution for a goal.
func (s *Store) Get(goalID string) (Execution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.executions[goalID]
	if !ok {
		return Execution{}, false
	}
	return cloneExecution(exec), true
}

// List returns copies of all tracked executions.
func (s *Store) List() []Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Execution, 0, len(s.executions))
	for _, exec := range s.executions {
		out = append(out, cloneExecution(exec))
	}
	return out
}

// Remove forgets a finished execution.
func (s *Store) Remove(goalID string) {
	s.mu.Lock()
	delete(s.executions, goalID)
	s.mu.Unlock()
}

// DroppedUpdates reports how many step updates were ignored because their
// execution was not initialized yet. A growing counter points at init events
// arriving late or getting lost.
func (s *Store) DroppedUpdates() uint64 {
	return s.dropped.Load()
}

func (s *Store) recordDropLocked(goalID, stepID, why string) {
	s.dropped.Add(1)
	s.metrics.DroppedUpdates.Inc()
	s.logger.Warn("dropping step update goal=%s step=%s: %s", goalID, stepID, why)
}

func applyPatch(step *Step, patch StepPatch) {
	if patch.Status != "" {
		step.Status = patch.Status
	}
	if patch.RetryCount != nil {
		step.RetryCount = *patch.RetryCount
	}
	if patch.StartedAt != nil {
		step.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		step.CompletedAt = patch.CompletedAt
	}
	if patch.ResultSummary != nil {
		step.ResultSummary = *patch.ResultSummary
	}
	if patch.ErrorMessage != nil {
		step.ErrorMessage = *patch.ErrorMessage
	}
	if patch.Title != nil {
		step.Title = *patch.Title
	}
	if patch.Agent != nil {
		step.Agent = *patch.Agent
	}
}

// deriveOverall computes the goal status as a pure function of the steps:
// executing while any step is active or retrying, completed once every step
// completed, failed when a failure exists and nothing is still running.
// Pending-only lists count as executing (work remains).
func deriveOverall(steps []Step) OverallStatus {
	allCompleted := len(steps) > 0
	anyFailed := false
	for _, step := range steps {
		switch step.Status {
		case StepActive, StepRetrying:
			return OverallExecuting
		case StepFailed:
			anyFailed = true
			allCompleted = false
		case StepCompleted:
		default:
			allCompleted = false
		}
	}
	if allCompleted {
		return OverallCompleted
	}
	if anyFailed {
		return OverallFailed
	}
	return OverallExecuting
}

func cloneExecution(exec *Execution) Execution {
	out := *exec
	out.Steps = make([]Step, len(exec.Steps))
	copy(out.Steps, exec.Steps)
	for i := range out.Steps {
		if exec.Steps[i].StartedAt != nil {
			startedAt := *exec.Steps[i].StartedAt
			out.Steps[i].StartedAt = &startedAt
		}
		if exec.Steps[i].CompletedAt != nil {
			completedAt := *exec.Steps[i].CompletedAt
			out.Steps[i].CompletedAt = &completedAt
		}
	}
	return out
}
