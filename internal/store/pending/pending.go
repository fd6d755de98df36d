package pending

import (
	"sort"
	"sync"
	"time"

	"aria/internal/logging"
)

// Action is a proposed operation awaiting human approval.
type Action struct {
	ActionID    string
	Title       string
	Agent       string
	RiskLevel   string
	Description string
	ReceivedAt  time.Time
}

// Queue is the pending-approval set. It has set semantics keyed by action id:
// duplicated deliveries of the same action collapse to one entry, and the
// badge count is always answerable from memory.
type Queue struct {
	logger logging.Logger

	mu      sync.RWMutex
	actions map[string]Action
	now     func() time.Time
}

// NewQueue creates an empty pending queue.
func NewQueue(logger logging.Logger) *Queue {
	return &Queue{
		logger:  logging.OrNop(logger),
		actions: make(map[string]Action),
		now:     time.Now,
	}
}

// Add inserts an action. Re-delivery of an already-present action id is a
// no-op so at-least-once delivery yields exactly one visible entry.
func (q *Queue) Add(action Action) {
	if action.ActionID == "" {
		q.logger.Warn("ignoring pending action without id (title=%q)", action.Title)
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.actions[action.ActionID]; exists {
		q.logger.Debug("duplicate pending action %s ignored", action.ActionID)
		return
	}
	if action.ReceivedAt.IsZero() {
		action.ReceivedAt = q.now()
	}
	q.actions[action.ActionID] = action
}

// Remove deletes an action. Absent ids are a no-op, not an error.
func (q *Queue) Remove(actionID string) {
	q.mu.Lock()
	delete(q.actions, actionID)
	q.mu.Unlock()
}

// RemoveBatch deletes a list of ids in one pass, for batch approvals.
func (q *Queue) RemoveBatch(actionIDs []string) {
	q.mu.Lock()
	for _, id := range actionIDs {
		delete(q.actions, id)
	}
	q.mu.Unlock()
}

// Count is the authoritative badge count. It never requires a round-trip.
func (q *Queue) Count() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.actions)
}

// Get returns one action by id.
func (q *Queue) Get(actionID string) (Action, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	action, ok := q.actions[actionID]
	return action, ok
}

// List returns the pending actions ordered oldest first.
func (q *Queue) List() []Action {
	q.mu.RLock()
	out := make([]Action, 0, len(q.actions))
	for _, action := range q.actions {
		out = append(out, action)
	}
	q.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ActionID < out[j].ActionID
		}
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	return out
}
