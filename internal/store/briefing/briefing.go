package briefing

import (
	"sync"
	"time"
)

// Briefing is one generated daily briefing announcement.
type Briefing struct {
	BriefingID string
	Duration   int
	Topics     []string
	ReadyAt    time.Time
}

// Store tracks the latest ready briefing. Re-delivery of the same briefing id
// refreshes nothing observable.
type Store struct {
	mu     sync.RWMutex
	latest *Briefing
	now    func() time.Time
}

// NewStore creates an empty briefing store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// SetReady records a briefing announcement.
func (s *Store) SetReady(briefingID string, duration int, topics []string) {
	if briefingID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil && s.latest.BriefingID == briefingID {
		return
	}
	s.latest = &Briefing{
		BriefingID: briefingID,
		Duration:   duration,
		Topics:     append([]string(nil), topics...),
		ReadyAt:    s.now(),
	}
}

// Latest returns the most recent briefing, if any.
func (s *Store) Latest() (Briefing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Briefing{}, false
	}
	out := *s.latest
	out.Topics = append([]string(nil), s.latest.Topics...)
	return out, true
}

// Clear forgets the latest briefing, e.g. once the user has listened to it.
func (s *Store) Clear() {
	s.mu.Lock()
	s.latest = nil
	s.mu.Unlock()
}
