package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aria/internal/logging"
)

// Kind is the visual category of a notification.
type Kind string

const (
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
	KindSuccess Kind = "success"
)

// Notification is one toast. IDs are generated locally, so two identical
// server pushes intentionally produce two visible toasts.
type Notification struct {
	ID        string
	Kind      Kind
	Title     string
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
}

// Center owns the visible notification list and each toast's expiry timer.
type Center struct {
	logger logging.Logger

	mu     sync.Mutex
	items  map[string]Notification
	timers map[string]*time.Timer
	now    func() time.Time

	stopOnce sync.Once
	stopped  bool
}

// NewCenter creates an empty notification center.
func NewCenter(logger logging.Logger) *Center {
	return &Center{
		logger: logging.OrNop(logger),
		items:  make(map[string]Notification),
		timers: make(map[string]*time.Timer),
		now:    time.Now,
	}
}

// Push inserts a toast and arms its auto-expiry timer. A zero duration makes
// the toast sticky until dismissed. The generated id is returned.
func (c *Center) Push(kind Kind, title, message string, duration time.Duration) string {
	notification := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		Duration:  duration,
		CreatedAt: c.now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ""
	}

	c.items[notification.ID] = notification
	if duration > 0 {
		id := notification.ID
		c.timers[id] = time.AfterFunc(duration, func() { c.Dismiss(id) })
	}
	return notification.ID
}

// Dismiss removes a toast and stops its timer. Unknown ids are a no-op, so
// the expiry callback racing a manual dismissal is harmless.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return
	}
	delete(c.items, id)
	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
}

// List returns visible toasts, newest first.
func (c *Center) List() []Notification {
	c.mu.Lock()
	out := make([]Notification, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Count reports the number of visible toasts.
func (c *Center) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops all pending expiry timers. Further pushes are ignored.
func (c *Center) Close() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.stopped = true
		for id, timer := range c.timers {
			timer.Stop()
			delete(c.timers, id)
		}
	})
}
