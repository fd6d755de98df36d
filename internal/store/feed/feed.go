package feed

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"aria/internal/logging"
)

// DefaultMaxItems bounds the feed when no explicit limit is configured.
const DefaultMaxItems = 50

// Source distinguishes how an item reached the feed.
type Source string

const (
	SourceSignal         Source = "signal"
	SourceRecommendation Source = "recommendation"
)

// Item is one entry in the recommendation feed.
type Item struct {
	ID        string
	Title     string
	Priority  string
	Agent     string
	Source    Source
	Dismissed bool
	CreatedAt time.Time
}

// Feed is a bounded, newest-first list. Items beyond the bound fall off the
// tail silently: this is a best-effort UI surface, not an audit log.
type Feed struct {
	logger logging.Logger

	mu       sync.RWMutex
	items    []Item
	maxItems int
	now      func() time.Time
}

// NewFeed creates a feed bounded at maxItems (DefaultMaxItems when <= 0).
func NewFeed(maxItems int, logger logging.Logger) *Feed {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Feed{
		logger:   logging.OrNop(logger),
		maxItems: maxItems,
		now:      time.Now,
	}
}

// Push inserts an item at the head, evicting the oldest beyond the bound.
// The generated id is returned.
func (f *Feed) Push(item Item) string {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = f.now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append([]Item{item}, f.items...)
	if len(f.items) > f.maxItems {
		f.items = f.items[:f.maxItems]
	}
	return item.ID
}

// Dismiss marks an item dismissed without removing it, so the UI can grey it
// out in place. Unknown ids are a no-op.
func (f *Feed) Dismiss(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Dismissed = true
			return
		}
	}
}

// List returns a copy of the feed, newest first.
func (f *Feed) List() []Item {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Item, len(f.items))
	copy(out, f.items)
	return out
}

// Len reports the current feed size.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}
