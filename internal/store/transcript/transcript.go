package transcript

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"aria/internal/logging"
	"aria/internal/realtime/events"
)

// seenWindow bounds how many finalized message ids are remembered for
// duplicate suppression. Re-deliveries land well inside this window.
const seenWindow = 512

// Message is one assistant or user entry in the conversation.
type Message struct {
	MessageID   string
	Role        string
	Content     string
	RichContent []events.RichContent
	Complete    bool
	ReceivedAt  time.Time
}

// Transcript accumulates the chat conversation. Streaming deltas append to
// the message they belong to; a finalized message id entering the seen window
// makes any re-delivery of that message a no-op, so each logical message has
// exactly one observable effect.
type Transcript struct {
	logger logging.Logger

	mu    sync.RWMutex
	order []string
	byID  map[string]*Message
	seen  *lru.Cache[string, struct{}]
	now   func() time.Time
}

// New creates an empty transcript.
func New(logger logging.Logger) *Transcript {
	seen, _ := lru.New[string, struct{}](seenWindow)
	return &Transcript{
		logger: logging.OrNop(logger),
		byID:   make(map[string]*Message),
		seen:   seen,
		now:    time.Now,
	}
}

// Apply folds one aria.message event into the transcript.
func (t *Transcript) Apply(msg events.AriaMessage) {
	if msg.MessageID == "" {
		t.logger.Warn("dropping chat message without id")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.seen.Get(msg.MessageID); dup {
		t.logger.Debug("duplicate delivery of finalized message %s ignored", msg.MessageID)
		return
	}

	entry, ok := t.byID[msg.MessageID]
	if !ok {
		entry = &Message{MessageID: msg.MessageID, ReceivedAt: t.now()}
		t.byID[msg.MessageID] = entry
		t.order = append(t.order, msg.MessageID)
	}
	if msg.Role != "" {
		entry.Role = msg.Role
	}
	if msg.Delta != "" {
		entry.Content += msg.Delta
	}

	if msg.Complete {
		if len(msg.RichContent) > 0 {
			entry.RichContent = msg.RichContent
			if entry.Content == "" {
				entry.Content = flattenText(msg.RichContent)
			}
		}
		entry.Complete = true
		t.seen.Add(msg.MessageID, struct{}{})
	}
}

// Messages returns the conversation in arrival order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, 0, len(t.order))
	for _, id := range t.order {
		if entry, ok := t.byID[id]; ok {
			copied := *entry
			copied.RichContent = append([]events.RichContent(nil), entry.RichContent...)
			out = append(out, copied)
		}
	}
	return out
}

// Len reports the number of messages, streaming ones included.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Clear resets the conversation but keeps the seen window, so stale
// re-deliveries of old messages stay suppressed after a clear.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = nil
	t.byID = make(map[string]*Message)
}

func flattenText(blocks []events.RichContent) string {
	var parts []string
	for _, block := range blocks {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
