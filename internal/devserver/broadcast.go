package devserver

import (
	"sync"

	"aria/internal/logging"
)

const subscriberBuffer = 64

// Broadcaster fans frames out to every connected transport. Slow consumers
// lose frames rather than stall the script.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan []byte
	logger logging.Logger
}

func NewBroadcaster(logger logging.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[uint64]chan []byte),
		logger: logging.OrNop(logger),
	}
}

// Subscribe registers a consumer channel. The returned cancel func must be
// called when the consumer goes away.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers frame to every subscriber without blocking.
func (b *Broadcaster) Publish(frame []byte) {
	b.mu.RLock()
	targets := make([]chan []byte, 0, len(b.subs))
	for _, ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- frame:
		default:
			b.logger.Warn("broadcast: dropping frame for slow subscriber")
		}
	}
}

// Subscribers reports the current consumer count.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
