package bus

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"aria/internal/logging"
	"aria/internal/realtime/events"
	"aria/internal/realtime/metrics"
)

// AllEvents subscribes a handler to every inbound envelope.
const AllEvents = "*"

const inboundBuffer = 256

// Handler consumes one decoded envelope. Handlers run on the single dispatch
// goroutine and must not block; slow work belongs on a separate goroutine.
type Handler func(evt *events.Envelope)

// Subscription identifies one registered handler for Off.
type Subscription uint64

// Sender pushes an outbound frame; the connection manager implements it.
type Sender interface {
	Send(data []byte) error
}

type registration struct {
	id      Subscription
	handler Handler
}

// Bus decodes inbound frames into envelopes and fans them out to typed
// subscribers. Dispatch is strictly in arrival order on one goroutine; a
// handler failure is isolated and never stops siblings or later frames.
type Bus struct {
	sender  Sender
	logger  logging.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	handlers map[string][]registration
	nextID   atomic.Uint64

	inbound   chan *events.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

// New builds a bus and starts its dispatch loop.
func New(sender Sender, logger logging.Logger, m *metrics.Metrics) *Bus {
	if m == nil {
		m = metrics.New(nil)
	}
	b := &Bus{
		sender:   sender,
		logger:   logging.OrNop(logger),
		metrics:  m,
		handlers: make(map[string][]registration),
		inbound:  make(chan *events.Envelope, inboundBuffer),
		done:     make(chan struct{}),
	}
	go b.dispatchLoop()
	return b
}

// On registers a handler for eventType, invoked in registration order after
// any earlier subscribers of the same type. The returned subscription must be
// released with Off when the consumer tears down.
func (b *Bus) On(eventType string, handler Handler) Subscription {
	id := Subscription(b.nextID.Add(1))
	if handler == nil {
		return id
	}
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], registration{id: id, handler: handler})
	b.mu.Unlock()
	return id
}

// Off releases a subscription. Unknown ids are a no-op.
func (b *Bus) Off(id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for eventType, regs := range b.handlers {
		for i, reg := range regs {
			if reg.id != id {
				continue
			}
			b.handlers[eventType] = append(regs[:i:i], regs[i+1:]...)
			if len(b.handlers[eventType]) == 0 {
				delete(b.handlers, eventType)
			}
			return
		}
	}
}

// Send marshals {type, payload} and pushes it over the active channel.
// Sends are fire-and-forget: a failure is returned and counted but never
// queued or retried here.
func (b *Bus) Send(eventType string, payload any) error {
	frame, err := json.Marshal(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload,omitempty"`
	}{Type: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("bus: encode %s: %w", eventType, err)
	}
	if err := b.sender.Send(frame); err != nil {
		b.logger.Warn("outbound %s not sent: %v", eventType, err)
		return err
	}
	return nil
}

// HandleFrame accepts one raw inbound frame from the transport layer. The
// frame is parsed and queued for in-order dispatch; malformed frames are
// dropped and counted. When the queue is full the frame is dropped rather
// than blocking the read path (the bus does not buffer across reconnects).
func (b *Bus) HandleFrame(data []byte) {
	b.metrics.FramesReceived.Inc()

	var envelope events.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Type == "" {
		b.metrics.DecodeErrors.Inc()
		b.logger.Warn("dropping malformed frame (%d bytes): %v", len(data), err)
		return
	}
	envelope.ReceivedAt = time.Now()
	b.Inject(&envelope)
}

// Inject queues an already-built envelope, bypassing frame parsing. The
// connection manager uses it for synthetic lifecycle events so observers see
// them interleaved with server frames in arrival order.
func (b *Bus) Inject(envelope *events.Envelope) {
	if envelope == nil {
		return
	}
	if envelope.ReceivedAt.IsZero() {
		envelope.ReceivedAt = time.Now()
	}
	select {
	case b.inbound <- envelope:
	case <-b.done:
	default:
		b.logger.Warn("inbound queue full, dropping %s frame", envelope.Type)
	}
}

// Close stops the dispatch loop. Frames enqueued after Close are discarded.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *Bus) dispatchLoop() {
	for {
		select {
		case envelope := <-b.inbound:
			b.dispatch(envelope)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) dispatch(envelope *events.Envelope) {
	// Snapshot under the read lock so On/Off during dispatch cannot
	// corrupt the iteration.
	b.mu.RLock()
	typed := append([]registration(nil), b.handlers[envelope.Type]...)
	wildcard := append([]registration(nil), b.handlers[AllEvents]...)
	b.mu.RUnlock()

	for _, reg := range typed {
		b.invoke(reg, envelope)
	}
	for _, reg := range wildcard {
		b.invoke(reg, envelope)
	}
}

func (b *Bus) invoke(reg registration, envelope *events.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.HandlerPanics.WithLabelValues(envelope.Type).Inc()
			b.logger.Error("handler %d panicked on %s: %v", reg.id, envelope.Type, r)
		}
	}()
	reg.handler(envelope)
}
