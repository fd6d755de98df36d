package poller

import (
	"context"
	"sync"
	"time"

	"aria/internal/logging"
)

// DefaultInterval is deliberately low frequency: the poller is a safety net
// behind the event stream, not a data path.
const DefaultInterval = 15 * time.Second

// ReconcileFunc re-reads authoritative state and re-applies it to the owning
// store. It must be idempotent: applying the same value twice is harmless.
type ReconcileFunc func(ctx context.Context) error

// Poller periodically runs a reconciliation pass to mask missed-event edge
// cases. The interval and the function are injected so tests can drive it
// without real timers at production frequency.
type Poller struct {
	interval  time.Duration
	reconcile ReconcileFunc
	logger    logging.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	stopOnce *sync.Once
}

// New creates a poller. A non-positive interval falls back to DefaultInterval.
func New(interval time.Duration, reconcile ReconcileFunc, logger logging.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		interval:  interval,
		reconcile: reconcile,
		logger:    logging.OrNop(logger),
	}
}

// Start launches the polling loop. Calling Start on a running poller is a
// no-op. The loop stops when Stop is called or ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopOnce = &sync.Once{}
	go p.loop(loopCtx)
}

// Stop halts the loop. Safe to call repeatedly and while a pass is running;
// the in-flight pass observes the cancelled context.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	once := p.stopOnce
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil && once != nil {
		once.Do(cancel)
	}
}

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if p.reconcile == nil {
				continue
			}
			if err := p.reconcile(ctx); err != nil && ctx.Err() == nil {
				// Reconciliation is best effort; the next tick retries.
				p.logger.Warn("reconcile pass failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
