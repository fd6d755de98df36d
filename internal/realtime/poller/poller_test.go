package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerRunsReconcilePasses(t *testing.T) {
	var passes atomic.Int64
	p := New(5*time.Millisecond, func(context.Context) error {
		passes.Add(1)
		return nil
	}, nil)

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return passes.Load() >= 3 },
		time.Second, 2*time.Millisecond)
}

func TestPollerStopHaltsLoop(t *testing.T) {
	var passes atomic.Int64
	p := New(5*time.Millisecond, func(context.Context) error {
		passes.Add(1)
		return nil
	}, nil)

	p.Start(context.Background())
	require.Eventually(t, func() bool { return passes.Load() >= 1 },
		time.Second, 2*time.Millisecond)

	p.Stop()
	p.Stop() // idempotent
	settled := passes.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, passes.Load(), settled+1, "at most one in-flight pass after Stop")
}

func TestPollerSurvivesReconcileErrors(t *testing.T) {
	var passes atomic.Int64
	p := New(5*time.Millisecond, func(context.Context) error {
		passes.Add(1)
		return errors.New("upstream 503")
	}, nil)

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return passes.Load() >= 3 },
		time.Second, 2*time.Millisecond)
}

func TestPollerHonorsParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var passes atomic.Int64
	p := New(5*time.Millisecond, func(context.Context) error {
		passes.Add(1)
		return nil
	}, nil)

	p.Start(ctx)
	cancel()

	time.Sleep(20 * time.Millisecond)
	settled := passes.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, passes.Load())
}

func TestPollerDoubleStartIsNoOp(t *testing.T) {
	var passes atomic.Int64
	p := New(time.Hour, func(context.Context) error {
		passes.Add(1)
		return nil
	}, nil)
	p.Start(context.Background())
	p.Start(context.Background())
	p.Stop()
}
