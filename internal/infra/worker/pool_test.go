//go:build !integration

package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"virtual-tryon/internal/infra/worker"
)

func TestPool(t *testing.T) {
	t.Run("should refuse work when the queue is full", func(t *testing.T) {
		pool := worker.NewPool(1, 1, newTestLogger())
		noop := func(ctx context.Context) error { return nil }
		if err := pool.Submit(noop); err != nil {
			t.Fatalf("first submit: %v", err)
		}
		if err := pool.Submit(noop); !errors.Is(err, worker.ErrQueueFull) {
			t.Errorf("expected ErrQueueFull, got %v", err)
		}
	})

	t.Run("should keep working after a task panics", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool := worker.NewPool(1, 4, newTestLogger())
		pool.Start(ctx)

		var ran int32
		_ = pool.Submit(func(ctx context.Context) error { panic("boom") })
		_ = pool.Submit(func(ctx context.Context) error {
			atomic.StoreInt32(&ran, 1)
			return nil
		})
		deadline := time.Now().Add(time.Second)
		for atomic.LoadInt32(&ran) == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		pool.Stop()
		if atomic.LoadInt32(&ran) != 1 {
			t.Error("expected the second task to run")
		}
	})
}
