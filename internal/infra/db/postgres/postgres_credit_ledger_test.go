//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"virtual-tryon/internal/domain/ports/repository"
)

func TestCreditLedger_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	ledger := NewCreditLedger(testPool)

	t.Run("should report zero for unknown owners", func(t *testing.T) {
		cleanup(t)
		b, err := ledger.Balance(ctx, nil, "ghost")
		if err != nil || b != 0 {
			t.Errorf("Balance: b=%d err=%v", b, err)
		}
		ok, err := ledger.TryDecrement(ctx, nil, "ghost")
		if err != nil || ok {
			t.Errorf("TryDecrement: ok=%v err=%v", ok, err)
		}
	})

	t.Run("should never go below zero under concurrent debits", func(t *testing.T) {
		cleanup(t)
		if _, err := ledger.Grant(ctx, nil, "owner-a", 3); err != nil {
			t.Fatalf("Grant: %v", err)
		}
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, err := ledger.TryDecrement(ctx, nil, "owner-a"); err == nil && ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if wins != 3 {
			t.Errorf("expected 3 successful debits, got %d", wins)
		}
		if b, _ := ledger.Balance(ctx, nil, "owner-a"); b != 0 {
			t.Errorf("expected balance 0, got %d", b)
		}
	})

	t.Run("should roll the debit back with the completion transaction", func(t *testing.T) {
		cleanup(t)
		_, _ = ledger.Grant(ctx, nil, "owner-a", 1)
		repo := NewJobRepo(testPool)
		job := newPendingJob(t, "owner-a")
		_ = repo.Create(ctx, nil, job)
		// never claimed, so completion must fail inside the tx
		errBoom := errors.New("boom")

		err := NewTxManager(testPool).WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if ok, err := ledger.TryDecrement(ctx, tx, "owner-a"); err != nil || !ok {
				t.Fatalf("TryDecrement in tx: ok=%v err=%v", ok, err)
			}
			if err := repo.MarkCompleted(ctx, tx, job.ID, "owners/owner-a/r.png", time.Second, time.Now()); err != nil {
				return errBoom
			}
			return nil
		})
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected errBoom, got %v", err)
		}
		if b, _ := ledger.Balance(ctx, nil, "owner-a"); b != 1 {
			t.Errorf("debit should be rolled back, balance %d", b)
		}
	})
}
