//go:build !integration

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/repository"
)

func newJob(t *testing.T, s *Store, owner string) *model.TryOnJob {
	t.Helper()
	job, err := model.NewTryOnJob(owner, "owners/"+owner+"/p.png", "owners/"+owner+"/g.png", model.StyleLower)
	if err != nil {
		t.Fatalf("NewTryOnJob: %v", err)
	}
	if err := s.Create(context.Background(), nil, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func TestStore_JobLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("should return copies that callers cannot mutate", func(t *testing.T) {
		s := New()
		job := newJob(t, s, "o")
		got, _ := s.FindByID(ctx, nil, job.ID)
		got.Status = model.JobStatusCompleted
		again, _ := s.FindByID(ctx, nil, job.ID)
		if again.Status != model.JobStatusPending {
			t.Errorf("store state leaked through a returned pointer")
		}
	})

	t.Run("should only claim a pending job once", func(t *testing.T) {
		s := New()
		job := newJob(t, s, "o")
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.MarkProcessing(ctx, nil, job.ID, time.Now()); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Errorf("expected exactly one claim, got %d", wins)
		}
	})

	t.Run("should refuse transitions from the wrong state", func(t *testing.T) {
		s := New()
		job := newJob(t, s, "o")
		if err := s.MarkCompleted(ctx, nil, job.ID, "r", time.Second, time.Now()); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if err := s.Heartbeat(ctx, nil, job.ID, time.Now()); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if err := s.MarkFailed(ctx, nil, "missing", "x", 0, time.Now()); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should list newest first with offset and limit", func(t *testing.T) {
		s := New()
		base := time.Now()
		var ids []string
		for i := 0; i < 5; i++ {
			job, _ := model.NewTryOnJob("o", "p", "g", model.StyleUpper)
			job.CreatedAt = base.Add(time.Duration(i) * time.Second)
			_ = s.Create(ctx, nil, job)
			ids = append(ids, job.ID)
		}
		page, _ := s.ListByOwner(ctx, nil, "o", model.JobStatusPending, 1, 2)
		if len(page) != 2 || page[0].ID != ids[3] || page[1].ID != ids[2] {
			t.Errorf("unexpected page: %v", page)
		}
		if empty, _ := s.ListByOwner(ctx, nil, "o", "", 10, 2); len(empty) != 0 {
			t.Errorf("expected empty page past the end")
		}
		if n, _ := s.CountByOwner(ctx, nil, "o", model.JobStatusCompleted); n != 0 {
			t.Errorf("expected no completed jobs, got %d", n)
		}
	})

	t.Run("should find stale and unclaimed jobs", func(t *testing.T) {
		s := New()
		stale := newJob(t, s, "o")
		_, _ = s.MarkProcessing(ctx, nil, stale.ID, time.Now().Add(-time.Hour))
		fresh := newJob(t, s, "o")
		_, _ = s.MarkProcessing(ctx, nil, fresh.ID, time.Now())
		pending := newJob(t, s, "o")

		found, _ := s.FindStaleProcessing(ctx, nil, time.Now().Add(-time.Minute), 10)
		if len(found) != 1 || found[0].ID != stale.ID {
			t.Errorf("unexpected stale jobs: %v", found)
		}
		ids, _ := s.FindUnclaimedPending(ctx, nil, time.Now().Add(time.Second), 10)
		if len(ids) != 1 || ids[0] != pending.ID {
			t.Errorf("unexpected pending ids: %v", ids)
		}
	})
}

func TestStore_Ledger(t *testing.T) {
	ctx := context.Background()

	t.Run("should never go negative", func(t *testing.T) {
		s := New()
		_, _ = s.Grant(ctx, nil, "o", 2)
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := s.TryDecrement(ctx, nil, "o"); ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if b, _ := s.Balance(ctx, nil, "o"); wins != 2 || b != 0 {
			t.Errorf("wins=%d balance=%d", wins, b)
		}
	})

	t.Run("should roll back every write of a failed transaction", func(t *testing.T) {
		s := New()
		_, _ = s.Grant(ctx, nil, "o", 1)
		job := newJob(t, s, "o")
		_, _ = s.MarkProcessing(ctx, nil, job.ID, time.Now())
		errBoom := errors.New("boom")

		err := s.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := s.MarkCompleted(ctx, tx, job.ID, "owners/o/r.png", time.Second, time.Now()); err != nil {
				return err
			}
			if ok, err := s.TryDecrement(ctx, tx, "o"); err != nil || !ok {
				t.Fatalf("TryDecrement: ok=%v err=%v", ok, err)
			}
			return errBoom
		})
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected errBoom, got %v", err)
		}
		got, _ := s.FindByID(ctx, nil, job.ID)
		if got.Status != model.JobStatusProcessing || got.ResultRef != "" {
			t.Errorf("job should be back in processing: %+v", got)
		}
		if b, _ := s.Balance(ctx, nil, "o"); b != 1 {
			t.Errorf("balance should be restored, got %d", b)
		}
	})

	t.Run("should hide uncommitted writes from readers outside the transaction", func(t *testing.T) {
		s := New()
		job := newJob(t, s, "o")
		_, _ = s.MarkProcessing(ctx, nil, job.ID, time.Now())

		written := make(chan struct{})
		proceed := make(chan struct{})
		txDone := make(chan error, 1)
		go func() {
			txDone <- s.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
				if err := s.MarkCompleted(ctx, tx, job.ID, "owners/o/r.png", time.Second, time.Now()); err != nil {
					return err
				}
				close(written)
				<-proceed
				ok, err := s.TryDecrement(ctx, tx, "o")
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("no credit")
				}
				return nil
			})
		}()
		<-written

		reads := make(chan *model.TryOnJob, 1)
		go func() {
			got, _ := s.FindByID(ctx, nil, job.ID)
			reads <- got
		}()
		select {
		case got := <-reads:
			t.Fatalf("read returned while the transaction was open: %+v", got)
		case <-time.After(50 * time.Millisecond):
		}

		close(proceed)
		if err := <-txDone; err == nil {
			t.Fatal("expected the transaction to roll back")
		}
		got := <-reads
		if got.Status != model.JobStatusProcessing || got.ResultRef != "" {
			t.Errorf("reader saw rolled-back state: %+v", got)
		}
	})

	t.Run("should reject foreign transaction handles", func(t *testing.T) {
		s := New()
		if _, err := s.Balance(ctx, struct{}{}, "o"); !errors.Is(err, domain.ErrInvalidExecContext) {
			t.Errorf("expected ErrInvalidExecContext, got %v", err)
		}
	})
}
