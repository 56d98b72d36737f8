package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/repository"
)

var (
	_ repository.JobRepository      = (*Store)(nil)
	_ repository.CreditLedger       = (*Store)(nil)
	_ repository.TransactionManager = (*Store)(nil)
)

// Store is an in-memory job store, credit ledger and transaction manager.
// Safe for concurrent access. Used by unit tests and the -dev server.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*model.TryOnJob
	balances map[string]int

	// txMu serializes transactions; undo entries are replayed on rollback.
	// Calls made without a tx wait for the open transaction to finish.
	txMu sync.RWMutex
}

// memTx records how to revert each write made through it.
type memTx struct {
	undo []func()
}

func New() *Store {
	return &Store{
		jobs:     make(map[string]*model.TryOnJob),
		balances: make(map[string]int),
	}
}

func (s *Store) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{}
	if err := fn(ctx, tx); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// record must be called with s.mu held.
func record(tx repository.Tx, fn func()) {
	if t, ok := tx.(*memTx); ok {
		t.undo = append(t.undo, fn)
	}
}

// autocommit holds txMu for a call made outside a transaction.
func (s *Store) autocommit(tx repository.Tx, write bool) func() {
	switch {
	case tx != nil:
		return func() {}
	case write:
		s.txMu.Lock()
		return s.txMu.Unlock
	default:
		s.txMu.RLock()
		return s.txMu.RUnlock
	}
}

func checkTx(tx repository.Tx) error {
	switch tx.(type) {
	case nil, *memTx:
		return nil
	default:
		return domain.ErrInvalidExecContext
	}
}

// ──────────────────────────────────────────────────
// Job store
// ──────────────────────────────────────────────────

func (s *Store) Create(_ context.Context, tx repository.Tx, job *model.TryOnJob) error {
	if err := checkTx(tx); err != nil {
		return err
	}
	defer s.autocommit(tx, true)()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *job
	s.jobs[job.ID] = &cp
	record(tx, func() { delete(s.jobs, job.ID) })
	return nil
}

func (s *Store) FindByID(_ context.Context, tx repository.Tx, id string) (*model.TryOnJob, error) {
	if err := checkTx(tx); err != nil {
		return nil, err
	}
	defer s.autocommit(tx, false)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *Store) ListByOwner(_ context.Context, tx repository.Tx, ownerID string, status model.JobStatus, offset, limit int) ([]*model.TryOnJob, error) {
	if err := checkTx(tx); err != nil {
		return nil, err
	}
	defer s.autocommit(tx, false)()
	matched := s.filter(func(j *model.TryOnJob) bool {
		return j.OwnerID == ownerID && (status == "" || j.Status == status)
	})
	sort.Slice(matched, func(i, k int) bool {
		if !matched[i].CreatedAt.Equal(matched[k].CreatedAt) {
			return matched[i].CreatedAt.After(matched[k].CreatedAt)
		}
		return matched[i].ID > matched[k].ID
	})
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) CountByOwner(_ context.Context, tx repository.Tx, ownerID string, status model.JobStatus) (int, error) {
	if err := checkTx(tx); err != nil {
		return 0, err
	}
	defer s.autocommit(tx, false)()
	return len(s.filter(func(j *model.TryOnJob) bool {
		return j.OwnerID == ownerID && (status == "" || j.Status == status)
	})), nil
}

func (s *Store) MarkProcessing(_ context.Context, tx repository.Tx, id string, at time.Time) (*model.TryOnJob, error) {
	var out *model.TryOnJob
	err := s.transition(tx, id, func(j *model.TryOnJob) error {
		if err := j.Start(at); err != nil {
			return err
		}
		cp := *j
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) MarkCompleted(_ context.Context, tx repository.Tx, id, resultRef string, duration time.Duration, at time.Time) error {
	return s.transition(tx, id, func(j *model.TryOnJob) error {
		return j.Complete(resultRef, duration, at)
	})
}

func (s *Store) MarkFailed(_ context.Context, tx repository.Tx, id, detail string, duration time.Duration, at time.Time) error {
	return s.transition(tx, id, func(j *model.TryOnJob) error {
		return j.Fail(detail, duration, at)
	})
}

func (s *Store) Heartbeat(_ context.Context, tx repository.Tx, id string, at time.Time) error {
	return s.transition(tx, id, func(j *model.TryOnJob) error {
		if j.Status != model.JobStatusProcessing {
			return domain.ErrInvalidTransition
		}
		j.HeartbeatAt = &at
		return nil
	})
}

func (s *Store) SetProvider(_ context.Context, tx repository.Tx, id, provider string) error {
	return s.transition(tx, id, func(j *model.TryOnJob) error {
		if j.Status != model.JobStatusProcessing {
			return domain.ErrInvalidTransition
		}
		j.Provider = provider
		return nil
	})
}

func (s *Store) FindStaleProcessing(_ context.Context, tx repository.Tx, heartbeatBefore time.Time, limit int) ([]*model.TryOnJob, error) {
	if err := checkTx(tx); err != nil {
		return nil, err
	}
	defer s.autocommit(tx, false)()
	stale := s.filter(func(j *model.TryOnJob) bool {
		return j.Status == model.JobStatusProcessing && j.HeartbeatAt != nil && j.HeartbeatAt.Before(heartbeatBefore)
	})
	sort.Slice(stale, func(i, k int) bool { return stale[i].HeartbeatAt.Before(*stale[k].HeartbeatAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (s *Store) FindUnclaimedPending(_ context.Context, tx repository.Tx, createdBefore time.Time, limit int) ([]string, error) {
	if err := checkTx(tx); err != nil {
		return nil, err
	}
	defer s.autocommit(tx, false)()
	pending := s.filter(func(j *model.TryOnJob) bool {
		return j.Status == model.JobStatusPending && j.CreatedAt.Before(createdBefore)
	})
	sort.Slice(pending, func(i, k int) bool { return pending[i].CreatedAt.Before(pending[k].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	ids := make([]string, len(pending))
	for i, j := range pending {
		ids[i] = j.ID
	}
	return ids, nil
}

// transition applies mutate to a copy of the job and stores it only if mutate succeeds.
func (s *Store) transition(tx repository.Tx, id string, mutate func(j *model.TryOnJob) error) error {
	if err := checkTx(tx); err != nil {
		return err
	}
	defer s.autocommit(tx, true)()
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	next := *cur
	if err := mutate(&next); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return fmt.Errorf("%w: job %s is %s", err, id, cur.Status)
		}
		return err
	}
	s.jobs[id] = &next
	record(tx, func() { s.jobs[id] = cur })
	return nil
}

func (s *Store) filter(keep func(j *model.TryOnJob) bool) []*model.TryOnJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.TryOnJob, 0)
	for _, j := range s.jobs {
		if keep(j) {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out
}

// ──────────────────────────────────────────────────
// Credit ledger
// ──────────────────────────────────────────────────

func (s *Store) TryDecrement(_ context.Context, tx repository.Tx, ownerID string) (bool, error) {
	if err := checkTx(tx); err != nil {
		return false, err
	}
	defer s.autocommit(tx, true)()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balances[ownerID] <= 0 {
		return false, nil
	}
	s.balances[ownerID]--
	record(tx, func() { s.balances[ownerID]++ })
	return true, nil
}

func (s *Store) Balance(_ context.Context, tx repository.Tx, ownerID string) (int, error) {
	if err := checkTx(tx); err != nil {
		return 0, err
	}
	defer s.autocommit(tx, false)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[ownerID], nil
}

func (s *Store) Grant(_ context.Context, tx repository.Tx, ownerID string, amount int) (int, error) {
	if err := checkTx(tx); err != nil {
		return 0, err
	}
	defer s.autocommit(tx, true)()
	if ownerID == "" || amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[ownerID] += amount
	record(tx, func() { s.balances[ownerID] -= amount })
	return s.balances[ownerID], nil
}
