package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/ports/repository"
	"virtual-tryon/internal/infra/metrics"
	red "virtual-tryon/internal/infra/redis"
)

const reaperLockKey = "reaper:tryon-jobs"

// Reaper periodically fails processing jobs whose executor stopped sending heartbeats.
type Reaper struct {
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	jobs       repository.JobRepository
	tm         repository.TransactionManager
	locker     red.Locker // optional
	log        *zerolog.Logger
	now        func() time.Time
}

func NewReaper(interval, staleAfter time.Duration, jobs repository.JobRepository, tm repository.TransactionManager, locker red.Locker, logger *zerolog.Logger) *Reaper {
	l := logger.With().Str("component", "Reaper").Logger()
	return &Reaper{
		interval:   interval,
		staleAfter: staleAfter,
		batch:      100,
		jobs:       jobs,
		tm:         tm,
		locker:     locker,
		log:        &l,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reaper) Run(ctx context.Context) error {
	r.log.Info().Dur("interval", r.interval).Dur("stale_after", r.staleAfter).Msg("Starting reaper")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("Stopping reaper")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ReapOnce(ctx); err != nil {
				r.log.Error().Err(err).Msg("reaper error")
			}
		}
	}
}

// ReapOnce fails every stale processing job and returns how many it closed.
// With a locker configured, only one replica reaps per tick.
func (r *Reaper) ReapOnce(ctx context.Context) (int, error) {
	if r.locker != nil {
		token, err := r.locker.TryLock(ctx, reaperLockKey, r.interval)
		if errors.Is(err, red.ErrLockHeld) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("acquire reaper lock: %w", err)
		}
		defer func() {
			if err := r.locker.Unlock(context.Background(), reaperLockKey, token); err != nil {
				r.log.Warn().Err(err).Msg("release reaper lock")
			}
		}()
	}

	now := r.now()
	n := 0
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		stale, err := r.jobs.FindStaleProcessing(ctx, tx, now.Add(-r.staleAfter), r.batch)
		if err != nil {
			return err
		}
		for _, j := range stale {
			detail := fmt.Sprintf("%s (no heartbeat since %s)", domain.ErrExecutorLost, j.HeartbeatAt.Format(time.RFC3339))
			if err := r.jobs.MarkFailed(ctx, tx, j.ID, detail, j.ProcessingTime(now), now); err != nil {
				if errors.Is(err, domain.ErrInvalidTransition) {
					continue
				}
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.IncJobsReaped(n)
		r.log.Warn().Int("count", n).Msg("failed stale processing jobs")
	}
	return n, nil
}
