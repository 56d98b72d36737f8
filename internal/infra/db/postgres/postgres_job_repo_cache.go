package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/repository"
	"virtual-tryon/internal/infra/metrics"
	red "virtual-tryon/internal/infra/redis"
)

var _ repository.JobRepository = (*jobRepoCacheDecorator)(nil)

// jobRepoCacheDecorator serves FindByID for terminal jobs from Redis. Only
// terminal jobs are cached: they can no longer change, so the entry never goes stale.
type jobRepoCacheDecorator struct {
	repository.JobRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewJobRepoCacheDecorator(inner repository.JobRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.JobRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "job_cache").Logger()
	return &jobRepoCacheDecorator{JobRepository: inner, cache: cache, ttl: ttl, log: &l}
}

func jobKey(id string) string { return fmt.Sprintf("tryon:job:%s", id) }

func (d *jobRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.TryOnJob, error) {
	// inside a transaction the caller wants the row as the tx sees it
	if tx != nil {
		return d.JobRepository.FindByID(ctx, tx, id)
	}

	val, err := d.cache.Get(ctx, jobKey(id))
	if err == nil {
		var job model.TryOnJob
		if json.Unmarshal([]byte(val), &job) == nil {
			metrics.IncCacheRequest("job", "hit")
			return &job, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.log.Warn().Err(err).Str("job_id", id).Msg("cache get failed")
	}

	metrics.IncCacheRequest("job", "miss")
	job, err := d.JobRepository.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		if b, err := json.Marshal(job); err == nil {
			if err := d.cache.Set(ctx, jobKey(id), b, d.ttl); err != nil {
				d.log.Warn().Err(err).Str("job_id", id).Msg("cache set failed")
			}
		}
	}
	return job, nil
}

func (d *jobRepoCacheDecorator) MarkCompleted(ctx context.Context, tx repository.Tx, id, resultRef string, duration time.Duration, at time.Time) error {
	_ = d.cache.Del(ctx, jobKey(id))
	return d.JobRepository.MarkCompleted(ctx, tx, id, resultRef, duration, at)
}

func (d *jobRepoCacheDecorator) MarkFailed(ctx context.Context, tx repository.Tx, id, detail string, duration time.Duration, at time.Time) error {
	_ = d.cache.Del(ctx, jobKey(id))
	return d.JobRepository.MarkFailed(ctx, tx, id, detail, duration, at)
}
