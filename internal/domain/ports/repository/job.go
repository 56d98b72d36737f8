package repository

import (
	"context"
	"time"

	"virtual-tryon/internal/domain/model"
)

// JobRepository is the durable record of every try-on job.
//
// The Mark* methods are conditional on the job's current status. When the job is
// not in the expected state they change nothing and return domain.ErrInvalidTransition.
type JobRepository interface {
	Create(ctx context.Context, tx Tx, job *model.TryOnJob) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.TryOnJob, error)
	// ListByOwner returns the owner's jobs newest first. An empty status matches all.
	ListByOwner(ctx context.Context, tx Tx, ownerID string, status model.JobStatus, offset, limit int) ([]*model.TryOnJob, error)
	CountByOwner(ctx context.Context, tx Tx, ownerID string, status model.JobStatus) (int, error)

	// MarkProcessing claims a pending job. Exactly one caller can win the claim.
	MarkProcessing(ctx context.Context, tx Tx, id string, at time.Time) (*model.TryOnJob, error)
	MarkCompleted(ctx context.Context, tx Tx, id, resultRef string, duration time.Duration, at time.Time) error
	// MarkFailed fails a pending or processing job.
	MarkFailed(ctx context.Context, tx Tx, id, detail string, duration time.Duration, at time.Time) error
	Heartbeat(ctx context.Context, tx Tx, id string, at time.Time) error
	SetProvider(ctx context.Context, tx Tx, id, provider string) error

	FindStaleProcessing(ctx context.Context, tx Tx, heartbeatBefore time.Time, limit int) ([]*model.TryOnJob, error)
	FindUnclaimedPending(ctx context.Context, tx Tx, createdBefore time.Time, limit int) ([]string, error)
}
