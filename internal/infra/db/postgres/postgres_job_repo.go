package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

const jobColumns = `id, owner_id, person_ref, garment_ref, style, status, provider,
       result_ref, error_detail, duration_ms, started_at, heartbeat_at, created_at, updated_at`

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

func (r *jobRepo) Create(ctx context.Context, tx repository.Tx, job *model.TryOnJob) error {
	const q = `
INSERT INTO tryon_jobs (id, owner_id, person_ref, garment_ref, style, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.OwnerID, job.PersonRef, job.GarmentRef, string(job.Style), string(job.Status),
		job.CreatedAt, job.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.TryOnJob, error) {
	q := `SELECT ` + jobColumns + ` FROM tryon_jobs WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, status model.JobStatus, offset, limit int) ([]*model.TryOnJob, error) {
	q := `SELECT ` + jobColumns + `
  FROM tryon_jobs
 WHERE owner_id = $1 AND ($2 = '' OR status = $2)
 ORDER BY created_at DESC, id DESC
 OFFSET $3 LIMIT $4;`
	rows, err := queryRows(ctx, r.pool, tx, q, ownerID, string(status), offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TryOnJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) CountByOwner(ctx context.Context, tx repository.Tx, ownerID string, status model.JobStatus) (int, error) {
	const q = `SELECT COUNT(*) FROM tryon_jobs WHERE owner_id = $1 AND ($2 = '' OR status = $2);`
	row, err := pickRow(ctx, r.pool, tx, q, ownerID, string(status))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *jobRepo) MarkProcessing(ctx context.Context, tx repository.Tx, id string, at time.Time) (*model.TryOnJob, error) {
	q := `
UPDATE tryon_jobs
   SET status = 'processing', started_at = $2, heartbeat_at = $2, updated_at = $2
 WHERE id = $1 AND status = 'pending'
RETURNING ` + jobColumns + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id, at)
	if err != nil {
		return nil, err
	}
	job, err := scanJob(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, r.transitionErr(ctx, tx, id)
	}
	return job, err
}

func (r *jobRepo) MarkCompleted(ctx context.Context, tx repository.Tx, id, resultRef string, duration time.Duration, at time.Time) error {
	if resultRef == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
UPDATE tryon_jobs
   SET status = 'completed', result_ref = $2, duration_ms = $3, updated_at = $4
 WHERE id = $1 AND status = 'processing';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, resultRef, duration.Milliseconds(), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionErr(ctx, tx, id)
	}
	return nil
}

func (r *jobRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, detail string, duration time.Duration, at time.Time) error {
	if detail == "" {
		detail = "unknown error"
	}
	const q = `
UPDATE tryon_jobs
   SET status = 'failed', error_detail = $2, duration_ms = $3, updated_at = $4
 WHERE id = $1 AND status IN ('pending', 'processing');`
	tag, err := execSQL(ctx, r.pool, tx, q, id, detail, duration.Milliseconds(), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionErr(ctx, tx, id)
	}
	return nil
}

func (r *jobRepo) Heartbeat(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE tryon_jobs SET heartbeat_at = $2 WHERE id = $1 AND status = 'processing';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionErr(ctx, tx, id)
	}
	return nil
}

func (r *jobRepo) SetProvider(ctx context.Context, tx repository.Tx, id, provider string) error {
	const q = `UPDATE tryon_jobs SET provider = $2 WHERE id = $1 AND status = 'processing';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, provider)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionErr(ctx, tx, id)
	}
	return nil
}

// FindStaleProcessing locks the rows it returns when called inside a transaction,
// so a concurrent heartbeat waits for the caller's decision.
func (r *jobRepo) FindStaleProcessing(ctx context.Context, tx repository.Tx, heartbeatBefore time.Time, limit int) ([]*model.TryOnJob, error) {
	q := `SELECT ` + jobColumns + `
  FROM tryon_jobs
 WHERE status = 'processing' AND heartbeat_at < $1
 ORDER BY heartbeat_at
 LIMIT $2
 FOR UPDATE SKIP LOCKED;`
	rows, err := queryRows(ctx, r.pool, tx, q, heartbeatBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TryOnJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) FindUnclaimedPending(ctx context.Context, tx repository.Tx, createdBefore time.Time, limit int) ([]string, error) {
	const q = `
SELECT id FROM tryon_jobs
 WHERE status = 'pending' AND created_at < $1
 ORDER BY created_at
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// transitionErr tells a missing job apart from one in the wrong state after a
// conditional update matched nothing.
func (r *jobRepo) transitionErr(ctx context.Context, tx repository.Tx, id string) error {
	row, err := pickRow(ctx, r.pool, tx, `SELECT status FROM tryon_jobs WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	var status string
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return fmt.Errorf("%w: job %s is %s", domain.ErrInvalidTransition, id, status)
}

func scanJob(row pgx.Row) (*model.TryOnJob, error) {
	var (
		j              model.TryOnJob
		style, status  string
		started, heart *time.Time
	)
	err := row.Scan(
		&j.ID, &j.OwnerID, &j.PersonRef, &j.GarmentRef, &style, &status, &j.Provider,
		&j.ResultRef, &j.ErrorDetail, &j.DurationMs, &started, &heart, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	j.Style = model.Style(style)
	j.Status = model.JobStatus(status)
	j.StartedAt = started
	j.HeartbeatAt = heart
	return &j, nil
}
