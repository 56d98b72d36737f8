// File: internal/usecase/status_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/adapter"
	"virtual-tryon/internal/domain/ports/repository"
)

var _ StatusUseCase = (*statusUC)(nil)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// JobView is the read projection of a job returned to its owner.
type JobView struct {
	ID         string    `json:"job_id"`
	Status     string    `json:"status"`
	Style      string    `json:"style"`
	Provider   string    `json:"provider,omitempty"`
	ResultRef  string    `json:"result_ref,omitempty"`
	ResultURL  string    `json:"result_url,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type StatusUseCase interface {
	// GetStatus returns domain.ErrNotFound both for unknown jobs and for jobs of other owners.
	GetStatus(ctx context.Context, jobID, ownerID string) (*JobView, error)
	ListCompleted(ctx context.Context, ownerID string, offset, limit int) ([]*JobView, int, error)
	Balance(ctx context.Context, ownerID string) (int, error)
}

type statusUC struct {
	jobs      repository.JobRepository
	ledger    repository.CreditLedger
	artifacts adapter.ArtifactStore
	urlTTL    time.Duration
	log       *zerolog.Logger
}

func NewStatusUseCase(jobs repository.JobRepository, ledger repository.CreditLedger, artifacts adapter.ArtifactStore, urlTTL time.Duration, logger *zerolog.Logger) *statusUC {
	if urlTTL <= 0 {
		urlTTL = 10 * time.Minute
	}
	l := logger.With().Str("component", "status").Logger()
	return &statusUC{jobs: jobs, ledger: ledger, artifacts: artifacts, urlTTL: urlTTL, log: &l}
}

func (s *statusUC) GetStatus(ctx context.Context, jobID, ownerID string) (*JobView, error) {
	job, err := s.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return s.view(ctx, job)
}

func (s *statusUC) ListCompleted(ctx context.Context, ownerID string, offset, limit int) ([]*JobView, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	total, err := s.jobs.CountByOwner(ctx, nil, ownerID, model.JobStatusCompleted)
	if err != nil {
		return nil, 0, err
	}
	jobs, err := s.jobs.ListByOwner(ctx, nil, ownerID, model.JobStatusCompleted, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*JobView, 0, len(jobs))
	for _, j := range jobs {
		v, err := s.view(ctx, j)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, nil
}

func (s *statusUC) Balance(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, domain.ErrInvalidArgument
	}
	return s.ledger.Balance(ctx, nil, ownerID)
}

func (s *statusUC) view(ctx context.Context, job *model.TryOnJob) (*JobView, error) {
	v := &JobView{
		ID:         job.ID,
		Status:     string(job.Status),
		Style:      string(job.Style),
		Provider:   job.Provider,
		DurationMs: job.DurationMs,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}
	switch job.Status {
	case model.JobStatusCompleted:
		url, err := s.artifacts.SignedGet(ctx, job.ResultRef, s.urlTTL)
		if err != nil {
			return nil, fmt.Errorf("sign result: %w", err)
		}
		v.ResultRef = job.ResultRef
		v.ResultURL = url
	case model.JobStatusFailed:
		v.Error = job.ErrorDetail
		if v.Error == "" {
			v.Error = "unknown error"
		}
	}
	return v, nil
}
