// File: internal/usecase/dispatch_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/adapter"
	"virtual-tryon/internal/domain/ports/repository"
	"virtual-tryon/internal/infra/logging"
	"virtual-tryon/internal/infra/metrics"
)

// Compile-time check
var _ DispatchUseCase = (*dispatchUC)(nil)

// Input is one submitted image: raw bytes or a reference to a stored artifact.
// Exactly one of the two is expected.
type Input struct {
	Data []byte
	Ref  string
}

func (i Input) empty() bool { return len(i.Data) == 0 && strings.TrimSpace(i.Ref) == "" }

type SubmitInput struct {
	OwnerID string
	Person  Input
	Garment Input
	Style   string
}

// JobEnqueuer hands a persisted job to the background executor. It must not
// block; false means the job stays pending until the executor's sweep claims it.
type JobEnqueuer interface {
	Enqueue(jobID string) bool
}

type DispatchUseCase interface {
	// Submit validates the request, persists a pending job and schedules it.
	// Admission failures return a domain error and persist nothing.
	Submit(ctx context.Context, in SubmitInput) (*model.TryOnJob, error)
}

type dispatchUC struct {
	jobs          repository.JobRepository
	ledger        repository.CreditLedger
	artifacts     adapter.ArtifactStore
	queue         JobEnqueuer
	maxImageBytes int64
	log           *zerolog.Logger
}

func NewDispatchUseCase(
	jobs repository.JobRepository,
	ledger repository.CreditLedger,
	artifacts adapter.ArtifactStore,
	queue JobEnqueuer,
	maxImageBytes int64,
	logger *zerolog.Logger,
) *dispatchUC {
	l := logger.With().Str("component", "dispatch").Logger()
	return &dispatchUC{
		jobs:          jobs,
		ledger:        ledger,
		artifacts:     artifacts,
		queue:         queue,
		maxImageBytes: maxImageBytes,
		log:           &l,
	}
}

func (d *dispatchUC) Submit(ctx context.Context, in SubmitInput) (*model.TryOnJob, error) {
	defer logging.TraceDuration(d.log, "DispatchUseCase.Submit")()

	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if in.Person.empty() || in.Garment.empty() {
		return nil, d.reject("input", domain.ErrMissingInput)
	}
	style, err := model.ParseStyle(in.Style)
	if err != nil {
		return nil, d.reject("style", err)
	}
	if err := d.checkInput(ctx, in.OwnerID, "person", in.Person); err != nil {
		return nil, err
	}
	if err := d.checkInput(ctx, in.OwnerID, "garment", in.Garment); err != nil {
		return nil, err
	}

	balance, err := d.ledger.Balance(ctx, nil, in.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	if balance <= 0 {
		return nil, d.reject("credits", domain.ErrInsufficientCredits)
	}

	var uploaded []string
	cleanup := func() {
		for _, ref := range uploaded {
			if err := d.artifacts.Delete(context.Background(), ref); err != nil {
				d.log.Warn().Err(err).Str("ref", ref).Msg("failed to remove uploaded input")
			}
		}
	}
	personRef, err := d.store(ctx, in.OwnerID, in.Person, &uploaded)
	if err != nil {
		cleanup()
		return nil, err
	}
	garmentRef, err := d.store(ctx, in.OwnerID, in.Garment, &uploaded)
	if err != nil {
		cleanup()
		return nil, err
	}

	job, err := model.NewTryOnJob(in.OwnerID, personRef, garmentRef, style)
	if err != nil {
		cleanup()
		return nil, err
	}
	if err := d.jobs.Create(ctx, nil, job); err != nil {
		cleanup()
		return nil, fmt.Errorf("persist job: %w", err)
	}
	metrics.IncJobSubmitted(string(style))

	l := logging.With(logging.WithJobID(ctx, job.ID), d.log)
	if d.queue != nil && !d.queue.Enqueue(job.ID) {
		metrics.IncQueueRejection()
		l.Warn().Msg("worker queue full; job left pending for the sweep")
	}
	l.Info().Str("style", string(style)).Int("balance", balance).Msg("job accepted")
	return job, nil
}

// checkInput validates one input without side effects.
func (d *dispatchUC) checkInput(ctx context.Context, ownerID, name string, in Input) error {
	if len(in.Data) > 0 {
		if d.maxImageBytes > 0 && int64(len(in.Data)) > d.maxImageBytes {
			return d.reject("input", fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrInvalidImage, name, d.maxImageBytes))
		}
		if mime, ok := model.DetectImageType(in.Data); !ok {
			return d.reject("input", fmt.Errorf("%w: %s is %s", domain.ErrInvalidImage, name, mime))
		}
		return nil
	}

	ref := strings.TrimSpace(in.Ref)
	if !model.RefOwnedBy(ref, ownerID) {
		return d.reject("reference", fmt.Errorf("%w: %s", domain.ErrInvalidReference, name))
	}
	ok, err := d.artifacts.Exists(ctx, ref)
	if err != nil {
		return fmt.Errorf("check %s reference: %w", name, err)
	}
	if !ok {
		return d.reject("reference", fmt.Errorf("%w: %s not found", domain.ErrInvalidReference, name))
	}
	return nil
}

func (d *dispatchUC) store(ctx context.Context, ownerID string, in Input, uploaded *[]string) (string, error) {
	if len(in.Data) == 0 {
		return strings.TrimSpace(in.Ref), nil
	}
	ref, err := d.artifacts.Put(ctx, ownerID, in.Data)
	if err != nil {
		return "", fmt.Errorf("store input: %w", err)
	}
	*uploaded = append(*uploaded, ref)
	return ref, nil
}

func (d *dispatchUC) reject(reason string, err error) error {
	metrics.IncJobRejected(reason)
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		d.log.Debug().Err(err).Str("reason", reason).Msg("submission rejected")
	}
	return err
}
