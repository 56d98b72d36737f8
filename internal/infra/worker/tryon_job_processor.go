package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/adapter"
	"virtual-tryon/internal/domain/ports/repository"
	"virtual-tryon/internal/infra/logging"
	"virtual-tryon/internal/infra/metrics"
)

// errNoCredit aborts the completion transaction when the debit is refused.
var errNoCredit = errors.New("insufficient credits at completion")

type ProcessorConfig struct {
	SynthesisTimeout  time.Duration
	HeartbeatInterval time.Duration
	SweepInterval     time.Duration
	SweepAfter        time.Duration
	SweepBatch        int
}

func (c *ProcessorConfig) withDefaults() ProcessorConfig {
	out := *c
	if out.SynthesisTimeout <= 0 {
		out.SynthesisTimeout = 2 * time.Minute
	}
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = 10 * time.Second
	}
	if out.SweepInterval <= 0 {
		out.SweepInterval = 5 * time.Second
	}
	if out.SweepAfter <= 0 {
		out.SweepAfter = 10 * time.Second
	}
	if out.SweepBatch <= 0 {
		out.SweepBatch = 50
	}
	return out
}

// TryOnJobProcessor claims pending jobs and drives each one to a terminal state.
type TryOnJobProcessor struct {
	jobs      repository.JobRepository
	ledger    repository.CreditLedger
	artifacts adapter.ArtifactStore
	gateway   adapter.SynthesisGateway
	tm        repository.TransactionManager
	pool      *Pool
	cfg       ProcessorConfig
	log       *zerolog.Logger
	now       func() time.Time

	// inFlight guards against queueing the same id twice from this process.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewTryOnJobProcessor(
	jobs repository.JobRepository,
	ledger repository.CreditLedger,
	artifacts adapter.ArtifactStore,
	gateway adapter.SynthesisGateway,
	tm repository.TransactionManager,
	pool *Pool,
	cfg ProcessorConfig,
	logger *zerolog.Logger,
) *TryOnJobProcessor {
	l := logger.With().Str("component", "TryOnJobProcessor").Logger()
	return &TryOnJobProcessor{
		jobs:      jobs,
		ledger:    ledger,
		artifacts: artifacts,
		gateway:   gateway,
		tm:        tm,
		pool:      pool,
		cfg:       cfg.withDefaults(),
		log:       &l,
		now:       func() time.Time { return time.Now().UTC() },
		inFlight:  make(map[string]struct{}),
	}
}

// Enqueue hands jobID to the pool without blocking. It reports false when the
// queue is full; the job then waits for the next sweep.
func (p *TryOnJobProcessor) Enqueue(jobID string) bool {
	p.mu.Lock()
	if _, queued := p.inFlight[jobID]; queued {
		p.mu.Unlock()
		return true
	}
	p.inFlight[jobID] = struct{}{}
	p.mu.Unlock()

	err := p.pool.Submit(func(ctx context.Context) error {
		defer p.release(jobID)
		p.Execute(ctx, jobID)
		return nil
	})
	if err != nil {
		p.release(jobID)
		return false
	}
	return true
}

func (p *TryOnJobProcessor) release(jobID string) {
	p.mu.Lock()
	delete(p.inFlight, jobID)
	p.mu.Unlock()
}

// Start runs the sweep loop until ctx is done. Run it in a goroutine.
func (p *TryOnJobProcessor) Start(ctx context.Context) {
	p.log.Info().Dur("interval", p.cfg.SweepInterval).Msg("try-on job processor started")
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("try-on job processor stopping")
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep re-enqueues pending jobs that nobody claimed within SweepAfter.
func (p *TryOnJobProcessor) Sweep(ctx context.Context) int {
	ids, err := p.jobs.FindUnclaimedPending(ctx, nil, p.now().Add(-p.cfg.SweepAfter), p.cfg.SweepBatch)
	if err != nil {
		p.log.Error().Err(err).Msg("sweep: list pending jobs")
		return 0
	}
	n := 0
	for _, id := range ids {
		if !p.Enqueue(id) {
			metrics.IncQueueRejection()
			break
		}
		n++
	}
	if n > 0 {
		p.log.Debug().Int("count", n).Msg("sweep re-enqueued pending jobs")
	}
	return n
}

// Execute claims jobID and runs it to completion or failure. Losing the claim
// to another runner is not an error.
func (p *TryOnJobProcessor) Execute(ctx context.Context, jobID string) {
	ctx = logging.WithJobID(ctx, jobID)
	l := logging.With(ctx, p.log)

	job, err := p.jobs.MarkProcessing(ctx, nil, jobID, p.now())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
			l.Debug().Err(err).Msg("job already claimed or gone")
			return
		}
		l.Error().Err(err).Msg("claim job")
		return
	}
	l.Info().Str("owner_id", job.OwnerID).Str("style", string(job.Style)).Msg("processing try-on job")

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbDone sync.WaitGroup
	hbDone.Add(1)
	go func() {
		defer hbDone.Done()
		p.heartbeat(hbCtx, jobID, l)
	}()

	err = p.run(ctx, job, l)
	stopHeartbeat()
	hbDone.Wait()

	duration := job.ProcessingTime(p.now())
	if err != nil {
		l.Warn().Err(err).Msg("try-on job failed")
		p.fail(jobID, err.Error(), duration, l)
		return
	}
	metrics.ObserveJobFinished(string(model.JobStatusCompleted), duration.Milliseconds())
	l.Info().Dur("duration", duration).Msg("try-on job completed")
}

// run performs the unit of work. A panic is converted into an error so the job
// still reaches a terminal state.
func (p *TryOnJobProcessor) run(ctx context.Context, job *model.TryOnJob, l *zerolog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("recovered panic in job execution")
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	person, err := p.artifacts.Get(ctx, job.PersonRef)
	if err != nil {
		return fmt.Errorf("storage: load person image: %w", err)
	}
	garment, err := p.artifacts.Get(ctx, job.GarmentRef)
	if err != nil {
		return fmt.Errorf("storage: load garment image: %w", err)
	}

	provider := p.gateway.Name()
	if err := p.jobs.SetProvider(ctx, nil, job.ID, provider); err != nil {
		l.Warn().Err(err).Str("provider", provider).Msg("record provider")
	}

	synthCtx, cancel := context.WithTimeout(ctx, p.cfg.SynthesisTimeout)
	start := time.Now()
	res, err := p.gateway.Synthesize(synthCtx, adapter.SynthesisRequest{
		JobID:   job.ID,
		Person:  person,
		Garment: garment,
		Style:   job.Style,
	})
	cancel()
	latency := time.Since(start).Milliseconds()
	if err != nil {
		metrics.ObserveSynthesis(provider, latency, false)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("gateway %s: timed out after %s", provider, p.cfg.SynthesisTimeout)
		}
		return fmt.Errorf("gateway %s: %w", provider, err)
	}
	if res == nil || len(res.Image.Data) == 0 {
		metrics.ObserveSynthesis(provider, latency, false)
		return fmt.Errorf("gateway %s: %w", provider, domain.ErrMalformedResponse)
	}
	metrics.ObserveSynthesis(provider, latency, true)

	resultRef, err := p.artifacts.Put(ctx, job.OwnerID, res.Image.Data)
	if err != nil {
		return fmt.Errorf("storage: save result: %w", err)
	}

	err = p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := p.jobs.MarkCompleted(ctx, tx, job.ID, resultRef, job.ProcessingTime(p.now()), p.now()); err != nil {
			return err
		}
		ok, err := p.ledger.TryDecrement(ctx, tx, job.OwnerID)
		if err != nil {
			return fmt.Errorf("debit credit: %w", err)
		}
		if !ok {
			return errNoCredit
		}
		return nil
	})
	if err != nil {
		if derr := p.artifacts.Delete(context.Background(), resultRef); derr != nil {
			l.Warn().Err(derr).Str("ref", resultRef).Msg("remove orphaned result")
		}
		if errors.Is(err, errNoCredit) {
			return err
		}
		return fmt.Errorf("storage: record completion: %w", err)
	}
	return nil
}

func (p *TryOnJobProcessor) heartbeat(ctx context.Context, jobID string, l *zerolog.Logger) {
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.jobs.Heartbeat(ctx, nil, jobID, p.now()); err != nil {
				if errors.Is(err, domain.ErrInvalidTransition) {
					l.Warn().Msg("job left processing while running; heartbeat stopped")
					return
				}
				l.Warn().Err(err).Msg("heartbeat")
			}
		}
	}
}

// fail records a terminal failure on a fresh context so that a cancelled
// execution context cannot leave the job stuck in processing.
func (p *TryOnJobProcessor) fail(jobID, detail string, duration time.Duration, l *zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	detail = strings.TrimSpace(detail)
	if err := p.jobs.MarkFailed(ctx, nil, jobID, detail, duration, p.now()); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			l.Warn().Err(err).Msg("job already terminal; failure not recorded")
			return
		}
		l.Error().Err(err).Msg("mark job failed")
		return
	}
	metrics.ObserveJobFinished(string(model.JobStatusFailed), duration.Milliseconds())
}
