package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	// ErrPollTimeout means MaxAttempts status reads saw no terminal state. The
	// job itself keeps running on the server.
	ErrPollTimeout = errors.New("poll: job did not finish in time")
	ErrJobFailed   = errors.New("job failed")

	errNotTerminal = errors.New("job not terminal")
)

// JobFailedError carries the server-side failure detail.
type JobFailedError struct {
	JobID  string
	Detail string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Detail)
}

func (e *JobFailedError) Is(target error) bool { return target == ErrJobFailed }

// StatusFetcher reads a job's status. *Client implements it.
type StatusFetcher interface {
	Status(ctx context.Context, jobID string) (*JobStatus, error)
}

type PollOptions struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// FastAttempts sleeps use InitialInterval before the interval starts growing.
	FastAttempts int
	Multiplier   float64
}

func DefaultPollOptions() PollOptions {
	return PollOptions{
		MaxAttempts:     60,
		InitialInterval: time.Second,
		MaxInterval:     8 * time.Second,
		FastAttempts:    5,
		Multiplier:      1.5,
	}
}

func (o PollOptions) withDefaults() PollOptions {
	d := DefaultPollOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = d.InitialInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = d.MaxInterval
	}
	if o.MaxInterval < o.InitialInterval {
		o.MaxInterval = o.InitialInterval
	}
	if o.FastAttempts < 0 {
		o.FastAttempts = 0
	}
	if o.Multiplier < 1 {
		o.Multiplier = d.Multiplier
	}
	return o
}

// backoff returns the sleep schedule: FastAttempts sleeps of InitialInterval,
// then growth by Multiplier capped at MaxInterval.
func (o PollOptions) backoff() retry.Backoff {
	n := 0
	cur := o.InitialInterval
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		if n <= o.FastAttempts {
			return o.InitialInterval, false
		}
		cur = time.Duration(float64(cur) * o.Multiplier)
		if cur > o.MaxInterval {
			cur = o.MaxInterval
		}
		return cur, false
	})
	return retry.WithMaxRetries(uint64(o.MaxAttempts-1), b)
}

type Poller struct {
	fetcher StatusFetcher
	opts    PollOptions
}

func NewPoller(fetcher StatusFetcher, opts PollOptions) *Poller {
	return &Poller{fetcher: fetcher, opts: opts.withDefaults()}
}

// AwaitCompletion polls jobID until it is terminal. It returns the completed
// status, a *JobFailedError, ErrPollTimeout, the fetcher's error, or ctx.Err().
func (p *Poller) AwaitCompletion(ctx context.Context, jobID string) (*JobStatus, error) {
	var final *JobStatus
	err := retry.Do(ctx, p.opts.backoff(), func(ctx context.Context) error {
		st, err := p.fetcher.Status(ctx, jobID)
		if err != nil {
			return err
		}
		switch st.Status {
		case "completed":
			final = st
			return nil
		case "failed":
			detail := st.Error
			if detail == "" {
				detail = "unknown error"
			}
			return &JobFailedError{JobID: jobID, Detail: detail}
		case "pending", "processing":
			return retry.RetryableError(errNotTerminal)
		default:
			return fmt.Errorf("poll: unexpected status %q for job %s", st.Status, jobID)
		}
	})
	if errors.Is(err, errNotTerminal) {
		return nil, fmt.Errorf("%w: job %s after %d attempts", ErrPollTimeout, jobID, p.opts.MaxAttempts)
	}
	if err != nil {
		return nil, err
	}
	return final, nil
}
