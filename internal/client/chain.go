package client

import (
	"context"
	"errors"
	"fmt"
)

var ErrEmptyChain = errors.New("chain: no steps")

// ChainStep applies one garment on top of the previous step's result.
type ChainStep struct {
	Garment Input
	Style   string
}

type ChainResult struct {
	// JobIDs lists every submitted job in order, including a failed last one.
	JobIDs []string
	Final  *JobStatus
}

// ChainStepError reports the 1-based step that stopped the chain.
type ChainStepError struct {
	Step  int
	JobID string
	Err   error
}

func (e *ChainStepError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("chain step %d: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("chain step %d (job %s): %v", e.Step, e.JobID, e.Err)
}

func (e *ChainStepError) Unwrap() error { return e.Err }

// Submitter creates jobs. *Client implements it.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
}

type Chain struct {
	submitter Submitter
	poller    *Poller
}

func NewChain(submitter Submitter, poller *Poller) *Chain {
	return &Chain{submitter: submitter, poller: poller}
}

// Run submits the steps one after another, feeding each result reference into
// the next step as the person image. It stops at the first failure. Jobs that
// already completed stay completed and stay charged.
func (c *Chain) Run(ctx context.Context, person Input, steps []ChainStep) (*ChainResult, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyChain
	}
	res := &ChainResult{JobIDs: make([]string, 0, len(steps))}
	current := person
	for i, step := range steps {
		jobID, err := c.submitter.Submit(ctx, SubmitRequest{Person: current, Garment: step.Garment, Style: step.Style})
		if err != nil {
			return res, &ChainStepError{Step: i + 1, Err: err}
		}
		res.JobIDs = append(res.JobIDs, jobID)

		st, err := c.poller.AwaitCompletion(ctx, jobID)
		if err != nil {
			return res, &ChainStepError{Step: i + 1, JobID: jobID, Err: err}
		}
		res.Final = st
		current = Input{Ref: st.ResultRef}
	}
	return res, nil
}
