//go:build !integration

package client_test

import (
	"context"
	"sync"

	"virtual-tryon/internal/client"
)

type mockFetcher struct {
	mu         sync.Mutex
	calls      int
	StatusFunc func(ctx context.Context, jobID string, call int) (*client.JobStatus, error)
}

func (m *mockFetcher) Status(ctx context.Context, jobID string) (*client.JobStatus, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()
	return m.StatusFunc(ctx, jobID, n)
}

func (m *mockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockSubmitter struct {
	requests   []client.SubmitRequest
	SubmitFunc func(ctx context.Context, req client.SubmitRequest) (string, error)
}

func (m *mockSubmitter) Submit(ctx context.Context, req client.SubmitRequest) (string, error) {
	m.requests = append(m.requests, req)
	return m.SubmitFunc(ctx, req)
}
