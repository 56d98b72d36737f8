//go:build !integration

package worker_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/adapter"
	"virtual-tryon/internal/infra/db/memory"
	"virtual-tryon/internal/infra/storage"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR image")

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// mockGateway is a hand fake of adapter.SynthesisGateway.
type mockGateway struct {
	SynthesizeFunc func(ctx context.Context, req adapter.SynthesisRequest) (*adapter.SynthesisResult, error)
}

func (m *mockGateway) Name() string { return "mock" }

func (m *mockGateway) Synthesize(ctx context.Context, req adapter.SynthesisRequest) (*adapter.SynthesisResult, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}
	return &adapter.SynthesisResult{Image: adapter.Image{Data: pngBytes, MIMEType: "image/png"}, Provider: "mock"}, nil
}

// mockLocker is a hand fake of redis.Locker.
type mockLocker struct {
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
	unlocked    []string
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	return "token", nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	m.unlocked = append(m.unlocked, key)
	return nil
}

type fixture struct {
	store     *memory.Store
	artifacts *storage.MemoryStore
}

func newFixture(t *testing.T, credits int) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.New(),
		artifacts: storage.NewMemoryStore(storage.NewURLSigner("0123456789abcdef-test", "http://test")),
	}
	if credits > 0 {
		if _, err := f.store.Grant(context.Background(), nil, "owner-1", credits); err != nil {
			t.Fatalf("Grant: %v", err)
		}
	}
	return f
}

// pendingJob stores both inputs and persists a pending job for owner-1.
func (f *fixture) pendingJob(t *testing.T) *model.TryOnJob {
	t.Helper()
	ctx := context.Background()
	person, err := f.artifacts.Put(ctx, "owner-1", pngBytes)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	garment, _ := f.artifacts.Put(ctx, "owner-1", pngBytes)
	job, err := model.NewTryOnJob("owner-1", person, garment, model.StyleUpper)
	if err != nil {
		t.Fatalf("NewTryOnJob: %v", err)
	}
	if err := f.store.Create(ctx, nil, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func (f *fixture) job(t *testing.T, id string) *model.TryOnJob {
	t.Helper()
	j, err := f.store.FindByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	return j
}

func (f *fixture) balance(t *testing.T) int {
	t.Helper()
	b, _ := f.store.Balance(context.Background(), nil, "owner-1")
	return b
}
