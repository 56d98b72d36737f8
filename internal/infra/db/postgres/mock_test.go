//go:build !integration

package postgres

import (
	"context"
	"time"

	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/repository"
	red "virtual-tryon/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerJobRepo mocks the database repository that the job decorator wraps.
// Only the methods the decorator overrides are hooked; the rest panic if called.
type mockInnerJobRepo struct {
	repository.JobRepository
	FindByIDFunc      func(ctx context.Context, tx repository.Tx, id string) (*model.TryOnJob, error)
	MarkCompletedFunc func(ctx context.Context, tx repository.Tx, id, resultRef string, duration time.Duration, at time.Time) error
	MarkFailedFunc    func(ctx context.Context, tx repository.Tx, id, detail string, duration time.Duration, at time.Time) error
}

func (m *mockInnerJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.TryOnJob, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerJobRepo) MarkCompleted(ctx context.Context, tx repository.Tx, id, resultRef string, duration time.Duration, at time.Time) error {
	return m.MarkCompletedFunc(ctx, tx, id, resultRef, duration, at)
}
func (m *mockInnerJobRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, detail string, duration time.Duration, at time.Time) error {
	return m.MarkFailedFunc(ctx, tx, id, detail, duration, at)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
