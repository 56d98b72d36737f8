//go:build !integration

package api_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"virtual-tryon/internal/infra/api"
	"virtual-tryon/internal/infra/api/apiv1"
	"virtual-tryon/internal/infra/db/memory"
	"virtual-tryon/internal/infra/storage"
	"virtual-tryon/internal/usecase"
)

func newRouter(t *testing.T, health map[string]api.HealthFunc) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	store := memory.New()
	signer := storage.NewURLSigner("0123456789abcdef-test", "http://test")
	arts := storage.NewMemoryStore(signer)
	srv := apiv1.NewServer(apiv1.Deps{
		Dispatch:  usecase.NewDispatchUseCase(store, store, arts, nil, 1<<20, &logger),
		Status:    usecase.NewStatusUseCase(store, store, arts, time.Minute, &logger),
		Artifacts: arts,
		Tokens:    signer,
	}, &logger)
	return api.NewRouter(api.RouterOptions{
		API:            srv,
		Auth:           api.NewOwnerAuth("secret", true),
		RequestTimeout: time.Second,
		Health:         health,
	}, &logger)
}

func TestRouter(t *testing.T) {
	t.Run("should serve health and metrics without auth", func(t *testing.T) {
		h := newRouter(t, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("health: expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("expected a trace id header")
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("metrics: expected 200, got %d", rec.Code)
		}
	})

	t.Run("should report a failing dependency", func(t *testing.T) {
		h := newRouter(t, map[string]api.HealthFunc{
			"redis": func(r *http.Request) error { return errors.New("connection refused") },
		})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "redis") {
			t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("should require an owner on /v1 routes", func(t *testing.T) {
		h := newRouter(t, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/credits", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
		req.Header.Set("X-Owner-ID", "alice")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("dev owner header: expected 200, got %d", rec.Code)
		}
	})

	t.Run("should echo a caller supplied request id", func(t *testing.T) {
		h := newRouter(t, nil)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("X-Request-ID") != "abc-123" {
			t.Errorf("unexpected request id %q", rec.Header().Get("X-Request-ID"))
		}
	})
}
