package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"virtual-tryon/internal/infra/api/apiv1"
)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(r *http.Request) error

type RouterOptions struct {
	API            *apiv1.Server
	Auth           *OwnerAuth
	RequestTimeout time.Duration
	Health         map[string]HealthFunc
}

// NewRouter assembles the public HTTP surface: /health, /metrics and /v1.
func NewRouter(opts RouterOptions, logger *zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(logger), Recover(logger), Timeout(opts.RequestTimeout))

	r.Get("/health", healthHandler(opts.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	apiv1.RegisterAPIV1(r, opts.API, opts.Auth.Middleware())
	return r
}

func healthHandler(checks map[string]HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, check := range checks {
			if err := check(r); err != nil {
				http.Error(w, name+": "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
