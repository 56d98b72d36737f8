// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"virtual-tryon/internal/config"
	"virtual-tryon/internal/domain/ports/adapter"
	"virtual-tryon/internal/domain/ports/repository"
	"virtual-tryon/internal/infra/adapters/synthesis"
	"virtual-tryon/internal/infra/api"
	"virtual-tryon/internal/infra/api/apiv1"
	"virtual-tryon/internal/infra/db/memory"
	pg "virtual-tryon/internal/infra/db/postgres"
	"virtual-tryon/internal/infra/logging"
	"virtual-tryon/internal/infra/metrics"
	red "virtual-tryon/internal/infra/redis"
	"virtual-tryon/internal/infra/storage"
	"virtual-tryon/internal/infra/worker"
	"virtual-tryon/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: in-memory stores without database.url, noop provider allowed")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	health := map[string]api.HealthFunc{}

	// ---- Storage: jobs, ledger, transactions ----
	var (
		jobs   repository.JobRepository
		ledger repository.CreditLedger
		tm     repository.TransactionManager
	)
	var redisClient *red.Client
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		health["redis"] = func(r *http.Request) error { return redisClient.Ping(r.Context()) }
	}

	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
		go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)
		health["postgres"] = func(r *http.Request) error { return pool.Ping(r.Context()) }

		jobs = pg.NewJobRepo(pool)
		if redisClient != nil {
			jobs = pg.NewJobRepoCacheDecorator(jobs, redisClient, cfg.Redis.TTL, logger)
		}
		ledger = pg.NewCreditLedger(pool)
		tm = pg.NewTxManager(pool)
	} else {
		logger.Warn().Msg("database.url not set; using in-memory job store and ledger")
		mem := memory.New()
		jobs, ledger, tm = mem, mem, mem
	}

	signer := storage.NewURLSigner(cfg.Storage.SigningKey, cfg.HTTP.BaseURL)
	artifacts, err := storage.NewFileStore(cfg.Storage.Path, signer)
	if err != nil {
		logger.Fatal().Err(err).Msg("artifact store")
	}

	// ---- Synthesis providers ----
	gateway, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("synthesis")
	}

	// ---- Executor ----
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	pool := worker.NewPool(cfg.Worker.Concurrency, cfg.Worker.QueueSize, logger)
	processor := worker.NewTryOnJobProcessor(jobs, ledger, artifacts, gateway, tm, pool, worker.ProcessorConfig{
		SynthesisTimeout:  cfg.Synthesis.Timeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		SweepInterval:     cfg.Worker.SweepInterval,
		SweepAfter:        cfg.Worker.SweepAfter,
	}, logger)
	pool.Start(workerCtx)
	go processor.Start(workerCtx)

	var locker red.Locker
	if redisClient != nil {
		locker = red.NewLocker(redisClient)
	}
	reaper := worker.NewReaper(cfg.Worker.ReapInterval, cfg.Worker.StaleAfter, jobs, tm, locker, logger)
	go func() { _ = reaper.Run(workerCtx) }()

	// ---- Use cases ----
	dispatchUC := usecase.NewDispatchUseCase(jobs, ledger, artifacts, processor, cfg.Limits.MaxImageBytes, logger)
	statusUC := usecase.NewStatusUseCase(jobs, ledger, artifacts, cfg.Storage.URLTTL, logger)

	// ---- HTTP ----
	deps := apiv1.Deps{
		Dispatch:        dispatchUC,
		Status:          statusUC,
		Artifacts:       artifacts,
		Tokens:          signer,
		SubmitPerMinute: cfg.Limits.SubmitPerMinute,
		MaxImageBytes:   cfg.Limits.MaxImageBytes,
	}
	if redisClient != nil {
		deps.Limiter = red.NewRateLimiter(redisClient)
	}
	handler := api.NewRouter(api.RouterOptions{
		API:            apiv1.NewServer(deps, logger),
		Auth:           api.NewOwnerAuth(cfg.Auth.Secret, cfg.Runtime.Dev),
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Health:         health,
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("provider", gateway.Name()).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	// running jobs get the grace period; after that they are cancelled and marked failed
	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("grace period over; cancelling running jobs")
		stopWorkers()
		<-done
	}
	stopWorkers()
	cancel()
	logger.Info().Msg("bye")
}

// buildGateway registers every configured provider and routes to synthesis.provider.
func buildGateway(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.SynthesisGateway, error) {
	sc := cfg.Synthesis
	var gws []adapter.SynthesisGateway

	if sc.Gemini.APIKey != "" {
		g, err := synthesis.NewGeminiGateway(ctx, sc.Gemini.APIKey, sc.Gemini.BaseURL, sc.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini gateway: %w", err)
		}
		gws = append(gws, g)
		logger.Info().Str("model", sc.Gemini.Model).Str("key", logging.Redact(sc.Gemini.APIKey, cfg.Runtime.Dev)).Msg("synthesis provider: gemini")
	}
	if sc.OpenAI.APIKey != "" {
		g, err := synthesis.NewOpenAIGateway(sc.OpenAI.APIKey, sc.OpenAI.Model)
		if err != nil {
			return nil, fmt.Errorf("openai gateway: %w", err)
		}
		gws = append(gws, g)
		logger.Info().Str("model", sc.OpenAI.Model).Str("key", logging.Redact(sc.OpenAI.APIKey, cfg.Runtime.Dev)).Msg("synthesis provider: openai")
	}
	if sc.HTTP.URL != "" {
		g, err := synthesis.NewHTTPGateway(sc.HTTP.URL, sc.HTTP.APIKey, nil)
		if err != nil {
			return nil, fmt.Errorf("http gateway: %w", err)
		}
		gws = append(gws, g)
		logger.Info().Str("url", sc.HTTP.URL).Msg("synthesis provider: http")
	}
	if cfg.Runtime.Dev {
		gws = append(gws, synthesis.NewNoopGateway(2*time.Second))
	}
	if len(gws) == 0 {
		return nil, errors.New("no synthesis provider configured")
	}

	multi := synthesis.NewMultiGateway(sc.Provider, gws...)
	if multi.Name() != sc.Provider {
		logger.Warn().Str("wanted", sc.Provider).Str("using", multi.Name()).Strs("available", multi.Providers()).
			Msg("configured provider unavailable; falling back")
	}
	return synthesis.NewLimitedGateway(multi, sc.ConcurrentLimit), nil
}
