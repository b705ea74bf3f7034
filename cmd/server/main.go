// Command server starts the TrueScore HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	ai "github.com/truescore/truescore/internal/adapter/ai"
	httpserver "github.com/truescore/truescore/internal/adapter/httpserver"
	"github.com/truescore/truescore/internal/adapter/observability"
	"github.com/truescore/truescore/internal/adapter/repo/memjobs"
	"github.com/truescore/truescore/internal/adapter/repo/postgres"
	"github.com/truescore/truescore/internal/adapter/repo/redisjobs"
	"github.com/truescore/truescore/internal/app"
	"github.com/truescore/truescore/internal/config"
	"github.com/truescore/truescore/internal/domain"
	"github.com/truescore/truescore/internal/jobs"
	"github.com/truescore/truescore/internal/refdata"
	"github.com/truescore/truescore/internal/scoring"
	"github.com/truescore/truescore/internal/usecase"
)

// redisAdapter narrows *redis.Client to the readiness interface.
type redisAdapter struct{ *redis.Client }

func (r redisAdapter) Ping(ctx context.Context) app.RedisPingResult {
	return r.Client.Ping(ctx)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so /metrics
	// exposes HTTP, scoring, cache, and job instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	tables, err := refdata.Load()
	if err != nil {
		slog.Error("reference tables load failed", slog.Any("error", err))
		os.Exit(1)
	}
	engine := scoring.NewEngine(tables)

	// Infra: DB pool. The caches degrade to uncached operation when the
	// database is unreachable, so a connect failure is not fatal.
	ctx := context.Background()
	var (
		scoreCache    domain.ScoreCache
		researchCache domain.ResearchCache
		dbPinger      app.Pinger
	)
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Warn("db connect failed, running without caches", slog.Any("error", err))
	} else {
		scoreCache = postgres.NewScoreCacheRepo(pool, cfg.ScoreCacheFreshness)
		researchCache = postgres.NewResearchCacheRepo(pool)
		dbPinger = pool
	}

	// Job stores: Redis primary with in-memory fallback. Without Redis
	// the persistent Postgres store takes over as primary, with a
	// periodic prune of terminal jobs past the retention window.
	var (
		primary  domain.JobStore
		redisCli app.RedisClient
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Warn("redis url invalid, falling back for jobs", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			primary = redisjobs.New(rdb, cfg.JobTTL)
			redisCli = redisAdapter{rdb}
		}
	}
	if primary == nil && pool != nil {
		jobRepo := postgres.NewJobRepo(pool)
		primary = jobRepo
		go func() {
			ticker := time.NewTicker(cfg.CleanupInterval)
			defer ticker.Stop()
			for range ticker.C {
				n, err := jobRepo.PruneCompleted(ctx, cfg.JobRetention)
				if err != nil {
					slog.Warn("job prune failed", slog.Any("error", err))
					continue
				}
				if n > 0 {
					slog.Info("pruned terminal jobs", slog.Int64("count", n))
				}
			}
		}()
	}
	manager := jobs.NewManager(primary, memjobs.New())

	// AI collaborator: deterministic stub in dev when no key is set.
	var aicl domain.AIClient
	if cfg.AnthropicAPIKey == "" && cfg.IsDev() {
		slog.Info("no API key configured, using stub AI client")
		aicl = ai.NewStub()
	} else {
		aicl = ai.New(cfg)
	}

	scoreSvc := usecase.NewScoreService(engine, scoreCache, aicl, cfg.AITimeout)
	researchSvc := usecase.NewResearchService(researchCache, manager, aicl, cfg.AITimeout)

	dbCheck, redisCheck := app.BuildReadinessChecks(dbPinger, redisCli)
	srv := httpserver.NewServer(cfg, scoreSvc, researchSvc, engine.Classifier(), tables, dbCheck, redisCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
