// Command server runs the InsightForge API: HTTP router, job-pipeline
// worker pool, and every service wired behind them. Composition root only —
// no business logic lives here.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/brightlane/insightforge/pkg/api"
	"github.com/brightlane/insightforge/pkg/authn"
	"github.com/brightlane/insightforge/pkg/config"
	"github.com/brightlane/insightforge/pkg/database"
	"github.com/brightlane/insightforge/pkg/llmprovider"
	"github.com/brightlane/insightforge/pkg/promptstore"
	"github.com/brightlane/insightforge/pkg/queue"
	"github.com/brightlane/insightforge/pkg/ratelimit"
	"github.com/brightlane/insightforge/pkg/services"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, database.ConfigFromApp(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logger.Error("closing database client", "error", err)
		}
	}()
	logger.Info("connected to database, migrations applied")

	provider, err := llmprovider.New(cfg.LLM)
	if err != nil {
		return err
	}

	prompts, err := promptstore.New()
	if err != nil {
		return err
	}

	issuer := authn.NewIssuer(cfg.Auth.SigningSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	userSvc := services.NewUserService(dbClient.Client)
	orgSvc := services.NewOrgService(dbClient.Client)
	analysisSvc := services.NewAnalysisService(dbClient.Client)
	refineSvc := services.NewRefineService(dbClient.Client)
	usageSvc := services.NewUsageService(dbClient.Client)

	model := defaultModelFor(cfg.LLM.Provider)
	runner := queue.NewAnalysisRunner(dbClient.Client, analysisSvc, provider, prompts, model)
	refineRunner := services.NewRefineRunner(dbClient.Client, provider, prompts, model)

	backend, err := buildQueueBackend(ctx, cfg.Queue, analysisSvc)
	if err != nil {
		return err
	}

	podID := podIdentity()
	workerPool := queue.NewWorkerPool(podID, dbClient.Client, cfg.Worker, analysisSvc, runner, backend)

	recovered, err := queue.CleanupStartupOrphans(ctx, analysisSvc, podID)
	if err != nil {
		logger.Error("startup orphan sweep failed", "error", err)
	} else if recovered > 0 {
		logger.Warn("recovered orphaned analyses at startup", "count", recovered)
	}

	workerPool.Start(ctx)
	defer workerPool.Stop()

	ipLimiter, authLimiter, userLimiter, err := buildRateLimiters(cfg.Cache, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Deps{
		Config:       cfg,
		DBClient:     dbClient,
		Issuer:       issuer,
		UserSvc:      userSvc,
		OrgSvc:       orgSvc,
		AnalysisSvc:  analysisSvc,
		RefineSvc:    refineSvc,
		UsageSvc:     usageSvc,
		RefineRunner: refineRunner,
		Runner:       runner,
		Backend:      backend,
		WorkerPool:   workerPool,
		Prompts:      prompts,
		IPLimiter:    ipLimiter,
		AuthLimiter:  authLimiter,
		UserLimiter:  userLimiter,
	})

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		if err := server.Start(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildQueueBackend selects the in-process backend when no QUEUE_URL is
// configured, or a Redis Streams backend otherwise.
func buildQueueBackend(ctx context.Context, cfg config.QueueConfig, analysisSvc *services.AnalysisService) (queue.Backend, error) {
	if cfg.InProcess() {
		return queue.NewInProcessBackend(analysisSvc), nil
	}
	return queue.NewRedisStreamsBackend(ctx, cfg.URL, analysisSvc, 5*time.Minute)
}

// buildRateLimiters selects in-memory token buckets when no CACHE_URL is
// configured, or Redis-backed fixed-window counters otherwise, shared
// across all three rate-limited surfaces (general IP traffic, the auth
// group, and per-authenticated-user).
func buildRateLimiters(cfg config.CacheConfig, logger *slog.Logger) (ip, auth, user ratelimit.Limiter, err error) {
	if cfg.InMemory() {
		return ratelimit.NewInMemoryLimiter(120, time.Minute),
			ratelimit.NewInMemoryLimiter(10, time.Minute),
			ratelimit.NewInMemoryLimiter(60, time.Minute),
			nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redis.NewClient(opts)

	return ratelimit.NewRedisLimiter(rdb, "ratelimit:ip", 120, time.Minute, logger),
		ratelimit.NewRedisLimiter(rdb, "ratelimit:auth", 10, time.Minute, logger),
		ratelimit.NewRedisLimiter(rdb, "ratelimit:user", 60, time.Minute, logger),
		nil
}

func defaultModelFor(provider string) string {
	if provider == "openai" {
		return "gpt-4o"
	}
	return "claude-3-7-sonnet"
}

func podIdentity() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "pod-unknown"
}

