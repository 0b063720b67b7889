package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/custodia-vault/custodia/internal/app"
	jobmetrics "github.com/custodia-vault/custodia/internal/jobs"
	"github.com/custodia-vault/custodia/internal/observability"
	"github.com/custodia-vault/custodia/internal/platform/cache"
	"github.com/custodia-vault/custodia/internal/platform/db"
	"github.com/custodia-vault/custodia/internal/vault"
	"github.com/custodia-vault/custodia/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	taskMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	vaultRepo := vault.NewRepository(pool)
	balanceCache := vault.NewCache(redisClient, cfg.BalanceCacheTTL, logger)
	vaultService := vault.NewService(vaultRepo, nil, nil, nil, balanceCache, logger)

	conservationJob := jobs.NewConservationCheckJob(vaultRepo, metrics, logger, taskMetrics)
	warmupJob := jobs.NewCacheWarmupJob(vaultService, logger, taskMetrics)

	conservationTask, err := jobs.NewConservationCheckTask(jobs.ConservationCheckPayload{RequestedBy: "scheduler"})
	if err != nil {
		logger.Error("prepare conservation task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeConservationCheck, Handler: conservationJob.Handle},
			{Type: jobs.TaskTypeCacheWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: conservationTask},
			{Spec: "@every 5m", Task: jobs.NewCacheWarmupTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
