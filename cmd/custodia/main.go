package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/custodia-vault/custodia/internal/app"
	"github.com/custodia-vault/custodia/internal/auth"
	"github.com/custodia-vault/custodia/internal/ledger"
	"github.com/custodia-vault/custodia/internal/observability"
	"github.com/custodia-vault/custodia/internal/platform/cache"
	"github.com/custodia-vault/custodia/internal/platform/db"
	"github.com/custodia-vault/custodia/internal/roles"
	"github.com/custodia-vault/custodia/internal/shared"
	"github.com/custodia-vault/custodia/internal/vault"
	"github.com/custodia-vault/custodia/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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
	auditLogger := shared.NewAuditLogger(dbpool)

	registry := roles.NewCachedRegistry(roles.NewService(dbpool), redisClient, cfg.RoleCacheTTL, logger)

	vaultRepo := vault.NewRepository(dbpool)
	balanceCache := vault.NewCache(redisClient, cfg.BalanceCacheTTL, logger)
	sink := ledger.LogSink{Logger: logger}
	vaultService := vault.NewService(vaultRepo, registry, sink, auditLogger, balanceCache, logger)

	if err := vault.Bootstrap(ctx, vaultRepo, registry, vault.BootstrapConfig{
		Administrator:  shared.Principal(cfg.AdminPrincipal),
		InitialFunding: cfg.InitialFunding,
	}); err != nil {
		logger.Error("bootstrap vault", slog.Any("error", err))
		os.Exit(1)
	}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}

	vaultHandler := vault.NewHandler(logger, vaultService, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthMiddleware: authMiddleware,
		VaultHandler:   vaultHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
