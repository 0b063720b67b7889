package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/custodia-vault/custodia/internal/jobs"
)

// BalanceReader is satisfied by the vault service; reading the balance
// through it repopulates the redis cache.
type BalanceReader interface {
	Balance(ctx context.Context) (int64, error)
}

// CacheWarmupJob primes the balance cache after deploys and cache flushes.
type CacheWarmupJob struct {
	Reader  BalanceReader
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCacheWarmupJob wires dependencies for the warmup handler.
func NewCacheWarmupJob(reader BalanceReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	return &CacheWarmupJob{Reader: reader, Logger: logger, Metrics: metrics}
}

// Handle processes cache warmup tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reader == nil {
		return errors.New("cache warmup: handler not configured")
	}
	tracker := j.Metrics.Track("cache_warmup")
	balance, err := j.Reader.Balance(ctx)
	if err == nil && j.Logger != nil {
		j.Logger.Info("balance cache warmed", slog.Int64("balance", balance))
	}
	return tracker.End(err)
}
