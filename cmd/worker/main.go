/*
main.go - Recalculation job worker

PURPOSE:
  Processes requisition:recalculate and template:recalculate-requisitions
  tasks enqueued by the server. Shares the server's SQLite database and
  Redis instance.

  Requires REDIS_ADDR. Without it the server recalculates in-process and
  no worker is needed.

SEE ALSO:
  - jobs/tasks.go: Task types and handlers
  - cmd/server/main.go: Enqueuing side
*/
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/warp/requisition-engine/config"
	"github.com/warp/requisition-engine/jobs"
	"github.com/warp/requisition-engine/observability"
	"github.com/warp/requisition-engine/recalc"
	"github.com/warp/requisition-engine/requisition"
	"github.com/warp/requisition-engine/store/cache"
	"github.com/warp/requisition-engine/store/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := config.NewLogger(cfg).With("component", "worker")
	if !cfg.CacheEnabled() {
		logger.Error("REDIS_ADDR is required to run the worker")
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	cached := cache.New(db, redisClient, cfg.TemplateCacheTTL, logger)
	go func() {
		if err := cached.ListenForInvalidation(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("template cache invalidation stopped", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	service := recalc.New(cached, requisition.NewCalculator(cfg.Engine), metrics, logger)
	service.Concurrency = cfg.WorkerConcurrency

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
		Handlers: &jobs.Handlers{
			Service: service,
			Metrics: metrics,
			Logger:  logger,
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
