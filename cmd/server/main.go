/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the requisition engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, then environment)
  2. Open SQLite store
  3. Wrap it in the Redis template cache and connect the job queue
     (only when REDIS_ADDR is set)
  4. Create API handler, metrics and the stale recalculation scheduler
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Stop the scheduler, close the queue client and the database
  4. Exit

EXAMPLES:
  # Run with file database
  DB_PATH=./data/requisitions.db ./server

  # Run with in-memory database and a job queue
  DB_PATH=":memory:" REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - cmd/worker/main.go: Job worker
*/
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/warp/requisition-engine/api"
	"github.com/warp/requisition-engine/config"
	"github.com/warp/requisition-engine/jobs"
	"github.com/warp/requisition-engine/messages"
	"github.com/warp/requisition-engine/observability"
	"github.com/warp/requisition-engine/store"
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
	logger := config.NewLogger(cfg)

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	var st store.Store = db
	var queue *jobs.Client
	var inspector *asynq.Inspector
	if cfg.CacheEnabled() {
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
		st = cached

		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		queue = jobs.NewClient(redisOpts)
		defer queue.Close()
		inspector = asynq.NewInspector(redisOpts)
		defer inspector.Close()
	}

	bundle := messages.MustLoad().ForLocale(cfg.MessagesLocale)
	metrics := observability.NewMetrics()

	handler := api.NewHandler(st, cfg.Engine, cfg.TemplateRules).WithObservability(logger, metrics)
	handler.Messages = bundle

	scheduler := api.NewRecalculationScheduler(handler.Service, logger)
	scheduler.CheckInterval = cfg.RecalcInterval
	scheduler.BatchSize = cfg.RecalcBatchSize
	if queue != nil {
		handler.Queue = queue
		scheduler.Queue = queue
	}

	opts := api.RouterOptions{
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     cfg.AppRequestTimeout,
		Production:         cfg.IsProduction(),
	}
	if inspector != nil {
		opts.Jobs = jobs.NewHandler(inspector, logger)
	}
	router := api.NewRouter(handler, opts)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("db", cfg.DBPath),
			slog.Bool("queue", queue != nil))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
