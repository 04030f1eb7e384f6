package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Worker wraps the asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Concurrency int
	Logger      *slog.Logger
	Handlers    *Handlers
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Handlers == nil || cfg.Handlers.Service == nil {
		return nil, errors.New("worker: handlers not configured")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("job failed", "type", task.Type(), "error", err)
		}),
	})
	return &Worker{server: srv, mux: NewServeMux(cfg.Handlers), logger: logger}, nil
}

// NewServeMux routes every task type to h.
func NewServeMux(h *Handlers) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRecalculateRequisition, h.HandleRecalculateRequisition)
	mux.HandleFunc(TaskRecalculateTemplate, h.HandleRecalculateTemplate)
	return mux
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	w.logger.Info("worker started")
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueRecalculateRequisition enqueues a requisition task. opts are
// passed through to asynq (the scheduler uses asynq.Unique).
func (c *Client) EnqueueRecalculateRequisition(ctx context.Context, requisitionID string, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	task, err := NewRecalculateRequisitionTask(requisitionID)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, opts...)
}

// EnqueueRecalculateTemplate enqueues a template fan-out task.
func (c *Client) EnqueueRecalculateTemplate(ctx context.Context, templateID string) (*asynq.TaskInfo, error) {
	task, err := NewRecalculateTemplateTask(templateID)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// Close releases the client connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
