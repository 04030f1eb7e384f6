/*
scheduler.go - Stale requisition recalculation scheduler

PURPOSE:
  Periodically recalculates requisitions whose template changed since they
  were last calculated. Template writes only flag requisitions stale; this
  is the sweep that brings them up to date.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - With a Queue: every stale requisition is enqueued as a
    requisition:recalculate task, unique for one interval, and the worker
    clears the flag
  - Without: stale requisitions are recalculated in-process in batches of
    BatchSize; a failing batch stops the tick
  - Every requisition gets a recalculation run record (recalc.Service)

CONFIGURATION:
  - CheckInterval: How often to check (RECALC_INTERVAL, default: 1 minute)
  - BatchSize:     Requisitions per batch (RECALC_BATCH_SIZE, default: 50)
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRecalculationScheduler(service, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRecalculation endpoint (manual sweep)
  - recalc/service.go: RecalculateStale
*/
package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/warp/requisition-engine/recalc"
)

// RequisitionEnqueuer submits requisition recalculation jobs. *jobs.Client
// implements it.
type RequisitionEnqueuer interface {
	EnqueueRecalculateRequisition(ctx context.Context, requisitionID string, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RecalculationScheduler sweeps stale requisitions.
type RecalculationScheduler struct {
	Service       *recalc.Service
	Queue         RequisitionEnqueuer
	CheckInterval time.Duration
	BatchSize     int
	Enabled       bool
	Logger        *slog.Logger

	ticker  *time.Ticker
	stop    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

// NewRecalculationScheduler creates a new scheduler.
func NewRecalculationScheduler(svc *recalc.Service, logger *slog.Logger) *RecalculationScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecalculationScheduler{
		Service:       svc,
		CheckInterval: time.Minute,
		BatchSize:     50,
		Enabled:       true,
		Logger:        logger.With("component", "scheduler"),
	}
}

// Start begins the scheduler.
func (rs *RecalculationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	rs.stop = make(chan struct{})
	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run(ctx)

	rs.Logger.Info("scheduler started", "interval", rs.CheckInterval, "batch_size", rs.BatchSize)
}

// Stop stops the scheduler and waits for an in-flight sweep to return.
func (rs *RecalculationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	rs.cancel()
	close(rs.stop)
	rs.wg.Wait()
	rs.ticker = nil
	rs.Logger.Info("scheduler stopped")
}

func (rs *RecalculationScheduler) run(ctx context.Context) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess(ctx)

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProcess(ctx)
		case <-rs.stop:
			return
		}
	}
}

// checkAndProcess enqueues or recalculates the stale requisitions.
func (rs *RecalculationScheduler) checkAndProcess(ctx context.Context) (int, error) {
	if rs.Queue != nil {
		return rs.enqueueStale(ctx)
	}

	batch := rs.BatchSize
	if batch <= 0 {
		batch = 50
	}

	total := 0
	for {
		done, err := rs.Service.RecalculateStale(ctx, batch, recalc.TriggerScheduler)
		total += done
		if err != nil {
			rs.Logger.Warn("stale sweep stopped", "recalculated", total, "error", err)
			rs.markRun()
			return total, err
		}
		if done < batch {
			break
		}
	}

	if total > 0 {
		rs.Logger.Info("stale sweep completed", "recalculated", total)
	}
	rs.markRun()
	return total, nil
}

// enqueueStale enqueues one task per stale requisition. A requisition
// already queued within the last interval is skipped by asynq.
func (rs *RecalculationScheduler) enqueueStale(ctx context.Context) (int, error) {
	defer rs.markRun()

	stale, err := rs.Service.Store.ListStaleRequisitions(ctx, 0)
	if err != nil {
		rs.Logger.Warn("list stale requisitions", "error", err)
		return 0, err
	}
	enqueued := 0
	for _, rec := range stale {
		_, err := rs.Queue.EnqueueRecalculateRequisition(ctx, rec.ID, asynq.Unique(rs.CheckInterval))
		switch {
		case errors.Is(err, asynq.ErrDuplicateTask):
		case err != nil:
			rs.Logger.Warn("enqueue stopped", "enqueued", enqueued, "error", err)
			return enqueued, err
		default:
			enqueued++
		}
	}
	if enqueued > 0 {
		rs.Logger.Info("stale requisitions enqueued", "count", enqueued)
	}
	return enqueued, nil
}

func (rs *RecalculationScheduler) markRun() {
	rs.mu.Lock()
	rs.lastRun = time.Now()
	rs.mu.Unlock()
}

// RunNow triggers an immediate sweep (for testing/admin).
func (rs *RecalculationScheduler) RunNow(ctx context.Context) (int, error) {
	return rs.checkAndProcess(ctx)
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *RecalculationScheduler) GetNextRunTime() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.lastRun.IsZero() {
		return time.Now().Add(rs.CheckInterval)
	}
	return rs.lastRun.Add(rs.CheckInterval)
}
