/*
Package recalc loads stored requisitions, recalculates them against their
template and writes them back, recording a run for every attempt.

PURPOSE:
  The same load-recalculate-save sequence is triggered from four places:
  an HTTP edit, a template change (through the job queue), the periodic
  stale sweep and the reqctl CLI. Service is the one implementation they
  share.

RUN LOG:
  Every requisition recalculation writes a RecalculationRun:
    running -> completed (LineItems = recalculated, non-skipped items)
    running -> failed    (Error = cause)

FROZEN REQUISITIONS:
  Released and skipped requisitions are not recalculated. Their stale
  flag is cleared so the sweep does not pick them up again.

SEE ALSO:
  - requisition/cascade.go: RecalculateAll
  - api/scheduler.go: Periodic stale sweep
  - jobs/tasks.go: Queued recalculation
*/
package recalc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/warp/requisition-engine/factory"
	"github.com/warp/requisition-engine/observability"
	"github.com/warp/requisition-engine/requisition"
	"github.com/warp/requisition-engine/store"
	"github.com/warp/requisition-engine/template"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrTemplateNotFound is returned when a referenced template doesn't exist.
var ErrTemplateNotFound = errors.New("recalc: template not found")

// Trigger names what started a recalculation. Used as a metric label.
const (
	TriggerEdit      = "edit"
	TriggerTemplate  = "template"
	TriggerScheduler = "scheduler"
	TriggerCLI       = "cli"
)

// Service recalculates stored requisitions.
type Service struct {
	Store        store.Store
	Calculator   *requisition.Calculator
	Templates    *factory.TemplateFactory
	Requisitions *factory.RequisitionFactory
	Metrics      *observability.Metrics
	Logger       *slog.Logger

	// Concurrency bounds parallel requisitions in RecalculateTemplate.
	Concurrency int

	templateLoads singleflight.Group
	now           func() time.Time
}

// New creates a service with default factories.
func New(st store.Store, calc *requisition.Calculator, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:        st,
		Calculator:   calc,
		Templates:    factory.NewTemplateFactory(),
		Requisitions: factory.NewRequisitionFactory(),
		Metrics:      metrics,
		Logger:       logger,
		Concurrency:  4,
		now:          time.Now,
	}
}

// =============================================================================
// LOADING
// =============================================================================

// LoadTemplate reads and parses a stored template.
func (s *Service) LoadTemplate(ctx context.Context, id string) (*template.Template, error) {
	tpl, _, err := s.LoadTemplateRecord(ctx, id)
	return tpl, err
}

// LoadTemplateRecord reads and parses a stored template and also returns
// its record. Concurrent loads of the same ID share one store read.
func (s *Service) LoadTemplateRecord(ctx context.Context, id string) (*template.Template, store.TemplateRecord, error) {
	ch := s.templateLoads.DoChan(id, func() (interface{}, error) {
		rec, err := s.Store.GetTemplate(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
		}
		return *rec, nil
	})
	select {
	case <-ctx.Done():
		return nil, store.TemplateRecord{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, store.TemplateRecord{}, res.Err
		}
		// Each caller parses its own copy; templates are mutable.
		rec := res.Val.(store.TemplateRecord)
		tpl, err := s.Templates.FromTemplateRecord(rec)
		return tpl, rec, err
	}
}

// LoadRequisition reads a stored requisition together with its template.
// The record is returned when it exists, even if parsing fails.
func (s *Service) LoadRequisition(ctx context.Context, id string) (*requisition.Requisition, *store.RequisitionRecord, error) {
	rec, err := s.Store.GetRequisition(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, fmt.Errorf("%w: %s", requisition.ErrRequisitionNotFound, id)
	}
	tpl, err := s.LoadTemplate(ctx, rec.TemplateID)
	if err != nil {
		return nil, rec, err
	}
	req, err := s.Requisitions.FromRecord(*rec, tpl)
	if err != nil {
		return nil, rec, err
	}
	return req, rec, nil
}

// SaveRequisition stores req as freshly calculated.
func (s *Service) SaveRequisition(ctx context.Context, req *requisition.Requisition) error {
	rec, err := s.Requisitions.ToRecord(req)
	if err != nil {
		return err
	}
	if err := s.Store.SaveRequisition(ctx, rec); err != nil {
		return err
	}
	return s.Store.MarkRequisitionCalculated(ctx, req.ID, s.now())
}

// =============================================================================
// RECALCULATION
// =============================================================================

// RecalculateRequisition recalculates one stored requisition and logs a run.
func (s *Service) RecalculateRequisition(ctx context.Context, id, trigger string) (store.RecalculationRun, error) {
	started := s.now()
	run := store.RecalculationRun{
		ID:            uuid.NewString(),
		RequisitionID: id,
		Status:        store.RunRunning,
		StartedAt:     &started,
		CreatedAt:     started,
	}
	if err := s.Store.SaveRecalculationRun(ctx, run); err != nil {
		return run, fmt.Errorf("save run: %w", err)
	}

	n, templateID, err := s.recalculate(ctx, id)
	run.TemplateID = templateID
	completed := s.now()
	run.CompletedAt = &completed
	if err != nil {
		run.Status = store.RunFailed
		run.Error = err.Error()
		if saveErr := s.Store.SaveRecalculationRun(ctx, run); saveErr != nil {
			s.Logger.Error("save failed run", "run_id", run.ID, "error", saveErr)
		}
		return run, err
	}

	run.Status = store.RunCompleted
	run.LineItems = n
	if err := s.Store.SaveRecalculationRun(ctx, run); err != nil {
		return run, fmt.Errorf("save run: %w", err)
	}
	s.Metrics.Recalculated(trigger, n)
	s.Logger.Info("requisition recalculated",
		"requisition_id", id, "template_id", templateID, "line_items", n, "trigger", trigger)
	return run, nil
}

func (s *Service) recalculate(ctx context.Context, id string) (int, string, error) {
	req, rec, err := s.LoadRequisition(ctx, id)
	if err != nil {
		var templateID string
		if rec != nil {
			templateID = rec.TemplateID
		}
		return 0, templateID, err
	}
	if frozen(req.Status) {
		return 0, rec.TemplateID, s.Store.MarkRequisitionCalculated(ctx, id, s.now())
	}
	n := s.Calculator.RecalculateAll(req)
	return n, rec.TemplateID, s.SaveRequisition(ctx, req)
}

func frozen(st requisition.Status) bool {
	switch st {
	case requisition.StatusReleased, requisition.StatusReleasedWithoutOrder, requisition.StatusSkipped:
		return true
	}
	return false
}

// RecalculateTemplate recalculates every requisition of templateID and
// returns how many succeeded. The first failure is returned after all
// requisitions were attempted.
func (s *Service) RecalculateTemplate(ctx context.Context, templateID, trigger string) (int, error) {
	recs, err := s.Store.ListRequisitionsByTemplate(ctx, templateID)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return s.recalculateAll(ctx, ids, trigger)
}

// RecalculateStale recalculates up to limit stale requisitions.
func (s *Service) RecalculateStale(ctx context.Context, limit int, trigger string) (int, error) {
	recs, err := s.Store.ListStaleRequisitions(ctx, limit)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return s.recalculateAll(ctx, ids, trigger)
}

func (s *Service) recalculateAll(ctx context.Context, ids []string, trigger string) (int, error) {
	var g errgroup.Group
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	results := make([]error, len(ids))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = err
				return nil
			}
			_, results[i] = s.RecalculateRequisition(ctx, id, trigger)
			return nil
		})
	}
	_ = g.Wait()

	var (
		done     int
		firstErr error
	)
	for i, err := range results {
		if err == nil {
			done++
			continue
		}
		s.Logger.Warn("requisition recalculation failed", "requisition_id", ids[i], "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return done, firstErr
}

// MarkTemplateChanged flags the template's requisitions for recalculation.
func (s *Service) MarkTemplateChanged(ctx context.Context, templateID string) (int, error) {
	n, err := s.Store.MarkTemplateRequisitionsStale(ctx, templateID)
	if err != nil {
		return 0, err
	}
	s.Logger.Info("template requisitions marked stale", "template_id", templateID, "count", n)
	return n, nil
}
