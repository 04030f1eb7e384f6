/*
Package jobs queues requisition recalculation on Redis with asynq.

PURPOSE:
  Saving a template can invalidate hundreds of requisitions. The API
  marks them stale and enqueues one template task; the worker fans it out
  over the recalc service. A requisition task recalculates a single
  requisition (used by the CLI and for retries).

TASKS:
  requisition:recalculate            {"requisition_id": "..."}
  template:recalculate-requisitions  {"template_id": "..."}

RETRIES:
  Malformed payloads and missing requisitions/templates are not retried
  (asynq.SkipRetry). Store failures are retried by asynq.

SEE ALSO:
  - recalc/service.go: The recalculation itself
  - api/scheduler.go: In-process fallback when Redis is not configured
*/
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/warp/requisition-engine/observability"
	"github.com/warp/requisition-engine/recalc"
	"github.com/warp/requisition-engine/requisition"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskRecalculateRequisition recalculates one requisition.
	TaskRecalculateRequisition = "requisition:recalculate"

	// TaskRecalculateTemplate recalculates every requisition of a template.
	TaskRecalculateTemplate = "template:recalculate-requisitions"
)

// RequisitionPayload identifies a requisition.
type RequisitionPayload struct {
	RequisitionID string `json:"requisition_id"`
}

// TemplatePayload identifies a template.
type TemplatePayload struct {
	TemplateID string `json:"template_id"`
}

// NewRecalculateRequisitionTask constructs a requisition task.
func NewRecalculateRequisitionTask(requisitionID string) (*asynq.Task, error) {
	body, err := json.Marshal(RequisitionPayload{RequisitionID: requisitionID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecalculateRequisition, body, asynq.Queue(QueueDefault)), nil
}

// NewRecalculateTemplateTask constructs a template fan-out task.
func NewRecalculateTemplateTask(templateID string) (*asynq.Task, error) {
	body, err := json.Marshal(TemplatePayload{TemplateID: templateID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecalculateTemplate, body, asynq.Queue(QueueDefault)), nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// Handlers processes recalculation tasks with the recalc service.
type Handlers struct {
	Service *recalc.Service
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// HandleRecalculateRequisition processes TaskRecalculateRequisition.
func (h *Handlers) HandleRecalculateRequisition(ctx context.Context, t *asynq.Task) error {
	var payload RequisitionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RequisitionID == "" {
		return fmt.Errorf("bad payload: %w", asynq.SkipRetry)
	}
	tracker := h.Metrics.Track(TaskRecalculateRequisition)
	_, err := h.Service.RecalculateRequisition(ctx, payload.RequisitionID, recalc.TriggerTemplate)
	return tracker.End(permanent(err))
}

// HandleRecalculateTemplate processes TaskRecalculateTemplate.
func (h *Handlers) HandleRecalculateTemplate(ctx context.Context, t *asynq.Task) error {
	var payload TemplatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.TemplateID == "" {
		return fmt.Errorf("bad payload: %w", asynq.SkipRetry)
	}
	tracker := h.Metrics.Track(TaskRecalculateTemplate)
	n, err := h.Service.RecalculateTemplate(ctx, payload.TemplateID, recalc.TriggerTemplate)
	h.logger().Info("template requisitions recalculated", "template_id", payload.TemplateID, "count", n, "error", err)
	return tracker.End(permanent(err))
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// permanent marks errors that a retry cannot fix.
func permanent(err error) error {
	if err == nil {
		return nil
	}
	if requisition.IsNotFound(err) || errors.Is(err, recalc.ErrTemplateNotFound) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}
