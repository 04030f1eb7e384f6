/*
handlers.go - HTTP API handlers for templates and the column catalog

PURPOSE:
  Exposes the template graph, the reorder algorithm and template
  validation over REST. Handles HTTP request/response and JSON, and
  delegates to the template package.

ENDPOINTS:
  Catalog:
    GET    /api/columns                                List catalog columns

  Templates:
    GET    /api/templates                              List templates
    POST   /api/templates                              Create template
    GET    /api/templates/{id}                         Template + errors
    DELETE /api/templates/{id}                         Delete (409 if used)
    POST   /api/templates/{id}/columns                 Add column {name}
    DELETE /api/templates/{id}/columns/{name}          Remove column
    POST   /api/templates/{id}/columns/{name}/move     Move {targetIndex}
    POST   /api/templates/{id}/stock-based-mode        Toggle stock-based mode
    GET    /api/templates/{id}/columns/{name}/circular Cycle members
    GET    /api/templates/{id}/validation              {valid, errors}

  Runs:
    GET    /api/recalculation/runs                     Recalculation log

TEMPLATE WRITES:
  Every write saves the template, marks its requisitions stale, and
  enqueues a template recalculation when a queue is configured. Without a
  queue the RecalculationScheduler sweeps stale requisitions.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (pinned column, template in use, workflow step)
  - 500: Internal errors

SEE ALSO:
  - requisitions.go: Requisition handlers
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/factory"
	"github.com/warp/requisition-engine/messages"
	"github.com/warp/requisition-engine/observability"
	"github.com/warp/requisition-engine/recalc"
	"github.com/warp/requisition-engine/requisition"
	"github.com/warp/requisition-engine/store"
	"github.com/warp/requisition-engine/template"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Enqueuer submits template recalculation jobs. *jobs.Client implements it.
type Enqueuer interface {
	EnqueueRecalculateTemplate(ctx context.Context, templateID string) (*asynq.TaskInfo, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store              store.Store
	Service            *recalc.Service
	TemplateFactory    *factory.TemplateFactory
	RequisitionFactory *factory.RequisitionFactory
	TemplateValidator  *template.Validator
	Validator          *requisition.Validator
	Calculator         *requisition.Calculator

	// Messages renders validation messages. Nil renders message keys.
	Messages messages.Lookup

	// Queue is optional; nil leaves stale requisitions to the scheduler.
	Queue Enqueuer

	Metrics *observability.Metrics
	Logger  *slog.Logger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over st.
func NewHandler(st store.Store, engine requisition.Config, rules template.Rules) *Handler {
	calc := requisition.NewCalculator(engine)
	return &Handler{
		Store:              st,
		Service:            recalc.New(st, calc, nil, nil),
		TemplateFactory:    factory.NewTemplateFactory(),
		RequisitionFactory: factory.NewRequisitionFactory(),
		TemplateValidator:  template.NewValidator(rules),
		Validator:          requisition.NewValidator(engine),
		Calculator:         calc,
		Logger:             slog.Default(),
		validate:           validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithObservability sets the logger and metrics on the handler and its service.
func (h *Handler) WithObservability(logger *slog.Logger, metrics *observability.Metrics) *Handler {
	if logger != nil {
		h.Logger = logger
		h.Service.Logger = logger
	}
	h.Metrics = metrics
	h.Service.Metrics = metrics
	return h
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListColumns returns the column catalog.
// GET /api/columns
func (h *Handler) ListColumns(w http.ResponseWriter, r *http.Request) {
	defs := catalog.All()
	dtos := make([]ColumnDefinitionDTO, len(defs))
	for i, d := range defs {
		dtos[i] = toColumnDefinition(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

// ListTemplates returns all templates.
// GET /api/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListTemplates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list templates", err)
		return
	}
	dtos := make([]TemplateSummaryDTO, len(records))
	for i, rec := range records {
		dtos[i] = toTemplateSummary(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTemplate creates a template from JSON.
// POST /api/templates
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx := r.Context()
	existing, err := h.Store.GetTemplate(ctx, req.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check template", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Template already exists", nil)
		return
	}

	var tpl *template.Template
	if len(req.ColumnsMap) == 0 {
		tj := req.TemplateJSON()
		tpl = template.NewDefault(req.ID, req.ProgramID,
			template.WithName(req.Name),
			template.WithFacilityTypes(req.FacilityTypeIDs...),
			template.WithStockBasedMode(req.PopulateStockOnHandFromStockCards))
		tpl.NumberOfPeriodsToAverage = tj.NumberOfPeriodsToAverage
	} else {
		tpl, err = h.TemplateFactory.FromJSON(req.TemplateJSON())
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid template", err)
			return
		}
	}

	version, err := h.saveTemplate(ctx, tpl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save template", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.templateDTO(tpl, version))
}

// GetTemplate returns a template with its validation errors.
// GET /api/templates/{id}
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, rec, ok := h.loadTemplate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.templateDTO(tpl, rec.Version))
}

// DeleteTemplate deletes a template that no requisition uses.
// DELETE /api/templates/{id}
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	rec, err := h.Store.GetTemplate(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get template", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Template not found", nil)
		return
	}
	used, err := h.Store.ListRequisitionsByTemplate(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check template usage", err)
		return
	}
	if len(used) > 0 {
		writeError(w, http.StatusConflict, "Template is used by requisitions", map[string]int{"requisitions": len(used)})
		return
	}
	if err := h.Store.DeleteTemplate(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddColumn adds a catalog column with its defaults.
// POST /api/templates/{id}/columns
func (h *Handler) AddColumn(w http.ResponseWriter, r *http.Request) {
	var req AddColumnRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.mutateTemplate(w, r, func(tpl *template.Template) (int, string, error) {
		def := catalog.Lookup(catalog.Name(req.Name))
		if def == nil {
			return http.StatusBadRequest, "Unknown catalog column", template.ErrUnknownColumn
		}
		if _, err := tpl.AddColumn(def); err != nil {
			if errors.Is(err, template.ErrDuplicateColumn) {
				return http.StatusConflict, "Column already present", err
			}
			return http.StatusBadRequest, "Failed to add column", err
		}
		return 0, "", nil
	})
}

// RemoveColumn removes a column.
// DELETE /api/templates/{id}/columns/{name}
func (h *Handler) RemoveColumn(w http.ResponseWriter, r *http.Request) {
	name := catalog.Name(chi.URLParam(r, "name"))
	h.mutateTemplate(w, r, func(tpl *template.Template) (int, string, error) {
		if err := tpl.RemoveColumn(name); err != nil {
			if template.IsNotFound(err) {
				return http.StatusNotFound, "Column not found", err
			}
			return http.StatusBadRequest, "Failed to remove column", err
		}
		return 0, "", nil
	})
}

// MoveColumn moves a column to a display position. Pinned columns and
// moves across a pinned column are rejected with 409.
// POST /api/templates/{id}/columns/{name}/move
func (h *Handler) MoveColumn(w http.ResponseWriter, r *http.Request) {
	var req MoveColumnRequest
	if !h.decode(w, r, &req) {
		return
	}
	name := catalog.Name(chi.URLParam(r, "name"))
	h.mutateTemplate(w, r, func(tpl *template.Template) (int, string, error) {
		if !tpl.Has(name) {
			return http.StatusNotFound, "Column not found", &template.ColumnNotFoundError{TemplateID: tpl.ID, Column: name}
		}
		if !tpl.MoveColumn(name, *req.TargetIndex) {
			return http.StatusConflict, "Column cannot be moved there", nil
		}
		return 0, "", nil
	})
}

// ToggleStockBasedMode flips stock-based mode and re-sources stock columns.
// POST /api/templates/{id}/stock-based-mode
func (h *Handler) ToggleStockBasedMode(w http.ResponseWriter, r *http.Request) {
	h.mutateTemplate(w, r, func(tpl *template.Template) (int, string, error) {
		tpl.ChangePopulateStockOnHandFromStockCards()
		return 0, "", nil
	})
}

// GetCircularDependencies lists the calculated columns in a cycle with the column.
// GET /api/templates/{id}/columns/{name}/circular
func (h *Handler) GetCircularDependencies(w http.ResponseWriter, r *http.Request) {
	tpl, _, ok := h.loadTemplate(w, r)
	if !ok {
		return
	}
	name := catalog.Name(chi.URLParam(r, "name"))
	if !tpl.Has(name) {
		writeError(w, http.StatusNotFound, "Column not found", nil)
		return
	}
	violators := tpl.FindCircularCalculatedDependencies(name)
	if violators == nil {
		violators = []catalog.Name{}
	}
	writeJSON(w, http.StatusOK, CircularDependencyDTO{Column: name, Violators: violators})
}

// ValidateTemplate returns the rendered validation errors.
// GET /api/templates/{id}/validation
func (h *Handler) ValidateTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, _, ok := h.loadTemplate(w, r)
	if !ok {
		return
	}
	rendered := h.TemplateValidator.Render(tpl, h.Messages)
	errs := make(map[string]string, len(rendered))
	for _, e := range rendered {
		errs[string(e.Column)] = e.Text
	}
	writeJSON(w, http.StatusOK, TemplateValidationDTO{Valid: len(errs) == 0, Errors: errs})
}

// ListRecalculationRuns returns the recalculation log, newest first.
// GET /api/recalculation/runs?status=failed
func (h *Handler) ListRecalculationRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRecalculationRuns(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]RecalculationRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TriggerRecalculation recalculates every stale requisition now.
// POST /api/recalculation/process
func (h *Handler) TriggerRecalculation(w http.ResponseWriter, r *http.Request) {
	done, err := h.Service.RecalculateStale(r.Context(), 0, recalc.TriggerScheduler)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Recalculation incomplete", map[string]any{
			"recalculated": done,
			"error":        err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recalculated": done})
}

// =============================================================================
// TEMPLATE HELPERS
// =============================================================================

func (h *Handler) loadTemplate(w http.ResponseWriter, r *http.Request) (*template.Template, store.TemplateRecord, bool) {
	tpl, rec, err := h.Service.LoadTemplateRecord(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, recalc.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "Template not found", nil)
		return nil, rec, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to load template", err)
		return nil, rec, false
	}
	return tpl, rec, true
}

// mutateTemplate loads the template, applies fn and saves the result. fn
// returns a non-zero status to reject the change.
func (h *Handler) mutateTemplate(w http.ResponseWriter, r *http.Request, fn func(*template.Template) (int, string, error)) {
	tpl, _, ok := h.loadTemplate(w, r)
	if !ok {
		return
	}
	if status, msg, err := fn(tpl); status != 0 {
		writeError(w, status, msg, err)
		return
	}
	version, err := h.saveTemplate(r.Context(), tpl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save template", err)
		return
	}
	writeJSON(w, http.StatusOK, h.templateDTO(tpl, version))
}

// saveTemplate stores tpl and schedules recalculation of its requisitions.
func (h *Handler) saveTemplate(ctx context.Context, tpl *template.Template) (int, error) {
	rec, err := h.TemplateFactory.ToTemplateRecord(tpl)
	if err != nil {
		return 0, err
	}
	if err := h.Store.SaveTemplate(ctx, rec); err != nil {
		return 0, err
	}
	saved, err := h.Store.GetTemplate(ctx, tpl.ID)
	if err != nil || saved == nil {
		return 0, err
	}

	stale, err := h.Service.MarkTemplateChanged(ctx, tpl.ID)
	if err != nil {
		h.Logger.Error("mark template requisitions stale", "template_id", tpl.ID, "error", err)
	}
	if stale > 0 && h.Queue != nil {
		if _, err := h.Queue.EnqueueRecalculateTemplate(ctx, tpl.ID); err != nil {
			h.Logger.Warn("enqueue template recalculation", "template_id", tpl.ID, "error", err)
		}
	}
	return saved.Version, nil
}

func (h *Handler) templateDTO(tpl *template.Template, version int) TemplateDTO {
	rendered := h.TemplateValidator.Render(tpl, h.Messages)
	for _, e := range rendered {
		h.Metrics.ValidationError(string(e.Column))
		if e.Message != nil && e.Message.Key == template.MsgCircularDependency {
			h.Metrics.CycleDetected()
		}
	}
	order := tpl.CalculationOrder()
	if order == nil {
		order = []catalog.Name{}
	}
	return TemplateDTO{
		TemplateJSON:     h.TemplateFactory.ToJSON(tpl),
		Version:          version,
		Valid:            len(rendered) == 0,
		Errors:           rendered,
		CalculationOrder: order,
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// decode reads a JSON body into dst and validates its tags. It writes a
// 400 and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			writeError(w, http.StatusBadRequest, "Invalid request", fields)
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an ErrorResponse. details may be an error or any
// JSON-serializable value.
func writeError(w http.ResponseWriter, status int, message string, details any) {
	resp := ErrorResponse{Error: message}
	switch d := details.(type) {
	case nil:
	case error:
		if d != nil {
			resp.Details = d.Error()
		}
	default:
		resp.Details = d
	}
	writeJSON(w, status, resp)
}
