/*
requisitions.go - HTTP API handlers for requisitions

PURPOSE:
  Exposes line item calculation and validation over REST. Reads return a
  freshly recalculated view; writes recalculate, validate and persist
  through recalc.Service.

ENDPOINTS:
    GET    /api/requisitions                             List (?templateId=)
    POST   /api/requisitions                             Create from JSON
    GET    /api/requisitions/{id}                        Recalculated view + errors
    GET    /api/requisitions/{id}/validation             Validation state only
    DELETE /api/requisitions/{id}                        Delete
    PUT    /api/requisitions/{id}/line-items/{lineItemId} Edit a line item
    POST   /api/requisitions/{id}/recalculate            Recalculate and store
    POST   /api/requisitions/{id}/{action}               submit|authorize|approve|reject

LINE ITEM EDITS:
  Only user-entered columns can be written. Each written column cascades
  to its calculated dependents; the response lists what was rewritten so
  a client can refresh those cells only.

SEE ALSO:
  - handlers.go: Template handlers, response helpers
  - recalc/service.go: Load/save/recalculate
  - requisition/cascade.go: UpdateDependentFields
*/
package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/factory"
	"github.com/warp/requisition-engine/messages"
	"github.com/warp/requisition-engine/recalc"
	"github.com/warp/requisition-engine/requisition"
	"github.com/warp/requisition-engine/store"
)

// ListRequisitions returns requisition summaries.
// GET /api/requisitions?templateId=...
func (h *Handler) ListRequisitions(w http.ResponseWriter, r *http.Request) {
	var (
		records []store.RequisitionRecord
		err     error
	)
	if templateID := r.URL.Query().Get("templateId"); templateID != "" {
		records, err = h.Store.ListRequisitionsByTemplate(r.Context(), templateID)
	} else {
		records, err = h.Store.ListRequisitions(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requisitions", err)
		return
	}
	dtos := make([]RequisitionSummaryDTO, len(records))
	for i, rec := range records {
		dtos[i] = toRequisitionSummary(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRequisition creates an INITIATED requisition from JSON.
// POST /api/requisitions
func (h *Handler) CreateRequisition(w http.ResponseWriter, r *http.Request) {
	var body factory.RequisitionJSON
	if !h.decode(w, r, &body) {
		return
	}
	if body.TemplateID == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", map[string]string{"templateId": "required"})
		return
	}

	ctx := r.Context()
	tpl, err := h.Service.LoadTemplate(ctx, body.TemplateID)
	switch {
	case errors.Is(err, recalc.ErrTemplateNotFound):
		writeError(w, http.StatusBadRequest, "Unknown template", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to load template", err)
		return
	}

	if body.ID == "" {
		body.ID = uuid.NewString()
	} else if existing, err := h.Store.GetRequisition(ctx, body.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check requisition", err)
		return
	} else if existing != nil {
		writeError(w, http.StatusConflict, "Requisition already exists", nil)
		return
	}
	for i := range body.LineItems {
		if body.LineItems[i].ID == "" {
			body.LineItems[i].ID = uuid.NewString()
		}
	}
	body.Status = string(requisition.StatusInitiated)

	req, err := h.RequisitionFactory.FromJSON(body, tpl)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid requisition", err)
		return
	}
	n := h.Calculator.RecalculateAll(req)
	if err := h.Service.SaveRequisition(ctx, req); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save requisition", err)
		return
	}
	h.Metrics.Recalculated(recalc.TriggerEdit, n)

	rec, err := h.Store.GetRequisition(ctx, req.ID)
	if err != nil || rec == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload requisition", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.requisitionDTO(req, rec))
}

// GetRequisition returns the requisition recalculated against its current
// template, with per line item validation errors. Nothing is stored.
// GET /api/requisitions/{id}
func (h *Handler) GetRequisition(w http.ResponseWriter, r *http.Request) {
	req, rec, ok := h.loadRequisition(w, r)
	if !ok {
		return
	}
	h.Calculator.RecalculateAll(req)
	writeJSON(w, http.StatusOK, h.requisitionDTO(req, rec))
}

// ValidateRequisition reports the validation state of a requisition after
// recalculation, keyed by line item ID then column.
// GET /api/requisitions/{id}/validation
func (h *Handler) ValidateRequisition(w http.ResponseWriter, r *http.Request) {
	req, _, ok := h.loadRequisition(w, r)
	if !ok {
		return
	}
	h.Calculator.RecalculateAll(req)

	dto := RequisitionValidationDTO{Errors: map[string]map[string]string{}}
	for id, errs := range h.Validator.ValidateRequisition(req) {
		dto.Errors[id] = h.renderErrors(errs)
	}
	dto.Valid = len(dto.Errors) == 0
	writeJSON(w, http.StatusOK, dto)
}

// DeleteRequisition deletes a requisition.
// DELETE /api/requisitions/{id}
func (h *Handler) DeleteRequisition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	rec, err := h.Store.GetRequisition(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get requisition", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Requisition not found", nil)
		return
	}
	if err := h.Store.DeleteRequisition(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete requisition", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateLineItem writes user-entered facts of one line item and cascades
// them to the calculated columns.
// PUT /api/requisitions/{id}/line-items/{lineItemId}
func (h *Handler) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	var body UpdateLineItemRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, rec, ok := h.loadRequisition(w, r)
	if !ok {
		return
	}
	if !editable(req.Status) {
		writeError(w, http.StatusConflict, "Requisition is not editable", map[string]string{"status": string(req.Status)})
		return
	}
	li := req.LineItem(chi.URLParam(r, "lineItemId"))
	if li == nil {
		writeError(w, http.StatusNotFound, "Line item not found", nil)
		return
	}

	// Columns the last template change has not reached yet.
	if rec.Stale {
		h.Calculator.RecalculateAll(req)
	}

	tpl := req.Template
	keys := make([]string, 0, len(body.Values))
	for k := range body.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var changed []catalog.Name
	for _, k := range keys {
		name := catalog.Name(k)
		col, ok := tpl.Column(name)
		if !ok {
			writeError(w, http.StatusBadRequest, "Column not in template", map[string]string{"column": k})
			return
		}
		if col.IsCalculated() {
			writeError(w, http.StatusBadRequest, "Column is calculated", map[string]string{"column": k})
			return
		}
		if !li.SetQuantity(name, body.Values[k]) {
			writeError(w, http.StatusBadRequest, "Column is not a quantity", map[string]string{"column": k})
			return
		}
		changed = append(changed, name)
	}

	if body.StockAdjustments != nil {
		adjustments := make([]requisition.StockAdjustment, len(body.StockAdjustments))
		for i, a := range body.StockAdjustments {
			if _, ok := req.Reason(a.ReasonID); !ok {
				writeError(w, http.StatusBadRequest, "Unknown adjustment reason", map[string]string{"reasonId": a.ReasonID})
				return
			}
			adjustments[i] = requisition.StockAdjustment{ReasonID: a.ReasonID, Quantity: a.Quantity}
		}
		li.StockAdjustments = adjustments
		li.TotalLossesAndAdjustments = requisition.Int(requisition.SumAdjustments(adjustments, req.StockAdjustmentReasons))
		changed = append(changed, catalog.TotalLossesAndAdjustments)
	}
	if body.RequestedQuantityExplanation != nil {
		li.RequestedQuantityExplanation = *body.RequestedQuantityExplanation
	}
	if body.Remarks != nil {
		li.Remarks = *body.Remarks
	}

	updated := []catalog.Name{}
	if body.Skipped != nil && *body.Skipped != li.Skipped {
		li.Skipped = *body.Skipped
		if !li.Skipped {
			h.Calculator.Recalculate(li, req)
			updated = append(updated, tpl.CalculationOrder()...)
		}
	} else {
		seen := make(map[catalog.Name]bool)
		for _, name := range changed {
			for _, written := range h.Calculator.UpdateDependentFields(li, req, name) {
				if !seen[written] {
					seen[written] = true
					updated = append(updated, written)
				}
			}
		}
	}

	errs := h.Validator.ValidateLineItem(li, req)
	if err := h.Service.SaveRequisition(r.Context(), req); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save requisition", err)
		return
	}
	h.Logger.Info("line item updated",
		"requisition_id", req.ID, "line_item_id", li.ID, "changed", len(changed), "updated", len(updated))

	writeJSON(w, http.StatusOK, LineItemResponse{
		LineItem: h.RequisitionFactory.LineItemToJSON(li),
		Updated:  updated,
		Errors:   h.renderErrors(errs),
	})
}

// RecalculateRequisition recalculates and stores one requisition.
// POST /api/requisitions/{id}/recalculate
func (h *Handler) RecalculateRequisition(w http.ResponseWriter, r *http.Request) {
	run, err := h.Service.RecalculateRequisition(r.Context(), chi.URLParam(r, "id"), recalc.TriggerEdit)
	switch {
	case requisition.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Requisition not found", nil)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Recalculation failed", toRunDTO(run))
	default:
		writeJSON(w, http.StatusOK, toRunDTO(run))
	}
}

var actions = map[string]requisition.Action{
	string(requisition.ActionSubmit):    requisition.ActionSubmit,
	string(requisition.ActionAuthorize): requisition.ActionAuthorize,
	string(requisition.ActionApprove):   requisition.ActionApprove,
	string(requisition.ActionReject):    requisition.ActionReject,
}

// TransitionRequisition moves a requisition through a workflow step.
// Submit and authorize refuse while any line item has errors.
// POST /api/requisitions/{id}/{action}
func (h *Handler) TransitionRequisition(w http.ResponseWriter, r *http.Request) {
	action, ok := actions[chi.URLParam(r, "action")]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown action", nil)
		return
	}
	req, rec, ok := h.loadRequisition(w, r)
	if !ok {
		return
	}

	h.Calculator.RecalculateAll(req)
	if err := req.Apply(action, h.Validator); err != nil {
		var lineErrs *requisition.LineItemErrors
		switch {
		case errors.As(err, &lineErrs):
			details := make(map[string]map[string]string, len(lineErrs.Errors))
			for id, errs := range lineErrs.Errors {
				details[id] = h.renderErrors(errs)
			}
			writeError(w, http.StatusBadRequest, "Line items have errors", details)
		case errors.Is(err, requisition.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "Invalid transition", err)
		default:
			writeError(w, http.StatusInternalServerError, "Transition failed", err)
		}
		return
	}

	ctx := r.Context()
	if err := h.Service.SaveRequisition(ctx, req); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save requisition", err)
		return
	}
	if saved, err := h.Store.GetRequisition(ctx, req.ID); err == nil && saved != nil {
		rec = saved
	}
	h.Logger.Info("requisition transitioned", "requisition_id", req.ID, "action", action, "status", req.Status)
	writeJSON(w, http.StatusOK, h.requisitionDTO(req, rec))
}

// =============================================================================
// REQUISITION HELPERS
// =============================================================================

func (h *Handler) loadRequisition(w http.ResponseWriter, r *http.Request) (*requisition.Requisition, *store.RequisitionRecord, bool) {
	req, rec, err := h.Service.LoadRequisition(r.Context(), chi.URLParam(r, "id"))
	switch {
	case requisition.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Requisition not found", nil)
		return nil, nil, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to load requisition", err)
		return nil, nil, false
	}
	return req, rec, true
}

func (h *Handler) requisitionDTO(req *requisition.Requisition, rec *store.RequisitionRecord) RequisitionDTO {
	dto := RequisitionDTO{
		RequisitionJSON: h.RequisitionFactory.ToJSON(req),
		Version:         rec.Version,
		Stale:           rec.Stale,
		Errors:          map[string]map[string]string{},
	}
	for id, errs := range h.Validator.ValidateRequisition(req) {
		dto.Errors[id] = h.renderErrors(errs)
	}
	return dto
}

func (h *Handler) renderErrors(errs map[catalog.Name]*messages.Message) map[string]string {
	out := make(map[string]string, len(errs))
	for name, msg := range errs {
		h.Metrics.ValidationError(string(name))
		out[string(name)] = messages.Render(h.Messages, msg)
	}
	return out
}

// editable reports whether line items can still be edited in status s.
func editable(s requisition.Status) bool {
	switch s {
	case requisition.StatusInitiated, requisition.StatusRejected, requisition.StatusSubmitted,
		requisition.StatusAuthorized, requisition.StatusInApproval:
		return true
	}
	return false
}
