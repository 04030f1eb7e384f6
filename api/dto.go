/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Template and
  requisition bodies reuse the factory JSON schema so a document posted to
  the API is the same document reqctl reads from disk.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator tags for transport-level
  checks (required IDs, bounded strings). Domain rules (negative stock,
  missing explanations) are not transport errors; they come back as
  per-column validation messages with a 200.

SEE ALSO:
  - handlers.go: Template handlers
  - requisitions.go: Requisition handlers
  - factory/template.go, factory/requisition.go: Embedded JSON schema
*/
package api

import (
	"time"

	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/factory"
	"github.com/warp/requisition-engine/store"
	"github.com/warp/requisition-engine/template"
)

// =============================================================================
// CATALOG
// =============================================================================

// ColumnDefinitionDTO is one catalog column.
type ColumnDefinitionDTO struct {
	Name              catalog.Name     `json:"name"`
	Label             string           `json:"label"`
	Description       string           `json:"description"`
	Type              string           `json:"columnType"`
	Sources           []catalog.Source `json:"sources"`
	Options           []catalog.Option `json:"options,omitempty"`
	SupportsTag       bool             `json:"supportsTag"`
	CanChangeOrder    bool             `json:"canChangeOrder"`
	IsDisplayRequired bool             `json:"isDisplayRequired"`
	Dependencies      []catalog.Name   `json:"dependencies,omitempty"`
}

// =============================================================================
// TEMPLATES
// =============================================================================

// CreateTemplateRequest is the request to create a template. An empty
// columnsMap creates a template with every catalog column.
type CreateTemplateRequest struct {
	ID                                string                        `json:"id" validate:"omitempty,max=64"`
	ProgramID                         string                        `json:"programId" validate:"required,max=64"`
	Name                              string                        `json:"name" validate:"required,max=255"`
	FacilityTypeIDs                   []string                      `json:"facilityTypeIds" validate:"omitempty,dive,required"`
	NumberOfPeriodsToAverage          *int                          `json:"numberOfPeriodsToAverage" validate:"omitempty,min=0"`
	PopulateStockOnHandFromStockCards bool                          `json:"populateStockOnHandFromStockCards"`
	ColumnsMap                        map[string]factory.ColumnJSON `json:"columnsMap"`
}

// TemplateJSON converts the request to the factory schema.
func (r CreateTemplateRequest) TemplateJSON() factory.TemplateJSON {
	return factory.TemplateJSON{
		ID:                                r.ID,
		ProgramID:                         r.ProgramID,
		Name:                              r.Name,
		FacilityTypeIDs:                   r.FacilityTypeIDs,
		NumberOfPeriodsToAverage:          r.NumberOfPeriodsToAverage,
		PopulateStockOnHandFromStockCards: r.PopulateStockOnHandFromStockCards,
		ColumnsMap:                        r.ColumnsMap,
	}
}

// TemplateSummaryDTO is a template in list responses.
type TemplateSummaryDTO struct {
	ID        string `json:"id"`
	ProgramID string `json:"programId"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// TemplateDTO is a full template with its validation state.
type TemplateDTO struct {
	factory.TemplateJSON
	Version          int                      `json:"version"`
	Valid            bool                     `json:"valid"`
	Errors           []template.RenderedError `json:"errors"`
	CalculationOrder []catalog.Name           `json:"calculationOrder"`
}

// AddColumnRequest adds a catalog column to a template.
type AddColumnRequest struct {
	Name string `json:"name" validate:"required"`
}

// MoveColumnRequest moves a column to a display position.
type MoveColumnRequest struct {
	TargetIndex *int `json:"targetIndex" validate:"required,min=0"`
}

// CircularDependencyDTO lists the calculated columns in a cycle with Column.
type CircularDependencyDTO struct {
	Column    catalog.Name   `json:"column"`
	Violators []catalog.Name `json:"violators"`
}

// TemplateValidationDTO is the validation state of a template.
type TemplateValidationDTO struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors"`
}

// =============================================================================
// REQUISITIONS
// =============================================================================

// RequisitionSummaryDTO is a requisition in list responses.
type RequisitionSummaryDTO struct {
	ID           string `json:"id"`
	TemplateID   string `json:"templateId"`
	ProgramID    string `json:"programId"`
	FacilityID   string `json:"facilityId"`
	Status       string `json:"status"`
	Emergency    bool   `json:"emergency"`
	Stale        bool   `json:"stale"`
	Version      int    `json:"version"`
	CalculatedAt string `json:"calculatedAt,omitempty"`
}

// RequisitionDTO is a recalculated requisition with its validation state.
type RequisitionDTO struct {
	factory.RequisitionJSON
	Version int                          `json:"version"`
	Stale   bool                         `json:"stale"`
	Errors  map[string]map[string]string `json:"errors"`
}

// RequisitionValidationDTO is the validation state of a requisition.
type RequisitionValidationDTO struct {
	Valid  bool                         `json:"valid"`
	Errors map[string]map[string]string `json:"errors"`
}

// AdjustmentRequest is one stock adjustment in a line item edit.
type AdjustmentRequest struct {
	ReasonID string `json:"reasonId" validate:"required"`
	Quantity int64  `json:"quantity" validate:"min=0"`
}

// UpdateLineItemRequest edits the user-entered facts of a line item.
// Values is keyed by column name; a null value clears the fact.
type UpdateLineItemRequest struct {
	Values                       map[string]*int64   `json:"values" validate:"dive,keys,required,endkeys"`
	RequestedQuantityExplanation *string             `json:"requestedQuantityExplanation" validate:"omitempty,max=1000"`
	Remarks                      *string             `json:"remarks" validate:"omitempty,max=1000"`
	Skipped                      *bool               `json:"skipped"`
	StockAdjustments             []AdjustmentRequest `json:"stockAdjustments" validate:"omitempty,dive"`
}

// LineItemResponse is the result of a line item edit.
type LineItemResponse struct {
	LineItem factory.LineItemJSON `json:"lineItem"`
	Updated  []catalog.Name       `json:"updated"`
	Errors   map[string]string    `json:"errors"`
}

// RecalculationRunDTO is one entry of the recalculation log.
type RecalculationRunDTO struct {
	ID            string `json:"id"`
	TemplateID    string `json:"templateId,omitempty"`
	RequisitionID string `json:"requisitionId,omitempty"`
	Status        string `json:"status"`
	LineItems     int    `json:"lineItems"`
	Error         string `json:"error,omitempty"`
	StartedAt     string `json:"startedAt,omitempty"`
	CompletedAt   string `json:"completedAt,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toTemplateSummary(rec store.TemplateRecord) TemplateSummaryDTO {
	return TemplateSummaryDTO{
		ID:        rec.ID,
		ProgramID: rec.ProgramID,
		Name:      rec.Name,
		Version:   rec.Version,
		UpdatedAt: formatTime(rec.UpdatedAt),
	}
}

func toRequisitionSummary(rec store.RequisitionRecord) RequisitionSummaryDTO {
	dto := RequisitionSummaryDTO{
		ID:         rec.ID,
		TemplateID: rec.TemplateID,
		ProgramID:  rec.ProgramID,
		FacilityID: rec.FacilityID,
		Status:     rec.Status,
		Emergency:  rec.Emergency,
		Stale:      rec.Stale,
		Version:    rec.Version,
	}
	if rec.CalculatedAt != nil {
		dto.CalculatedAt = formatTime(*rec.CalculatedAt)
	}
	return dto
}

func toRunDTO(run store.RecalculationRun) RecalculationRunDTO {
	dto := RecalculationRunDTO{
		ID:            run.ID,
		TemplateID:    run.TemplateID,
		RequisitionID: run.RequisitionID,
		Status:        run.Status,
		LineItems:     run.LineItems,
		Error:         run.Error,
	}
	if run.StartedAt != nil {
		dto.StartedAt = formatTime(*run.StartedAt)
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = formatTime(*run.CompletedAt)
	}
	return dto
}

func toColumnDefinition(d *catalog.Definition) ColumnDefinitionDTO {
	return ColumnDefinitionDTO{
		Name:              d.Name,
		Label:             d.Label,
		Description:       d.Description,
		Type:              string(d.Type),
		Sources:           d.Sources,
		Options:           d.Options,
		SupportsTag:       d.SupportsTag,
		CanChangeOrder:    d.CanChangeOrder,
		IsDisplayRequired: d.IsDisplayRequired,
		Dependencies:      d.Dependencies,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
