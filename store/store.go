/*
Package store defines persistence for templates, requisitions and
recalculation runs.

PURPOSE:
  The engine packages work on in-memory aggregates. This package is the
  boundary to durable storage: records carry the aggregate as JSON
  (produced by the factory package) plus the columns the service queries
  on (program, template, status, stale flag).

KEY INTERFACES:
  TemplateStore:    Template records (versioned on every save)
  RequisitionStore: Requisition records, staleness tracking
  RunStore:         Recalculation run log
  Store:            All of the above plus Reset

STALENESS:
  Editing a template changes how every requisition built on it computes.
  MarkTemplateRequisitionsStale flags them; the recalculation scheduler
  picks them up with ListStaleRequisitions and clears the flag through
  MarkRequisitionCalculated.

MISSING RECORDS:
  Get* methods return (nil, nil) when the record does not exist. Callers
  map that to their own not-found error.

IMPLEMENTATIONS:
  - store/memory.go: In-memory, for tests and the CLI
  - store/sqlite: SQLite via database/sql
  - store/cache: Redis read-through cache in front of another Store

SEE ALSO:
  - factory: Record payload encoding
  - api/scheduler.go: Stale requisition processing
*/
package store

import (
	"context"
	"time"
)

// =============================================================================
// RECORDS
// =============================================================================

// TemplateRecord is a persisted template.
type TemplateRecord struct {
	ID         string    `json:"id"`
	ProgramID  string    `json:"programId"`
	Name       string    `json:"name"`
	ConfigJSON string    `json:"configJson"`
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RequisitionRecord is a persisted requisition. DataJSON holds line items,
// period and reasons; the other fields are indexed copies.
type RequisitionRecord struct {
	ID           string
	TemplateID   string
	ProgramID    string
	FacilityID   string
	Status       string
	Emergency    bool
	DataJSON     string
	Stale        bool
	Version      int
	CalculatedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Run statuses.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RecalculationRun records one bulk recalculation of a requisition.
type RecalculationRun struct {
	ID            string
	TemplateID    string
	RequisitionID string
	Status        string
	LineItems     int
	Error         string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
}

// =============================================================================
// INTERFACES
// =============================================================================

// TemplateStore persists templates.
type TemplateStore interface {
	// SaveTemplate inserts or replaces a template and bumps its version.
	SaveTemplate(ctx context.Context, rec TemplateRecord) error
	GetTemplate(ctx context.Context, id string) (*TemplateRecord, error)
	ListTemplates(ctx context.Context) ([]TemplateRecord, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// RequisitionStore persists requisitions.
type RequisitionStore interface {
	// SaveRequisition inserts or replaces a requisition and bumps its version.
	SaveRequisition(ctx context.Context, rec RequisitionRecord) error
	GetRequisition(ctx context.Context, id string) (*RequisitionRecord, error)
	ListRequisitions(ctx context.Context) ([]RequisitionRecord, error)
	ListRequisitionsByTemplate(ctx context.Context, templateID string) ([]RequisitionRecord, error)
	DeleteRequisition(ctx context.Context, id string) error

	// MarkTemplateRequisitionsStale flags every requisition of templateID
	// and returns how many were flagged.
	MarkTemplateRequisitionsStale(ctx context.Context, templateID string) (int, error)

	// ListStaleRequisitions returns up to limit flagged requisitions,
	// oldest update first. limit <= 0 means no limit.
	ListStaleRequisitions(ctx context.Context, limit int) ([]RequisitionRecord, error)

	// MarkRequisitionCalculated clears the stale flag and records at.
	MarkRequisitionCalculated(ctx context.Context, id string, at time.Time) error
}

// RunStore keeps the recalculation run log.
type RunStore interface {
	SaveRecalculationRun(ctx context.Context, run RecalculationRun) error
	// ListRecalculationRuns returns runs newest first; status "" means all.
	ListRecalculationRuns(ctx context.Context, status string) ([]RecalculationRun, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	TemplateStore
	RequisitionStore
	RunStore

	// Reset deletes all data. Used by scenario loading.
	Reset(ctx context.Context) error
}
