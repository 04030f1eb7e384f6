/*
Package sqlite provides a SQLite-backed implementation of store.Store.

PURPOSE:
  Persists templates, requisitions and recalculation runs. Aggregates are
  stored as JSON documents next to the columns the service filters on.

KEY TABLES:
  templates:           Template JSON, versioned on every save
  requisitions:        Requisition JSON + template/program/status/stale
  recalculation_runs:  Log of bulk recalculations

INDEXES:
  - idx_requisitions_template: Staleness marking after a template edit
  - idx_requisitions_stale:    Scheduler scan (hot path)
  - idx_recalculation_runs_status

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite serializes writers anyway;
  the mutex keeps read-modify-write sequences consistent.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  st, err := sqlite.New("./data/requisitions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - store/store.go: Interface definitions
  - store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/requisition-engine/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ store.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		program_id TEXT NOT NULL,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_templates_program
		ON templates(program_id);

	CREATE TABLE IF NOT EXISTS requisitions (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		program_id TEXT NOT NULL,
		facility_id TEXT NOT NULL,
		status TEXT NOT NULL,
		emergency BOOLEAN DEFAULT FALSE,
		data_json TEXT NOT NULL,
		stale BOOLEAN DEFAULT FALSE,
		version INTEGER DEFAULT 1,
		calculated_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requisitions_template
		ON requisitions(template_id);
	CREATE INDEX IF NOT EXISTS idx_requisitions_stale
		ON requisitions(stale, updated_at) WHERE stale = TRUE;

	CREATE TABLE IF NOT EXISTS recalculation_runs (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		requisition_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		line_items INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recalculation_runs_status
		ON recalculation_runs(status);
	CREATE INDEX IF NOT EXISTS idx_recalculation_runs_requisition
		ON recalculation_runs(requisition_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TEMPLATES
// =============================================================================

// SaveTemplate inserts or updates a template.
func (s *Store) SaveTemplate(ctx context.Context, rec store.TemplateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO templates (id, program_id, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			program_id = excluded.program_id,
			name = excluded.name,
			config_json = excluded.config_json,
			version = templates.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.ProgramID, rec.Name, rec.ConfigJSON, now, now,
	)
	return err
}

// GetTemplate retrieves a template by ID.
func (s *Store) GetTemplate(ctx context.Context, id string) (*store.TemplateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, program_id, name, config_json, version, created_at, updated_at FROM templates WHERE id = ?",
		id,
	)
	rec, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListTemplates returns all templates ordered by name.
func (s *Store) ListTemplates(ctx context.Context) ([]store.TemplateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, program_id, name, config_json, version, created_at, updated_at FROM templates ORDER BY name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.TemplateRecord
	for rows.Next() {
		rec, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteTemplate deletes a template.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row scanner) (store.TemplateRecord, error) {
	var rec store.TemplateRecord
	var createdAt, updatedAt string
	if err := row.Scan(&rec.ID, &rec.ProgramID, &rec.Name, &rec.ConfigJSON, &rec.Version, &createdAt, &updatedAt); err != nil {
		return rec, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return rec, nil
}

// =============================================================================
// REQUISITIONS
// =============================================================================

const requisitionColumns = `id, template_id, program_id, facility_id, status, emergency,
	data_json, stale, version, calculated_at, created_at, updated_at`

// SaveRequisition inserts or updates a requisition.
func (s *Store) SaveRequisition(ctx context.Context, rec store.RequisitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO requisitions (` + requisitionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			template_id = excluded.template_id,
			program_id = excluded.program_id,
			facility_id = excluded.facility_id,
			status = excluded.status,
			emergency = excluded.emergency,
			data_json = excluded.data_json,
			stale = excluded.stale,
			version = requisitions.version + 1,
			calculated_at = excluded.calculated_at,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.TemplateID, rec.ProgramID, rec.FacilityID, rec.Status, rec.Emergency,
		rec.DataJSON, rec.Stale, nullTime(rec.CalculatedAt), now, now,
	)
	return err
}

// GetRequisition retrieves a requisition by ID.
func (s *Store) GetRequisition(ctx context.Context, id string) (*store.RequisitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+requisitionColumns+" FROM requisitions WHERE id = ?", id)
	rec, err := scanRequisition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRequisitions returns all requisitions, oldest update first.
func (s *Store) ListRequisitions(ctx context.Context) ([]store.RequisitionRecord, error) {
	return s.queryRequisitions(ctx,
		"SELECT "+requisitionColumns+" FROM requisitions ORDER BY updated_at, id")
}

// ListRequisitionsByTemplate returns the requisitions built on a template.
func (s *Store) ListRequisitionsByTemplate(ctx context.Context, templateID string) ([]store.RequisitionRecord, error) {
	return s.queryRequisitions(ctx,
		"SELECT "+requisitionColumns+" FROM requisitions WHERE template_id = ? ORDER BY updated_at, id",
		templateID)
}

// DeleteRequisition deletes a requisition.
func (s *Store) DeleteRequisition(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM requisitions WHERE id = ?", id)
	return err
}

// MarkTemplateRequisitionsStale flags the requisitions of a template.
func (s *Store) MarkTemplateRequisitionsStale(ctx context.Context, templateID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE requisitions SET stale = TRUE WHERE template_id = ?", templateID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListStaleRequisitions returns flagged requisitions, oldest update first.
func (s *Store) ListStaleRequisitions(ctx context.Context, limit int) ([]store.RequisitionRecord, error) {
	query := "SELECT " + requisitionColumns + " FROM requisitions WHERE stale = TRUE ORDER BY updated_at, id"
	if limit > 0 {
		return s.queryRequisitions(ctx, query+" LIMIT ?", limit)
	}
	return s.queryRequisitions(ctx, query)
}

// MarkRequisitionCalculated clears the stale flag.
func (s *Store) MarkRequisitionCalculated(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE requisitions SET stale = FALSE, calculated_at = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339), id)
	return err
}

func (s *Store) queryRequisitions(ctx context.Context, query string, args ...any) ([]store.RequisitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RequisitionRecord
	for rows.Next() {
		rec, err := scanRequisition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRequisition(row scanner) (store.RequisitionRecord, error) {
	var rec store.RequisitionRecord
	var calculatedAt sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(
		&rec.ID, &rec.TemplateID, &rec.ProgramID, &rec.FacilityID, &rec.Status, &rec.Emergency,
		&rec.DataJSON, &rec.Stale, &rec.Version, &calculatedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return rec, err
	}
	rec.CalculatedAt = parseNullTime(calculatedAt)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return rec, nil
}

// =============================================================================
// RECALCULATION RUNS
// =============================================================================

// SaveRecalculationRun inserts or updates a run.
func (s *Store) SaveRecalculationRun(ctx context.Context, r store.RecalculationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO recalculation_runs (id, template_id, requisition_id, status, line_items,
			error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			line_items = excluded.line_items,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.TemplateID, r.RequisitionID, r.Status, r.LineItems,
		nullString(r.Error), nullTime(r.StartedAt), nullTime(r.CompletedAt),
		createdAt.Format(time.RFC3339),
	)
	return err
}

// ListRecalculationRuns returns runs, newest first.
func (s *Store) ListRecalculationRuns(ctx context.Context, status string) ([]store.RecalculationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, template_id, requisition_id, status, line_items, error,
			started_at, completed_at, created_at
		FROM recalculation_runs
	`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.RecalculationRun
	for rows.Next() {
		var r store.RecalculationRun
		var errText, startedAt, completedAt sql.NullString
		var createdAt string
		if err := rows.Scan(
			&r.ID, &r.TemplateID, &r.RequisitionID, &r.Status, &r.LineItems, &errText,
			&startedAt, &completedAt, &createdAt,
		); err != nil {
			return nil, err
		}
		r.Error = errText.String
		r.StartedAt = parseNullTime(startedAt)
		r.CompletedAt = parseNullTime(completedAt)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"recalculation_runs", "requisitions", "templates"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
