package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements Store with maps.
type Memory struct {
	mu           sync.RWMutex
	templates    map[string]TemplateRecord
	requisitions map[string]RequisitionRecord
	runs         []RecalculationRun
	now          func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		templates:    make(map[string]TemplateRecord),
		requisitions: make(map[string]RequisitionRecord),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

var _ Store = (*Memory)(nil)

// -----------------------------------------------------------------------------
// Templates
// -----------------------------------------------------------------------------

func (m *Memory) SaveTemplate(_ context.Context, rec TemplateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if prev, ok := m.templates[rec.ID]; ok {
		rec.Version = prev.Version + 1
		rec.CreatedAt = prev.CreatedAt
	} else {
		rec.Version = 1
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.templates[rec.ID] = rec
	return nil
}

func (m *Memory) GetTemplate(_ context.Context, id string) (*TemplateRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.templates[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) ListTemplates(_ context.Context) ([]TemplateRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TemplateRecord, 0, len(m.templates))
	for _, rec := range m.templates {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.templates, id)
	return nil
}

// -----------------------------------------------------------------------------
// Requisitions
// -----------------------------------------------------------------------------

func (m *Memory) SaveRequisition(_ context.Context, rec RequisitionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if prev, ok := m.requisitions[rec.ID]; ok {
		rec.Version = prev.Version + 1
		rec.CreatedAt = prev.CreatedAt
	} else {
		rec.Version = 1
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.requisitions[rec.ID] = rec
	return nil
}

func (m *Memory) GetRequisition(_ context.Context, id string) (*RequisitionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.requisitions[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) ListRequisitions(_ context.Context) ([]RequisitionRecord, error) {
	return m.filterRequisitions(func(RequisitionRecord) bool { return true }, 0), nil
}

func (m *Memory) ListRequisitionsByTemplate(_ context.Context, templateID string) ([]RequisitionRecord, error) {
	return m.filterRequisitions(func(r RequisitionRecord) bool { return r.TemplateID == templateID }, 0), nil
}

func (m *Memory) DeleteRequisition(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.requisitions, id)
	return nil
}

func (m *Memory) MarkTemplateRequisitionsStale(_ context.Context, templateID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, rec := range m.requisitions {
		if rec.TemplateID == templateID {
			rec.Stale = true
			m.requisitions[id] = rec
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListStaleRequisitions(_ context.Context, limit int) ([]RequisitionRecord, error) {
	return m.filterRequisitions(func(r RequisitionRecord) bool { return r.Stale }, limit), nil
}

func (m *Memory) MarkRequisitionCalculated(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.requisitions[id]
	if !ok {
		return nil
	}
	rec.Stale = false
	rec.CalculatedAt = &at
	m.requisitions[id] = rec
	return nil
}

// filterRequisitions returns matching records, oldest update first.
func (m *Memory) filterRequisitions(match func(RequisitionRecord) bool, limit int) []RequisitionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []RequisitionRecord
	for _, rec := range m.requisitions {
		if match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// -----------------------------------------------------------------------------
// Runs
// -----------------------------------------------------------------------------

func (m *Memory) SaveRecalculationRun(_ context.Context, run RecalculationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = m.now()
	}
	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListRecalculationRuns(_ context.Context, status string) ([]RecalculationRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []RecalculationRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if status == "" || m.runs[i].Status == status {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

// Reset deletes all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.templates = make(map[string]TemplateRecord)
	m.requisitions = make(map[string]RequisitionRecord)
	m.runs = nil
	return nil
}
