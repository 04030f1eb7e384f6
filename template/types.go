/*
Package template provides the per-program requisition template graph.

PURPOSE:
  A template decides which catalog columns a program's requisitions show,
  where each value comes from, and in which order columns appear. The
  columns also form a dependency graph (a calculated column reads other
  columns), which this package inverts, walks for cycles and validates.

KEY CONCEPTS IN THIS FILE (types.go):
  - Column: One configured column (label, source, display flag, order, option, tag)
  - Template: The column map plus program-level settings
  - Option: Functional options for New

DESIGN PRINCIPLES:
  1. Catalog definitions are shared and immutable; Column only points at them
  2. Dependents (who reads me) is derived data, rebuilt on add/remove only
  3. A template may be invalid while it is being edited; Validator reports it
  4. No locking: one editing session owns a template at a time

USAGE:
  t := template.New("tpl-1", "program-1", columns,
      template.WithPeriodsToAverage(3))
  col, ok := t.Column(catalog.StockOnHand)
  moved := t.MoveColumn(catalog.Remarks, 4)

SEE ALSO:
  - dependencies.go: Dependents index and cycle detection
  - reorder.go: Pinned-column reordering
  - validation.go: Per-column validation rules
  - catalog/types.go: Column definitions
*/
package template

import (
	"sort"

	"github.com/warp/requisition-engine/catalog"
)

// =============================================================================
// COLUMN
// =============================================================================

// Column is a catalog column as configured by one program's template.
type Column struct {
	Name         catalog.Name
	Label        string
	Definition   string
	Source       catalog.Source // "" when none is chosen
	IsDisplayed  bool
	DisplayOrder int
	Option       *catalog.Option
	Tag          *string

	// Def is the catalog entry this column configures.
	Def *catalog.Definition

	// Dependents lists the template columns whose formula reads this one.
	// Maintained by the template; sorted by name.
	Dependents []catalog.Name
}

// IsCalculated reports whether the column's value comes from a formula.
func (c *Column) IsCalculated() bool { return c.Source == catalog.SourceCalculated }

// IsUserInput reports whether the column's value is typed by a user.
func (c *Column) IsUserInput() bool { return c.Source == catalog.SourceUserInput }

// CanChangeOrder reports whether the column may be moved. Columns without
// a catalog definition are treated as pinned.
func (c *Column) CanChangeOrder() bool { return c.Def != nil && c.Def.CanChangeOrder }

// HasTag reports whether a non-empty tag is assigned.
func (c *Column) HasTag() bool { return c.Tag != nil && *c.Tag != "" }

func (c *Column) dependencies() []catalog.Name {
	if c.Def == nil {
		return nil
	}
	return c.Def.Dependencies
}

// NewColumn configures a catalog definition with its defaults: the first
// allowed source, the first option, the catalog label and description,
// and displayed.
func NewColumn(def *catalog.Definition, order int) *Column {
	col := &Column{
		Name:         def.Name,
		Label:        def.Label,
		Definition:   def.Description,
		IsDisplayed:  true,
		DisplayOrder: order,
		Def:          def,
	}
	if len(def.Sources) > 0 {
		col.Source = def.Sources[0]
	}
	if len(def.Options) > 0 {
		opt := def.Options[0]
		col.Option = &opt
	}
	return col
}

// =============================================================================
// TEMPLATE
// =============================================================================

// Template is the column graph of one program's requisitions.
type Template struct {
	ID              string
	ProgramID       string
	Name            string
	FacilityTypeIDs []string

	// NumberOfPeriodsToAverage feeds average consumption. Nil when unset.
	NumberOfPeriodsToAverage *int

	// PopulateStockOnHandFromStockCards is "stock-based mode".
	PopulateStockOnHandFromStockCards bool

	columns map[catalog.Name]*Column
}

// Option configures a Template in New.
type Option func(*Template)

// WithPeriodsToAverage sets the number of periods used for average consumption.
func WithPeriodsToAverage(n int) Option {
	return func(t *Template) { t.NumberOfPeriodsToAverage = &n }
}

// WithStockBasedMode sets stock-based mode without re-sourcing columns.
// Use SetPopulateStockOnHandFromStockCards to switch modes on a live template.
func WithStockBasedMode(on bool) Option {
	return func(t *Template) { t.PopulateStockOnHandFromStockCards = on }
}

// WithFacilityTypes sets the facility types the template applies to.
func WithFacilityTypes(ids ...string) Option {
	return func(t *Template) { t.FacilityTypeIDs = ids }
}

// WithName sets the display name.
func WithName(name string) Option {
	return func(t *Template) { t.Name = name }
}

// New builds a template from already-configured columns. Later columns
// replace earlier ones with the same name.
func New(id, programID string, columns []*Column, opts ...Option) *Template {
	t := &Template{
		ID:        id,
		ProgramID: programID,
		columns:   make(map[catalog.Name]*Column, len(columns)),
	}
	for _, opt := range opts {
		opt(t)
	}
	for _, c := range columns {
		t.columns[c.Name] = c
	}
	t.rebuildDependents()
	return t
}

// NewDefault builds a template holding every registered catalog column in
// catalog order with default settings.
func NewDefault(id, programID string, opts ...Option) *Template {
	defs := catalog.All()
	cols := make([]*Column, len(defs))
	for i, d := range defs {
		cols[i] = NewColumn(d, i)
	}
	return New(id, programID, cols, opts...)
}

// Column returns the named column.
func (t *Template) Column(name catalog.Name) (*Column, bool) {
	c, ok := t.columns[name]
	return c, ok
}

// Has reports whether the template contains the named column.
func (t *Template) Has(name catalog.Name) bool {
	_, ok := t.columns[name]
	return ok
}

// HasDisplayed reports whether the named column exists and is displayed.
func (t *Template) HasDisplayed(name catalog.Name) bool {
	c, ok := t.columns[name]
	return ok && c.IsDisplayed
}

// IsCalculated reports whether the named column exists and is CALCULATED.
func (t *Template) IsCalculated(name catalog.Name) bool {
	c, ok := t.columns[name]
	return ok && c.IsCalculated()
}

// Len returns the number of columns.
func (t *Template) Len() int { return len(t.columns) }

// Columns returns the columns sorted by display order (ties by name).
func (t *Template) Columns() []*Column {
	out := make([]*Column, 0, len(t.columns))
	for _, c := range t.columns {
		out = append(out, c)
	}
	sortByDisplayOrder(out)
	return out
}

// LabelOf returns the column's label, or its name when the column is absent.
func (t *Template) LabelOf(name catalog.Name) string {
	if c, ok := t.columns[name]; ok {
		return c.Label
	}
	return string(name)
}

func sortByDisplayOrder(cols []*Column) {
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].DisplayOrder != cols[j].DisplayOrder {
			return cols[i].DisplayOrder < cols[j].DisplayOrder
		}
		return cols[i].Name < cols[j].Name
	})
}
