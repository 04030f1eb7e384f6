/*
Package factory provides JSON to Go conversion for templates and
requisitions.

PURPOSE:
  Templates are authored in an admin UI and requisitions arrive from
  facilities as JSON documents. The factory turns those documents into
  template.Template and requisition.Requisition values, checking them
  against the column catalog on the way in, and turns them back into
  JSON for storage and responses.

TEMPLATE JSON:
  {
    "id": "tpl-essential-meds",
    "programId": "prog-em",
    "name": "Essential Meds",
    "facilityTypeIds": ["health_center"],
    "numberOfPeriodsToAverage": 3,
    "populateStockOnHandFromStockCards": false,
    "columnsMap": {
      "stockOnHand": {
        "name": "stockOnHand",
        "label": "Stock on hand",
        "definition": "Current physical count",
        "source": "CALCULATED",
        "isDisplayed": true,
        "displayOrder": 6,
        "option": null,
        "tag": null
      }
    }
  }

CATALOG CHECKS:
  - every column name must be a catalog column
  - the source must be empty or one of the catalog's sources
  - the option must be one of the catalog's options
  - a tag may only be set on a tag-capable column

  Rule violations that an administrator can fix while editing (labels,
  display combinations, cycles) are not parse errors; template.Validator
  reports them.

SEE ALSO:
  - requisition.go: Requisition JSON
  - catalog/columns.toml: Column catalog
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/template"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidTemplate is returned for template JSON that cannot be built.
	ErrInvalidTemplate = errors.New("factory: invalid template")

	// ErrInvalidRequisition is returned for requisition JSON that cannot be built.
	ErrInvalidRequisition = errors.New("factory: invalid requisition")
)

// IsClientError returns true if the error is due to an invalid document.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTemplate) ||
		errors.Is(err, ErrInvalidRequisition) ||
		template.IsClientError(err)
}

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TemplateJSON is the JSON representation of a template.
type TemplateJSON struct {
	ID                                string                `json:"id"`
	ProgramID                         string                `json:"programId"`
	Name                              string                `json:"name,omitempty"`
	FacilityTypeIDs                   []string              `json:"facilityTypeIds,omitempty"`
	NumberOfPeriodsToAverage          *int                  `json:"numberOfPeriodsToAverage,omitempty"`
	PopulateStockOnHandFromStockCards bool                  `json:"populateStockOnHandFromStockCards"`
	ColumnsMap                        map[string]ColumnJSON `json:"columnsMap"`
}

// ColumnJSON is one entry of a template's columnsMap.
type ColumnJSON struct {
	Name         string          `json:"name"`
	Label        string          `json:"label"`
	Definition   string          `json:"definition"`
	Source       string          `json:"source"`
	IsDisplayed  bool            `json:"isDisplayed"`
	DisplayOrder int             `json:"displayOrder"`
	Option       *catalog.Option `json:"option"`
	Tag          *string         `json:"tag"`
}

// =============================================================================
// TEMPLATE FACTORY
// =============================================================================

// TemplateFactory converts JSON templates to template.Template.
type TemplateFactory struct{}

// NewTemplateFactory creates a new template factory.
func NewTemplateFactory() *TemplateFactory {
	return &TemplateFactory{}
}

// ParseTemplate parses a JSON document into a Template.
func (f *TemplateFactory) ParseTemplate(data []byte) (*template.Template, error) {
	var tj TemplateJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return f.FromJSON(tj)
}

// FromJSON converts TemplateJSON to a Template.
func (f *TemplateFactory) FromJSON(tj TemplateJSON) (*template.Template, error) {
	if tj.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidTemplate)
	}

	cols := make([]*template.Column, 0, len(tj.ColumnsMap))
	for key, cj := range tj.ColumnsMap {
		col, err := parseColumn(key, cj)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	opts := []template.Option{
		template.WithName(tj.Name),
		template.WithStockBasedMode(tj.PopulateStockOnHandFromStockCards),
		template.WithFacilityTypes(tj.FacilityTypeIDs...),
	}
	if tj.NumberOfPeriodsToAverage != nil {
		opts = append(opts, template.WithPeriodsToAverage(*tj.NumberOfPeriodsToAverage))
	}
	return template.New(tj.ID, tj.ProgramID, cols, opts...), nil
}

func parseColumn(key string, cj ColumnJSON) (*template.Column, error) {
	name := catalog.Name(key)
	if cj.Name != "" && cj.Name != key {
		return nil, fmt.Errorf("%w: column %q is keyed as %q", ErrInvalidTemplate, cj.Name, key)
	}

	def := catalog.Lookup(name)
	if def == nil {
		return nil, fmt.Errorf("%w: %q", template.ErrUnknownColumn, name)
	}

	src := catalog.Source(cj.Source)
	if src != "" && !def.AllowsSource(src) {
		return nil, fmt.Errorf("%w: column %q does not allow source %q", ErrInvalidTemplate, name, src)
	}

	col := &template.Column{
		Name:         name,
		Label:        cj.Label,
		Definition:   cj.Definition,
		Source:       src,
		IsDisplayed:  cj.IsDisplayed,
		DisplayOrder: cj.DisplayOrder,
		Def:          def,
	}

	if cj.Option != nil && cj.Option.Name != "" {
		opt := def.FindOption(cj.Option.Name)
		if opt == nil {
			return nil, fmt.Errorf("%w: column %q has no option %q", ErrInvalidTemplate, name, cj.Option.Name)
		}
		o := *opt
		col.Option = &o
	}

	if cj.Tag != nil && *cj.Tag != "" {
		if !catalog.CanAssignTag(name) {
			return nil, fmt.Errorf("%w: column %q cannot be tagged", ErrInvalidTemplate, name)
		}
		tag := *cj.Tag
		col.Tag = &tag
	}
	return col, nil
}

// ToJSON converts a Template to TemplateJSON.
func (f *TemplateFactory) ToJSON(t *template.Template) TemplateJSON {
	tj := TemplateJSON{
		ID:                                t.ID,
		ProgramID:                         t.ProgramID,
		Name:                              t.Name,
		FacilityTypeIDs:                   t.FacilityTypeIDs,
		NumberOfPeriodsToAverage:          t.NumberOfPeriodsToAverage,
		PopulateStockOnHandFromStockCards: t.PopulateStockOnHandFromStockCards,
		ColumnsMap:                        make(map[string]ColumnJSON, t.Len()),
	}
	for _, c := range t.Columns() {
		tj.ColumnsMap[string(c.Name)] = ColumnJSON{
			Name:         string(c.Name),
			Label:        c.Label,
			Definition:   c.Definition,
			Source:       string(c.Source),
			IsDisplayed:  c.IsDisplayed,
			DisplayOrder: c.DisplayOrder,
			Option:       c.Option,
			Tag:          c.Tag,
		}
	}
	return tj
}

// MarshalTemplate encodes a Template as JSON.
func (f *TemplateFactory) MarshalTemplate(t *template.Template) ([]byte, error) {
	return json.Marshal(f.ToJSON(t))
}

// ColumnNames returns the columnsMap keys in display order.
func (tj TemplateJSON) ColumnNames() []string {
	names := make([]string, 0, len(tj.ColumnsMap))
	for n := range tj.ColumnsMap {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := tj.ColumnsMap[names[i]], tj.ColumnsMap[names[j]]
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return names[i] < names[j]
	})
	return names
}
