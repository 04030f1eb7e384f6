package template_test

import (
	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/template"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// def builds an ad-hoc catalog definition.
func def(name catalog.Name, reorderable bool, deps ...catalog.Name) *catalog.Definition {
	return &catalog.Definition{
		Name:           name,
		Label:          string(name),
		Type:           catalog.TypeNumeric,
		Sources:        []catalog.Source{catalog.SourceUserInput, catalog.SourceCalculated},
		CanChangeOrder: reorderable,
		Dependencies:   deps,
	}
}

// col configures d at order with the given source, displayed, labelled
// with a valid label.
func col(d *catalog.Definition, order int, src catalog.Source) *template.Column {
	c := template.NewColumn(d, order)
	c.Source = src
	c.Label = "Column " + string(rune('A'+order%26))
	return c
}

// catalogTemplate builds a template from registered catalog columns in
// the given order, each with its default configuration.
func catalogTemplate(names ...catalog.Name) *template.Template {
	cols := make([]*template.Column, len(names))
	for i, n := range names {
		cols[i] = template.NewColumn(catalog.MustLookup(n), i)
	}
	return template.New("tpl", "prog", cols, template.WithPeriodsToAverage(3))
}

func orders(t *template.Template) map[catalog.Name]int {
	out := make(map[catalog.Name]int)
	for _, c := range t.Columns() {
		out[c.Name] = c.DisplayOrder
	}
	return out
}

func names(t *template.Template) []catalog.Name {
	var out []catalog.Name
	for _, c := range t.Columns() {
		out = append(out, c.Name)
	}
	return out
}
