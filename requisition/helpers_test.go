package requisition_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/requisition"
	"github.com/warp/requisition-engine/template"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newCalculator() *requisition.Calculator {
	return requisition.NewCalculator(requisition.DefaultConfig())
}

func newValidator() *requisition.Validator {
	return requisition.NewValidator(requisition.DefaultConfig())
}

// catalogTemplate builds a template from registered catalog columns in the
// given order with their default configuration.
func catalogTemplate(names ...catalog.Name) *template.Template {
	cols := make([]*template.Column, len(names))
	for i, n := range names {
		cols[i] = template.NewColumn(catalog.MustLookup(n), i)
	}
	return template.New("tpl-1", "prog-1", cols, template.WithPeriodsToAverage(3))
}

func configure(t *testing.T, tpl *template.Template, name catalog.Name, fn func(c *template.Column)) {
	t.Helper()
	c, ok := tpl.Column(name)
	require.True(t, ok, "column %s", name)
	fn(c)
}

func calculated(c *template.Column) { c.Source = catalog.SourceCalculated }
func hidden(c *template.Column)     { c.IsDisplayed = false }

// monthly is a one-month (30-day) initiated requisition over tpl.
func monthly(tpl *template.Template, items ...*requisition.LineItem) *requisition.Requisition {
	return &requisition.Requisition{
		ID:        "req-1",
		ProgramID: "prog-1",
		Status:    requisition.StatusInitiated,
		Period:    requisition.ProcessingPeriod{ID: "p-jan", Name: "Jan", DurationInMonths: 1},
		Template:  tpl,
		LineItems: items,
	}
}

func orderable(netContent, threshold int64, roundToZero bool) requisition.Orderable {
	return requisition.Orderable{
		ID:                    "orderable-1",
		ProductCode:           "C100",
		FullProductName:       "Amoxicillin 250mg",
		NetContent:            netContent,
		PackRoundingThreshold: threshold,
		RoundToZero:           roundToZero,
	}
}

func i64(v int64) *int64 { return requisition.Int(v) }
