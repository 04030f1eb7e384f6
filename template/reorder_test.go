package template_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/template"
)

// segmentedTemplate: P0 A1 B2 C3 Q4 D5 E6 where P and Q are pinned.
func segmentedTemplate() *template.Template {
	return template.New("t", "p", []*template.Column{
		col(def("P", false), 0, catalog.SourceUserInput),
		col(def("A", true), 1, catalog.SourceUserInput),
		col(def("B", true), 2, catalog.SourceUserInput),
		col(def("C", true), 3, catalog.SourceUserInput),
		col(def("Q", false), 4, catalog.SourceUserInput),
		col(def("D", true), 5, catalog.SourceUserInput),
		col(def("E", true), 6, catalog.SourceUserInput),
	})
}

func TestMoveColumn_UpWithinSegment(t *testing.T) {
	tpl := segmentedTemplate()

	assert.True(t, tpl.MoveColumn("C", 1))
	assert.Equal(t, []catalog.Name{"P", "C", "A", "B", "Q", "D", "E"}, names(tpl))
	assert.Equal(t, 1, orders(tpl)["C"])
	assert.Equal(t, 2, orders(tpl)["A"])
	assert.Equal(t, 3, orders(tpl)["B"])
}

func TestMoveColumn_DownWithinSegment(t *testing.T) {
	tpl := segmentedTemplate()

	// Index 4 is the slot after C: A lands where C was.
	assert.True(t, tpl.MoveColumn("A", 4))
	assert.Equal(t, []catalog.Name{"P", "B", "C", "A", "Q", "D", "E"}, names(tpl))
}

func TestMoveColumn_LastSegment(t *testing.T) {
	tpl := segmentedTemplate()

	assert.True(t, tpl.MoveColumn("E", 5))
	assert.Equal(t, []catalog.Name{"P", "A", "B", "C", "Q", "E", "D"}, names(tpl))
}

func TestMoveColumn_RejectedAcrossPinned(t *testing.T) {
	tests := []struct {
		name   string
		column catalog.Name
		target int
	}{
		{"onto leading pinned column", "B", 0},
		{"down onto pinned boundary", "C", 5},
		{"up into previous segment", "D", 3},
		{"down into next segment", "A", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := segmentedTemplate()
			before := orders(tpl)

			assert.False(t, tpl.MoveColumn(tt.column, tt.target))
			assert.Equal(t, before, orders(tpl))
		})
	}
}

func TestMoveColumn_PinnedColumnNeverMoves(t *testing.T) {
	tpl := segmentedTemplate()
	before := orders(tpl)

	for target := 0; target <= 7; target++ {
		assert.False(t, tpl.MoveColumn("P", target))
		assert.False(t, tpl.MoveColumn("Q", target))
	}
	assert.Equal(t, before, orders(tpl))
}

func TestMoveColumn_OwnSlotIsNoOp(t *testing.T) {
	tpl := segmentedTemplate()
	before := orders(tpl)

	assert.True(t, tpl.MoveColumn("B", 2))
	assert.True(t, tpl.MoveColumn("B", 3)) // just below itself
	assert.True(t, tpl.MoveColumn("E", 7))
	assert.Equal(t, before, orders(tpl))
}

func TestMoveColumn_InvalidInput(t *testing.T) {
	tpl := segmentedTemplate()
	before := orders(tpl)

	assert.False(t, tpl.MoveColumn("nope", 1))
	assert.False(t, tpl.MoveColumn("B", -1))
	assert.False(t, tpl.MoveColumn("B", 8))
	assert.Equal(t, before, orders(tpl))
}

func TestMoveColumn_NoPinnedColumns(t *testing.T) {
	tpl := template.New("t", "p", []*template.Column{
		col(def("A", true), 0, catalog.SourceUserInput),
		col(def("B", true), 1, catalog.SourceUserInput),
		col(def("C", true), 2, catalog.SourceUserInput),
	})

	assert.True(t, tpl.MoveColumn("C", 0))
	assert.Equal(t, []catalog.Name{"C", "A", "B"}, names(tpl))

	assert.True(t, tpl.MoveColumn("C", 3))
	assert.Equal(t, []catalog.Name{"A", "B", "C"}, names(tpl))
}

func TestMoveColumn_OrdersStayPermutation(t *testing.T) {
	// Every (column, target) pair on a fresh template: reorderable orders
	// are permuted, pinned orders never change.
	base := segmentedTemplate()
	for _, c := range base.Columns() {
		for target := 0; target <= base.Len(); target++ {
			tpl := segmentedTemplate()
			before := orders(tpl)

			moved := tpl.MoveColumn(c.Name, target)
			after := orders(tpl)

			assert.Equal(t, before["P"], after["P"])
			assert.Equal(t, before["Q"], after["Q"])
			assert.Equal(t, movable(before), movable(after), "move %s to %d", c.Name, target)
			if !moved {
				assert.Equal(t, before, after)
			}
		}
	}
}

func movable(o map[catalog.Name]int) []int {
	var out []int
	for name, order := range o {
		if name != "P" && name != "Q" {
			out = append(out, order)
		}
	}
	sort.Ints(out)
	return out
}

func TestMoveColumn_CatalogTemplate(t *testing.T) {
	tpl := catalogTemplate(catalog.Skipped, catalog.ProductCode, catalog.ProductName,
		catalog.BeginningBalance, catalog.StockOnHand, catalog.Remarks)

	assert.False(t, tpl.MoveColumn(catalog.Remarks, 2))
	assert.True(t, tpl.MoveColumn(catalog.Remarks, 3))
	assert.Equal(t, []catalog.Name{catalog.Skipped, catalog.ProductCode, catalog.ProductName,
		catalog.Remarks, catalog.BeginningBalance, catalog.StockOnHand}, names(tpl))
}
