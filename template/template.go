package template

import (
	"github.com/warp/requisition-engine/catalog"
)

// =============================================================================
// ADD / REMOVE
// =============================================================================

// AddColumn appends a catalog column after the current last column, with
// the definition's defaults (see NewColumn). A nil definition is ignored.
func (t *Template) AddColumn(def *catalog.Definition) (*Column, error) {
	if def == nil {
		return nil, nil
	}
	if _, exists := t.columns[def.Name]; exists {
		return nil, ErrDuplicateColumn
	}
	order := 0
	for _, c := range t.columns {
		if c.DisplayOrder+1 > order {
			order = c.DisplayOrder + 1
		}
	}
	col := NewColumn(def, order)
	t.columns[def.Name] = col
	t.rebuildDependents()
	return col, nil
}

// RemoveColumn deletes the named column and closes the gap in display order.
func (t *Template) RemoveColumn(name catalog.Name) error {
	removed, ok := t.columns[name]
	if !ok {
		return &ColumnNotFoundError{TemplateID: t.ID, Column: name}
	}
	delete(t.columns, name)
	for _, c := range t.columns {
		if c.DisplayOrder >= removed.DisplayOrder {
			c.DisplayOrder--
		}
	}
	t.rebuildDependents()
	return nil
}

// =============================================================================
// STOCK-BASED MODE
// =============================================================================

// IsColumnDisabled reports whether col is switched off by stock-based mode.
func (t *Template) IsColumnDisabled(col *Column) bool {
	return t.PopulateStockOnHandFromStockCards && col.Def != nil && col.Def.StockDisabled
}

// ChangePopulateStockOnHandFromStockCards toggles stock-based mode and
// re-sources the affected columns.
func (t *Template) ChangePopulateStockOnHandFromStockCards() {
	t.SetPopulateStockOnHandFromStockCards(!t.PopulateStockOnHandFromStockCards)
}

// SetPopulateStockOnHandFromStockCards switches stock-based mode on or off.
//
// On:  stock-based columns move to STOCK_CARDS, stock-disabled columns are hidden.
// Off: stock-based columns move back to USER_INPUT.
func (t *Template) SetPopulateStockOnHandFromStockCards(on bool) {
	t.PopulateStockOnHandFromStockCards = on
	for _, c := range t.columns {
		if c.Def == nil {
			continue
		}
		if on {
			if c.Def.StockBased && c.Def.AllowsSource(catalog.SourceStockCards) {
				c.Source = catalog.SourceStockCards
			}
			if c.Def.StockDisabled {
				c.IsDisplayed = false
			}
			continue
		}
		if c.Def.StockBased && c.Def.AllowsSource(catalog.SourceUserInput) {
			c.Source = catalog.SourceUserInput
		}
	}
}
