/*
cascade.go - Dependency-ordered recalculation

PURPOSE:
  Writes the CALCULATED columns of a line item. Formulas read stored
  values, so a column is evaluated only after the calculated columns it
  depends on (template.CalculationOrder). Columns with any other source
  keep whatever the user or stock cards put there.

CASCADE:
  An edit to one column only needs its dependents re-evaluated:

    totalReceivedQuantity -> total -> stockOnHand -> calculatedOrderQuantity
                                                  -> packsToShip -> totalCost

  UpdateDependentFields walks the template's dependents breadth-first,
  bounded by Config.MaxCascadeDepth so a cyclic template (which validation
  rejects, but which can exist while being edited) cannot loop.

SEE ALSO:
  - calculation.go: Formulas
  - template/dependencies.go: Dependents, CalculationOrder
*/
package requisition

import (
	"github.com/warp/requisition-engine/catalog"
)

// formula writes one calculated column of a line item.
type formula func(c *Calculator, li *LineItem, req *Requisition)

// formulas maps each column that can be CALCULATED to its writer.
var formulas = map[catalog.Name]formula{
	catalog.Total: func(c *Calculator, li *LineItem, req *Requisition) {
		li.Total = Int(c.Total(li, req))
	},
	catalog.StockOnHand: func(c *Calculator, li *LineItem, req *Requisition) {
		li.StockOnHand = Int(c.StockOnHand(li, req))
	},
	catalog.TotalConsumedQuantity: func(c *Calculator, li *LineItem, req *Requisition) {
		li.TotalConsumedQuantity = Int(c.TotalConsumedQuantity(li, req))
	},
	catalog.TotalLossesAndAdjustments: func(c *Calculator, li *LineItem, req *Requisition) {
		li.TotalLossesAndAdjustments = Int(c.TotalLossesAndAdjustments(li, req))
	},
	catalog.AdjustedConsumption: func(c *Calculator, li *LineItem, req *Requisition) {
		li.AdjustedConsumption = Int(c.AdjustedConsumption(li, req))
	},
	catalog.AverageConsumption: func(c *Calculator, li *LineItem, req *Requisition) {
		li.AverageConsumption = Int(c.AverageConsumption(li, req))
	},
	catalog.MaximumStockQuantity: func(c *Calculator, li *LineItem, req *Requisition) {
		li.MaximumStockQuantity = Int(c.MaximumStockQuantity(li, req))
	},
	catalog.CalculatedOrderQuantity: func(c *Calculator, li *LineItem, req *Requisition) {
		li.CalculatedOrderQuantity = c.CalculatedOrderQuantity(li, req)
	},
	catalog.CalculatedOrderQuantityIsa: func(c *Calculator, li *LineItem, req *Requisition) {
		li.CalculatedOrderQuantityIsa = c.CalculatedOrderQuantityIsa(li, req)
	},
	catalog.PacksToShip: func(c *Calculator, li *LineItem, req *Requisition) {
		li.PacksToShip = Int(c.PacksToShip(li, req))
	},
	catalog.TotalCost: func(c *Calculator, li *LineItem, req *Requisition) {
		cost := c.TotalCost(li, req)
		li.TotalCost = &cost
	},
}

// HasFormula reports whether the engine can derive the named column.
func HasFormula(name catalog.Name) bool {
	_, ok := formulas[name]
	return ok
}

// =============================================================================
// RECALCULATION
// =============================================================================

// Recalculate evaluates every CALCULATED column of li in dependency order.
// Skipped line items are left untouched.
func (c *Calculator) Recalculate(li *LineItem, req *Requisition) {
	if li == nil || li.Skipped || req.Template == nil {
		return
	}
	for _, name := range req.Template.CalculationOrder() {
		if f, ok := formulas[name]; ok {
			f(c, li, req)
		}
	}
}

// RecalculateAll recalculates every line item of req and returns how many
// were evaluated.
func (c *Calculator) RecalculateAll(req *Requisition) int {
	n := 0
	for _, li := range req.LineItems {
		if li.Skipped {
			continue
		}
		c.Recalculate(li, req)
		n++
	}
	return n
}

// UpdateDependentFields re-evaluates the CALCULATED columns reachable from
// changed through the template's dependents, and returns their names in the
// order they were written. changed itself is not written.
func (c *Calculator) UpdateDependentFields(li *LineItem, req *Requisition, changed catalog.Name) []catalog.Name {
	if li == nil || li.Skipped || req.Template == nil {
		return nil
	}

	affected := c.affectedColumns(req, changed)
	if len(affected) == 0 {
		return nil
	}

	var written []catalog.Name
	for _, name := range req.Template.CalculationOrder() {
		if !affected[name] {
			continue
		}
		if f, ok := formulas[name]; ok {
			f(c, li, req)
			written = append(written, name)
		}
	}
	return written
}

// affectedColumns collects calculated dependents of changed, breadth-first,
// up to MaxCascadeDepth levels away.
func (c *Calculator) affectedColumns(req *Requisition, changed catalog.Name) map[catalog.Name]bool {
	depth := c.cfg.MaxCascadeDepth
	if depth <= 0 {
		depth = DefaultConfig().MaxCascadeDepth
	}

	affected := make(map[catalog.Name]bool)
	frontier := []catalog.Name{changed}
	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []catalog.Name
		for _, name := range frontier {
			for _, dep := range req.Template.Dependents(name) {
				if affected[dep] || dep == changed || !req.Template.IsCalculated(dep) {
					continue
				}
				affected[dep] = true
				next = append(next, dep)
			}
		}
		frontier = next
	}
	return affected
}
