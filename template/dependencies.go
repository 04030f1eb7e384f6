package template

import (
	"sort"

	"github.com/warp/requisition-engine/catalog"
)

// =============================================================================
// DEPENDENTS INDEX
// =============================================================================

// rebuildDependents inverts every column's catalog dependency list onto the
// columns present in the template. Only called on construction, add and
// remove; nothing else mutates Dependents.
func (t *Template) rebuildDependents() {
	for _, c := range t.columns {
		c.Dependents = nil
	}
	for _, c := range t.columns {
		for _, dep := range c.dependencies() {
			if target, ok := t.columns[dep]; ok {
				target.Dependents = append(target.Dependents, c.Name)
			}
		}
	}
	for _, c := range t.columns {
		sort.Slice(c.Dependents, func(i, j int) bool { return c.Dependents[i] < c.Dependents[j] })
	}
}

// Dependents returns the template columns whose formula reads name.
func (t *Template) Dependents(name catalog.Name) []catalog.Name {
	c, ok := t.columns[name]
	if !ok {
		return nil
	}
	return append([]catalog.Name(nil), c.Dependents...)
}

// =============================================================================
// CYCLE DETECTION
// =============================================================================

// FindCircularCalculatedDependencies returns the columns that close a
// calculation cycle through name: for each returned X, name's formula
// reads X and X (through CALCULATED columns only) reads name.
//
// The walk goes depth first along dependents. A column is visited once,
// so a cycle is reported once per distinct column re-entering name.
// Columns absent from the template are skipped. The result contains name
// itself when the column reads itself.
func (t *Template) FindCircularCalculatedDependencies(name catalog.Name) []catalog.Name {
	origin, ok := t.columns[name]
	if !ok {
		return nil
	}
	var violators []catalog.Name
	visited := make(map[catalog.Name]bool)
	t.walkDependents(origin, name, visited, &violators)
	return violators
}

func (t *Template) walkDependents(col *Column, origin catalog.Name, visited map[catalog.Name]bool, violators *[]catalog.Name) {
	visited[col.Name] = true
	for _, name := range col.Dependents {
		if name == origin {
			*violators = append(*violators, col.Name)
			continue
		}
		if visited[name] {
			continue
		}
		dependent, ok := t.columns[name]
		if !ok || !dependent.IsCalculated() {
			continue
		}
		t.walkDependents(dependent, origin, visited, violators)
	}
}

// =============================================================================
// EVALUATION ORDER
// =============================================================================

// CalculationOrder returns the CALCULATED columns ordered so that every
// column comes after the calculated columns it reads (Kahn's algorithm,
// ties broken by display order). Columns caught in a cycle cannot be
// ordered; they are appended in display order.
func (t *Template) CalculationOrder() []catalog.Name {
	calculated := make(map[catalog.Name]*Column)
	for _, c := range t.columns {
		if c.IsCalculated() {
			calculated[c.Name] = c
		}
	}

	inDegree := make(map[catalog.Name]int, len(calculated))
	for name, c := range calculated {
		inDegree[name] = 0
		for _, dep := range c.dependencies() {
			if _, ok := calculated[dep]; ok && dep != name {
				inDegree[name]++
			}
		}
	}

	var ready []*Column
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, calculated[name])
		}
	}
	sortByDisplayOrder(ready)

	order := make([]catalog.Name, 0, len(calculated))
	done := make(map[catalog.Name]bool, len(calculated))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next.Name)
		done[next.Name] = true

		var unlocked []*Column
		for _, name := range next.Dependents {
			dependent, ok := calculated[name]
			if !ok || done[name] || name == next.Name {
				continue
			}
			inDegree[name]--
			if inDegree[name] == 0 {
				unlocked = append(unlocked, dependent)
			}
		}
		ready = append(ready, unlocked...)
		sortByDisplayOrder(ready)
	}

	if len(order) < len(calculated) {
		var rest []*Column
		for name, c := range calculated {
			if !done[name] {
				rest = append(rest, c)
			}
		}
		sortByDisplayOrder(rest)
		for _, c := range rest {
			order = append(order, c.Name)
		}
	}
	return order
}
