/*
reorder.go - Drag-and-drop column reordering with pinned columns

PURPOSE:
  Moves one column to a new position in the display-ordered column list.
  Pinned columns (catalog CanChangeOrder = false) never move and split
  the list into segments; a column can only travel inside its segment.

ALGORITHM:
  1. Sort all columns by display order; locate the dragged column
  2. min/max = orders of the nearest pinned columns below/above it
     (none below: -1, none above: unbounded)
  3. Candidate order:
       moving up   -> order of the column at the target index
       moving down -> order of the column just before the target index
  4. Reject unless min < candidate < max
  5. Rotate the orders of the reorderable columns between the old and new
     positions by one slot and give the dragged column the candidate order

  Dropping a column on its own slot succeeds without changing anything.
  Rejection leaves every order untouched.

EXAMPLE (pinned P at 0, columns A=1 B=2 C=3):
  MoveColumn(C, 1)  -> A=2 B=3 C=1, returns true
  MoveColumn(C, 0)  -> candidate 0 is not > min 0, returns false

SEE ALSO:
  - types.go: Column.CanChangeOrder
*/
package template

import (
	"math"

	"github.com/warp/requisition-engine/catalog"
)

// MoveColumn moves the named column to targetIndex in the list of columns
// sorted by display order. targetIndex ranges over [0, Len()]; an index
// below the column's position moves it up, above moves it down.
func (t *Template) MoveColumn(name catalog.Name, targetIndex int) bool {
	dropped, ok := t.columns[name]
	if !ok || !dropped.CanChangeOrder() {
		return false
	}
	all := t.Columns()
	if targetIndex < 0 || targetIndex > len(all) {
		return false
	}
	current := -1
	for i, c := range all {
		if c == dropped {
			current = i
			break
		}
	}
	if targetIndex == current {
		return true
	}

	movingUp := targetIndex < current
	var candidate int
	if movingUp {
		candidate = all[targetIndex].DisplayOrder
	} else {
		candidate = all[targetIndex-1].DisplayOrder
	}
	if candidate == dropped.DisplayOrder {
		return true
	}

	lower, upper := pinnedBounds(all, dropped.DisplayOrder)
	if candidate <= lower || candidate >= upper {
		return false
	}

	from, to := dropped.DisplayOrder, candidate
	if from > to {
		from, to = to, from
	}
	var span []*Column
	for _, c := range all {
		if c.CanChangeOrder() && c.DisplayOrder >= from && c.DisplayOrder <= to {
			span = append(span, c)
		}
	}
	orders := make([]int, len(span))
	for i, c := range span {
		orders[i] = c.DisplayOrder
	}
	if movingUp {
		// span = [target ... dropped]; everyone else slides down one slot.
		for i := 0; i < len(span)-1; i++ {
			span[i].DisplayOrder = orders[i+1]
		}
	} else {
		// span = [dropped ... target]; everyone else slides up one slot.
		for i := 1; i < len(span); i++ {
			span[i].DisplayOrder = orders[i-1]
		}
	}
	dropped.DisplayOrder = candidate
	return true
}

// pinnedBounds returns the display orders of the pinned columns closest
// below and above order.
func pinnedBounds(sorted []*Column, order int) (lower, upper int) {
	lower, upper = -1, math.MaxInt
	for _, c := range sorted {
		if c.CanChangeOrder() {
			continue
		}
		if c.DisplayOrder < order {
			lower = c.DisplayOrder
		} else if c.DisplayOrder > order {
			upper = c.DisplayOrder
			break
		}
	}
	return lower, upper
}
