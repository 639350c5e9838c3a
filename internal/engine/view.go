package engine

import (
	"fmt"

	"github.com/blackwell-systems/droidprune/internal/inventory"
)

// Visible returns a copy of the current visible set.
func (e *Engine) Visible() []inventory.Row {
	rows := make([]inventory.Row, len(e.visible))
	copy(rows, e.visible)
	return rows
}

// Criteria returns the active criteria.
func (e *Engine) Criteria() inventory.Criteria { return e.criteria }

// Package looks up a package of the current inventory.
func (e *Engine) Package(name string) (inventory.Package, bool) {
	return e.inv.Get(name)
}

// Packages returns the master inventory in order.
func (e *Engine) Packages() []inventory.Package { return e.inv.Packages() }

// SetCriteria replaces every filter field at once.
func (e *Engine) SetCriteria(c inventory.Criteria) {
	e.criteria = c
	e.recompute()
}

// SetSearch changes the search text.
func (e *Engine) SetSearch(s string) {
	e.criteria.Search = s
	e.recompute()
}

// SetStatus changes the status filter. It accepts "installed",
// "uninstalled" or "all".
func (e *Engine) SetStatus(s string) error {
	status, ok := inventory.ParseStatus(s)
	if !ok {
		return fmt.Errorf("invalid status %q: must be one of: installed, uninstalled, all", s)
	}
	e.criteria.Status = status
	e.recompute()
	return nil
}

// SetCategory changes the list filter.
func (e *Engine) SetCategory(c string) {
	e.criteria.Category = c
	e.recompute()
}

// SetTier changes the tier filter. Tier aliases are resolved.
func (e *Engine) SetTier(t string) {
	e.criteria.Tier = inventory.NormalizeTier(t)
	e.recompute()
}

// Toggle flips the selection of a package in the inventory and reports
// whether it is now selected.
func (e *Engine) Toggle(name string) (bool, error) {
	if _, ok := e.inv.Get(name); !ok {
		return false, fmt.Errorf("%w: %s", inventory.ErrUnknownPackage, name)
	}
	selected := e.sel.Toggle(name)
	e.recompute()
	return selected, nil
}

// SelectAllVisible adds every visible row to the selection.
func (e *Engine) SelectAllVisible() {
	e.sel.SelectAllVisible(e.visible)
	e.recompute()
}

// SelectedCount returns the size of the selection, including hidden rows.
func (e *Engine) SelectedCount() int { return e.sel.Count() }

// PendingCount returns the number of rows the next Apply would act on.
func (e *Engine) PendingCount() int { return len(inventory.Pending(e.visible)) }

// HiddenSelections returns selected names the active criteria hide.
func (e *Engine) HiddenSelections() []string {
	return inventory.HiddenSelections(e.visible, e.sel)
}
