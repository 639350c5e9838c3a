package inventory

import (
	"sort"
	"strings"
)

// Matches reports whether p satisfies every field of c.
// Search is a case-sensitive substring match on the package name.
func Matches(p Package, c Criteria) bool {
	if c.Search != "" && !strings.Contains(p.Name, c.Search) {
		return false
	}
	if c.Status != All && c.Status != string(p.Status) {
		return false
	}
	if c.Category != All && c.Category != p.Category {
		return false
	}
	if c.Tier != All && c.Tier != p.Tier {
		return false
	}
	return true
}

// Recompute derives the visible set: every package of inv matching c, sorted
// by name (byte order), with Selected taken from sel. It never modifies inv
// or sel, so repeated calls with the same inputs return identical rows.
func Recompute(inv *Inventory, c Criteria, sel *Selection) []Row {
	if inv == nil {
		return nil
	}

	rows := make([]Row, 0, len(inv.packages))
	for _, p := range inv.packages {
		if !Matches(p, c) {
			continue
		}
		rows = append(rows, Row{Package: p, Selected: sel.Contains(p.Name)})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Name < rows[j].Name
	})

	return rows
}

// Pending returns the rows that are both visible and selected, in visible order.
func Pending(visible []Row) []Row {
	var pending []Row
	for _, r := range visible {
		if r.Selected {
			pending = append(pending, r)
		}
	}
	return pending
}

// HiddenSelections returns selected names that are not part of visible.
func HiddenSelections(visible []Row, sel *Selection) []string {
	shown := make(map[string]struct{}, len(visible))
	for _, r := range visible {
		shown[r.Name] = struct{}{}
	}

	var hidden []string
	for _, name := range sel.Names() {
		if _, ok := shown[name]; !ok {
			hidden = append(hidden, name)
		}
	}
	return hidden
}
