package scanner

import (
	"sort"

	"github.com/blackwell-systems/droidprune/internal/catalog"
	"github.com/blackwell-systems/droidprune/internal/inventory"
)

// EntrySource gives access to full catalog entries.
type EntrySource interface {
	Entry(name string) (catalog.Entry, bool)
}

// InstalledDependents returns the installed packages the catalog lists as
// needing name. Removing name may break them.
func InstalledDependents(inv *inventory.Inventory, src EntrySource, name string) []string {
	if src == nil {
		return nil
	}
	entry, ok := src.Entry(name)
	if !ok {
		return nil
	}

	var dependents []string
	for _, dep := range entry.NeededBy {
		if pkg, ok := inv.Get(dep); ok && pkg.Status == inventory.Installed {
			dependents = append(dependents, dep)
		}
	}
	sort.Strings(dependents)
	return dependents
}

// RemovalWarnings maps each package of a pending removal to its installed
// dependents that are not removed in the same batch.
func RemovalWarnings(inv *inventory.Inventory, src EntrySource, pending []inventory.Row) map[string][]string {
	removing := make(map[string]bool, len(pending))
	for _, r := range pending {
		if r.Status == inventory.Installed {
			removing[r.Name] = true
		}
	}

	warnings := make(map[string][]string)
	for name := range removing {
		var kept []string
		for _, dep := range InstalledDependents(inv, src, name) {
			if !removing[dep] {
				kept = append(kept, dep)
			}
		}
		if len(kept) > 0 {
			warnings[name] = kept
		}
	}
	return warnings
}
