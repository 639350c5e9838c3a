package inventory

import (
	"sort"
	"strings"
)

// Inventory is the ordered master list of packages, sorted case-insensitively
// by name. It is built once per load; afterwards only package statuses change,
// and only through ApplyReport or SetStatus.
type Inventory struct {
	packages []Package
	index    map[string]int
}

// Build merges the device package list with classification data. Names
// missing from installed are marked Uninstalled; names the classifier does
// not know get the default description, category and an empty tier.
// Duplicate names in all are collapsed to the first occurrence.
func Build(all []string, installed map[string]struct{}, classifier Classifier) *Inventory {
	packages := make([]Package, 0, len(all))
	seen := make(map[string]struct{}, len(all))

	for _, name := range all {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		pkg := Package{
			Name:        name,
			Description: DefaultDescription,
			Category:    DefaultCategory,
			Tier:        TierUnknown,
			Status:      Installed,
		}

		if classifier != nil {
			if c, ok := classifier.Lookup(name); ok {
				pkg.Description = c.Description
				pkg.Category = c.Category
				pkg.Tier = c.Tier
			}
		}

		if _, ok := installed[name]; !ok {
			pkg.Status = Uninstalled
		}

		packages = append(packages, pkg)
	}

	return New(packages)
}

// New builds an inventory from already classified packages.
func New(packages []Package) *Inventory {
	sorted := make([]Package, len(packages))
	copy(sorted, packages)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := strings.ToLower(sorted[i].Name), strings.ToLower(sorted[j].Name)
		if a != b {
			return a < b
		}
		return sorted[i].Name < sorted[j].Name
	})

	inv := &Inventory{
		packages: sorted,
		index:    make(map[string]int, len(sorted)),
	}
	for i, p := range sorted {
		inv.index[p.Name] = i
	}
	return inv
}

// Len returns the number of packages.
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.packages)
}

// Packages returns a copy of the master list in inventory order.
func (inv *Inventory) Packages() []Package {
	if inv == nil {
		return nil
	}
	out := make([]Package, len(inv.packages))
	copy(out, inv.packages)
	return out
}

// Names returns the package names in inventory order.
func (inv *Inventory) Names() []string {
	if inv == nil {
		return nil
	}
	names := make([]string, len(inv.packages))
	for i, p := range inv.packages {
		names[i] = p.Name
	}
	return names
}

// Get returns the package with the given name.
func (inv *Inventory) Get(name string) (Package, bool) {
	if inv == nil {
		return Package{}, false
	}
	i, ok := inv.index[name]
	if !ok {
		return Package{}, false
	}
	return inv.packages[i], true
}

// SetStatus records a new status for a package.
func (inv *Inventory) SetStatus(name string, status Status) error {
	if inv == nil {
		return ErrUnknownPackage
	}
	i, ok := inv.index[name]
	if !ok {
		return ErrUnknownPackage
	}
	inv.packages[i].Status = status
	return nil
}

// ApplyReport records the status of every applied outcome in the report.
// Failed and skipped outcomes leave their packages untouched.
func (inv *Inventory) ApplyReport(r *Report) int {
	if inv == nil || r == nil {
		return 0
	}
	changed := 0
	for _, o := range r.Outcomes {
		if o.Kind != OutcomeApplied {
			continue
		}
		if err := inv.SetStatus(o.Name, o.To); err == nil {
			changed++
		}
	}
	return changed
}
