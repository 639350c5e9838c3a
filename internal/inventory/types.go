// Package inventory holds the package state and selection engine: the master
// inventory of device packages merged with their classification, the filter
// that derives the visible set, the selection that survives filter changes,
// and the per-row transitions applied by the action executor.
package inventory

import "strings"

// Status is the installation state of a package on the device.
type Status string

const (
	Installed   Status = "installed"
	Uninstalled Status = "uninstalled"
)

// Tier values as published by the classification catalog. The empty tier is
// used for packages the catalog does not know about.
const (
	TierUnknown  = ""
	TierSafe     = "safe"
	TierAdvanced = "advanced"
	TierExpert   = "expert"
	TierUnsafe   = "unsafe"
)

// tierAliases maps other spellings to a known tier. Current UAD lists
// publish the safe tier as "Recommended".
var tierAliases = map[string]string{
	"recommended": TierSafe,
}

// All matches every value of a filter field.
const All = "all"

// Defaults applied to packages missing from the classification catalog.
const (
	DefaultDescription = "[No description]"
	DefaultCategory    = "unlisted"
)

// Package is one entry of the master inventory.
type Package struct {
	Name        string
	Description string
	Category    string // classification list, e.g. "google", "oem", "unlisted"
	Tier        string // removal confidence, e.g. "safe", "unsafe"
	Status      Status
}

// Row is a package as it appears in the visible set.
type Row struct {
	Package
	Selected bool
}

// Classification is what the catalog knows about a package.
type Classification struct {
	Description string
	Category    string
	Tier        string
}

// Criteria are the active filters. Each field other than Search accepts All.
type Criteria struct {
	Search   string
	Status   string // "installed", "uninstalled" or All
	Category string
	Tier     string
}

// DefaultCriteria returns the criteria in effect after every load: installed
// packages of the safe tier, any list, no search text.
func DefaultCriteria() Criteria {
	return Criteria{
		Search:   "",
		Status:   string(Installed),
		Category: All,
		Tier:     TierSafe,
	}
}

// ParseStatus converts user input into a status filter value.
func ParseStatus(s string) (string, bool) {
	switch s {
	case string(Installed), string(Uninstalled), All:
		return s, true
	}
	return "", false
}

// Tiers lists the known tiers from least to most conservative.
func Tiers() []string {
	return []string{TierSafe, TierAdvanced, TierExpert, TierUnsafe}
}

// NormalizeTier lowercases a tier name and resolves aliases. Names that are
// not known tiers are returned lowercased.
func NormalizeTier(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if tier, ok := tierAliases[t]; ok {
		return tier
	}
	return t
}
