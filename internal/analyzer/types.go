package analyzer

import "time"

// TierCount splits the packages of one tier by status.
type TierCount struct {
	Tier        string
	Installed   int
	Uninstalled int
}

// Summary describes an inventory at a glance.
type Summary struct {
	Total       int
	Installed   int
	Uninstalled int
	Unlisted    int            // packages the catalog does not know
	Tiers       []TierCount    // in Tiers() order, unknown tier last
	Categories  map[string]int // installed packages per list
}

// Recommendation represents a set of packages recommended for removal.
type Recommendation struct {
	Packages []string
	Tier     string
}

// Activity summarizes the action journal since a point in time.
type Activity struct {
	Since      time.Time
	Batches    int
	Applied    int
	Failed     int
	Skipped    int
	LastAction *time.Time
}
