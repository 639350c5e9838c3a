package snapshots

import (
	"time"

	"github.com/blackwell-systems/droidprune/internal/store"
)

// SnapshotData represents the JSON structure stored in snapshot files.
type SnapshotData struct {
	CreatedAt time.Time
	Reason    string
	Device    string
	Packages  []*PackageSnapshot
}

// PackageSnapshot is the recorded state of one package.
type PackageSnapshot struct {
	Name   string
	Status string
	Tier   string
}

// Manager manages snapshot creation, restoration, and cleanup.
type Manager struct {
	store       *store.Store
	snapshotDir string
}

// New creates a new snapshot Manager.
func New(store *store.Store, snapshotDir string) *Manager {
	return &Manager{
		store:       store,
		snapshotDir: snapshotDir,
	}
}
