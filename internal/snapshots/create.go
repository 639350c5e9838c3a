package snapshots

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blackwell-systems/droidprune/internal/inventory"
	"github.com/blackwell-systems/droidprune/internal/store"
)

// retention is how long snapshot files are kept on disk.
const retention = 90 * 24 * time.Hour

// CreateSnapshot records the current status of packages and returns the
// snapshot ID.
func (m *Manager) CreateSnapshot(packages []inventory.Package, reason, device string) (int64, error) {
	if len(packages) == 0 {
		return 0, fmt.Errorf("no packages to snapshot")
	}

	if err := os.MkdirAll(m.snapshotDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	now := time.Now()
	snapshotData := &SnapshotData{
		CreatedAt: now,
		Reason:    reason,
		Device:    device,
		Packages:  make([]*PackageSnapshot, 0, len(packages)),
	}
	for _, pkg := range packages {
		snapshotData.Packages = append(snapshotData.Packages, &PackageSnapshot{
			Name:   pkg.Name,
			Status: string(pkg.Status),
			Tier:   pkg.Tier,
		})
	}

	// YYYY-MM-DD-HHMMSS.nnn.json; sub-second part keeps batches within a
	// second apart from overwriting each other.
	snapshotPath := filepath.Join(m.snapshotDir, now.Format("2006-01-02-150405.000")+".json")

	jsonData, err := json.MarshalIndent(snapshotData, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal snapshot data: %w", err)
	}

	if err := os.WriteFile(snapshotPath, jsonData, 0644); err != nil {
		return 0, fmt.Errorf("failed to write snapshot file: %w", err)
	}

	rows := make([]*store.SnapshotPackage, 0, len(snapshotData.Packages))
	for _, pkg := range snapshotData.Packages {
		rows = append(rows, &store.SnapshotPackage{
			PackageName: pkg.Name,
			Status:      pkg.Status,
			Tier:        pkg.Tier,
		})
	}

	snapshotID, err := m.store.InsertSnapshot(reason, snapshotPath, rows)
	if err != nil {
		os.Remove(snapshotPath)
		return 0, fmt.Errorf("failed to insert snapshot into database: %w", err)
	}
	return snapshotID, nil
}

// ListSnapshots returns all snapshots from the database.
func (m *Manager) ListSnapshots() ([]*store.Snapshot, error) {
	snapshots, err := m.store.ListSnapshots()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, nil
}

// CleanupOldSnapshots removes snapshot files older than the retention period
// and returns how many were deleted. Database rows are kept as an audit log.
func (m *Manager) CleanupOldSnapshots() (int, error) {
	snapshots, err := m.store.ListSnapshots()
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	deleted := 0
	for _, snapshot := range snapshots {
		if !snapshot.CreatedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(snapshot.SnapshotPath); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return deleted, fmt.Errorf("failed to delete snapshot file %s: %w", snapshot.SnapshotPath, err)
		}
		deleted++
	}

	return deleted, nil
}
