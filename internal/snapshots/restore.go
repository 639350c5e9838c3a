package snapshots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/blackwell-systems/droidprune/internal/inventory"
)

// RestoreSnapshot returns every package recorded in the snapshot to its
// recorded status, using current as the device state. Packages already in
// their recorded status are left alone; packages no longer on the device are
// reported as skipped. Transitions go through the executor, so an unsafe
// package is never removed.
func (m *Manager) RestoreSnapshot(ctx context.Context, id int64, current *inventory.Inventory, exec *inventory.Executor) (*inventory.Report, error) {
	recorded, err := m.Packages(id)
	if err != nil {
		return nil, err
	}

	report := &inventory.Report{}
	for _, rec := range recorded {
		pkg, ok := current.Get(rec.Name)
		if !ok {
			report.Outcomes = append(report.Outcomes, inventory.Outcome{
				Name:   rec.Name,
				Tier:   rec.Tier,
				Kind:   inventory.OutcomeSkipped,
				Reason: "not on device",
			})
			continue
		}

		want := inventory.Status(rec.Status)
		if pkg.Status == want {
			continue
		}

		action := inventory.ActionRestore
		if want == inventory.Uninstalled {
			action = inventory.ActionRemove
		}
		report.Outcomes = append(report.Outcomes, exec.ApplyOne(ctx, pkg, action))
	}

	return report, nil
}

// Packages returns the packages recorded in a snapshot. The snapshot file is
// preferred; the database rows are used when the file has been cleaned up.
func (m *Manager) Packages(id int64) ([]*PackageSnapshot, error) {
	snapshot, err := m.store.GetSnapshot(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	data, err := loadSnapshotFile(snapshot.SnapshotPath)
	if err == nil {
		return data.Packages, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load snapshot file: %w", err)
	}

	rows, err := m.store.GetSnapshotPackages(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot packages: %w", err)
	}
	packages := make([]*PackageSnapshot, 0, len(rows))
	for _, r := range rows {
		packages = append(packages, &PackageSnapshot{Name: r.PackageName, Status: r.Status, Tier: r.Tier})
	}
	return packages, nil
}

// loadSnapshotFile reads and parses a snapshot JSON file.
func loadSnapshotFile(path string) (*SnapshotData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var snapshotData SnapshotData
	if err := json.Unmarshal(data, &snapshotData); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot JSON: %w", err)
	}

	return &snapshotData, nil
}
