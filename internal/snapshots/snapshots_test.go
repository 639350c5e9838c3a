package snapshots

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/droidprune/internal/inventory"
	"github.com/blackwell-systems/droidprune/internal/store"
)

type recordingGateway struct {
	removed  []string
	restored []string
}

func (g *recordingGateway) ListAllPackages(ctx context.Context) ([]string, error) { return nil, nil }

func (g *recordingGateway) ListInstalledPackages(ctx context.Context) (map[string]struct{}, error) {
	return nil, nil
}

func (g *recordingGateway) Remove(ctx context.Context, name string) error {
	g.removed = append(g.removed, name)
	return nil
}

func (g *recordingGateway) Restore(ctx context.Context, name string) error {
	g.restored = append(g.restored, name)
	return nil
}

func setup(t *testing.T) (*Manager, *store.Store, string) {
	t.Helper()
	snapshotDir := filepath.Join(t.TempDir(), "snapshots")

	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.CreateSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return New(db, snapshotDir), db, snapshotDir
}

func TestCreateSnapshot(t *testing.T) {
	mgr, db, snapshotDir := setup(t)

	pkgs := []inventory.Package{
		{Name: "com.google.android.youtube", Status: inventory.Installed, Tier: inventory.TierSafe},
		{Name: "com.facebook.appmanager", Status: inventory.Installed, Tier: inventory.TierAdvanced},
	}

	id, err := mgr.CreateSnapshot(pkgs, "before apply", "Pixel 7")
	if err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}

	snap, err := db.GetSnapshot(id)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if snap.PackageCount != 2 {
		t.Errorf("PackageCount = %d, want 2", snap.PackageCount)
	}
	if filepath.Dir(snap.SnapshotPath) != snapshotDir {
		t.Errorf("snapshot written to %s, want directory %s", snap.SnapshotPath, snapshotDir)
	}

	raw, err := os.ReadFile(snap.SnapshotPath)
	if err != nil {
		t.Fatalf("snapshot file not written: %v", err)
	}
	var data SnapshotData
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("invalid snapshot JSON: %v", err)
	}
	if data.Device != "Pixel 7" || len(data.Packages) != 2 || data.Packages[0].Status != "installed" {
		t.Errorf("unexpected snapshot data: %+v", data)
	}

	rows, err := db.GetSnapshotPackages(id)
	if err != nil {
		t.Fatalf("GetSnapshotPackages failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 snapshot rows, got %d", len(rows))
	}
}

func TestCreateSnapshot_Empty(t *testing.T) {
	mgr, _, _ := setup(t)
	if _, err := mgr.CreateSnapshot(nil, "nothing", ""); err == nil {
		t.Error("expected error for empty snapshot")
	}
}

func TestRestoreSnapshot(t *testing.T) {
	mgr, _, _ := setup(t)

	before := []inventory.Package{
		{Name: "a.app", Status: inventory.Installed, Tier: inventory.TierSafe},
		{Name: "b.app", Status: inventory.Uninstalled, Tier: inventory.TierSafe},
		{Name: "c.app", Status: inventory.Uninstalled, Tier: inventory.TierUnsafe},
		{Name: "d.app", Status: inventory.Installed, Tier: inventory.TierSafe},
		{Name: "gone.app", Status: inventory.Installed, Tier: inventory.TierSafe},
	}
	id, err := mgr.CreateSnapshot(before, "before apply", "")
	if err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}

	current := inventory.New([]inventory.Package{
		{Name: "a.app", Status: inventory.Uninstalled, Tier: inventory.TierSafe},
		{Name: "b.app", Status: inventory.Installed, Tier: inventory.TierSafe},
		{Name: "c.app", Status: inventory.Installed, Tier: inventory.TierUnsafe},
		{Name: "d.app", Status: inventory.Installed, Tier: inventory.TierSafe},
	})

	gw := &recordingGateway{}
	report, err := mgr.RestoreSnapshot(context.Background(), id, current, inventory.NewExecutor(gw, zerolog.Nop()))
	if err != nil {
		t.Fatalf("RestoreSnapshot failed: %v", err)
	}

	if len(gw.restored) != 1 || gw.restored[0] != "a.app" {
		t.Errorf("restored = %v, want [a.app]", gw.restored)
	}
	// c.app is unsafe and must not be removed even to match the snapshot.
	if len(gw.removed) != 1 || gw.removed[0] != "b.app" {
		t.Errorf("removed = %v, want [b.app]", gw.removed)
	}

	if got := report.Count(inventory.OutcomeApplied); got != 2 {
		t.Errorf("applied = %d, want 2", got)
	}
	if got := report.Count(inventory.OutcomeSkipped); got != 2 {
		t.Errorf("skipped = %d, want 2 (unsafe + missing)", got)
	}
}

func TestPackages_FallsBackToDatabase(t *testing.T) {
	mgr, db, _ := setup(t)

	id, err := mgr.CreateSnapshot([]inventory.Package{{Name: "a.app", Status: inventory.Installed}}, "test", "")
	if err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}
	snap, _ := db.GetSnapshot(id)
	if err := os.Remove(snap.SnapshotPath); err != nil {
		t.Fatal(err)
	}

	pkgs, err := mgr.Packages(id)
	if err != nil {
		t.Fatalf("Packages failed: %v", err)
	}
	if len(pkgs) != 1 || pkgs[0].Name != "a.app" || pkgs[0].Status != "installed" {
		t.Errorf("unexpected packages: %+v", pkgs)
	}
}

func TestCleanupOldSnapshots_KeepsRecent(t *testing.T) {
	mgr, db, _ := setup(t)

	if _, err := mgr.CreateSnapshot([]inventory.Package{{Name: "a.app", Status: inventory.Installed}}, "test", ""); err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}

	deleted, err := mgr.CleanupOldSnapshots()
	if err != nil {
		t.Fatalf("CleanupOldSnapshots failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}

	list, _ := db.ListSnapshots()
	if _, err := os.Stat(list[0].SnapshotPath); err != nil {
		t.Errorf("recent snapshot file should remain: %v", err)
	}
}
