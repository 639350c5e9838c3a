package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/droidprune/internal/inventory"
)

// Helper function to create an in-memory store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func cachedPackage(t *testing.T, s *Store, name string) inventory.Package {
	t.Helper()
	pkgs, err := s.ListPackages()
	if err != nil {
		t.Fatalf("ListPackages() failed: %v", err)
	}
	for _, p := range pkgs {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("package %s not cached", name)
	return inventory.Package{}
}

func samplePackages() []inventory.Package {
	return []inventory.Package{
		{Name: "com.google.android.youtube", Description: "YouTube", Category: "google", Tier: "safe", Status: inventory.Installed},
		{Name: "com.android.systemui", Description: "System UI", Category: "aosp", Tier: "unsafe", Status: inventory.Installed},
		{Name: "com.samsung.android.bixby", Description: inventory.DefaultDescription, Category: "oem", Tier: "advanced", Status: inventory.Uninstalled},
	}
}

// TestListPackages_NoSchema_ReturnsErrNotInitialized verifies that calling
// ListPackages on a fresh DB (no CreateSchema) returns ErrNotInitialized.
func TestListPackages_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	_, err = s.ListPackages()
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListPackages() error = %v; want errors.Is(err, ErrNotInitialized) to be true", err)
	}
}

func TestErrNotInitialized_ErrorMessage(t *testing.T) {
	if !strings.Contains(ErrNotInitialized.Error(), "droidprune scan") {
		t.Errorf("ErrNotInitialized message %q should contain 'droidprune scan'", ErrNotInitialized.Error())
	}
}

func TestOpen_CreatesDirectoryAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "droidprune.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	pkgs, err := s.ListPackages()
	if err != nil {
		t.Fatalf("ListPackages() after Open() failed: %v", err)
	}
	if len(pkgs) != 0 {
		t.Errorf("expected empty cache, got %d packages", len(pkgs))
	}
}

func TestCreateSchema_Idempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateSchema(); err != nil {
		t.Errorf("second CreateSchema() failed: %v", err)
	}
}

func TestSaveInventory(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SaveInventory(samplePackages(), Scan{DeviceSerial: "R58M123", DeviceModel: "SM-G991B"})
	if err != nil {
		t.Fatalf("SaveInventory() failed: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero scan ID")
	}

	pkgs, err := s.ListPackages()
	if err != nil {
		t.Fatalf("ListPackages() failed: %v", err)
	}
	if len(pkgs) != 3 {
		t.Fatalf("expected 3 packages, got %d", len(pkgs))
	}
	// ordered by name
	if pkgs[0].Name != "com.android.systemui" {
		t.Errorf("first package = %s, want com.android.systemui", pkgs[0].Name)
	}

	scan, err := s.LatestScan()
	if err != nil {
		t.Fatalf("LatestScan() failed: %v", err)
	}
	if scan.PackageCount != 3 || scan.DeviceSerial != "R58M123" || scan.DeviceModel != "SM-G991B" {
		t.Errorf("unexpected scan: %+v", scan)
	}
	if time.Since(scan.ScannedAt) > time.Minute {
		t.Errorf("ScannedAt = %v, want now", scan.ScannedAt)
	}
}

func TestSaveInventory_ReplacesPrevious(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.SaveInventory(samplePackages(), Scan{}); err != nil {
		t.Fatalf("SaveInventory() failed: %v", err)
	}
	if _, err := s.SaveInventory(samplePackages()[:1], Scan{}); err != nil {
		t.Fatalf("SaveInventory() failed: %v", err)
	}

	pkgs, err := s.ListPackages()
	if err != nil {
		t.Fatalf("ListPackages() failed: %v", err)
	}
	if len(pkgs) != 1 {
		t.Errorf("expected 1 package after replace, got %d", len(pkgs))
	}
}

func TestLatestScan_None(t *testing.T) {
	s := newTestStore(t)

	scan, err := s.LatestScan()
	if err != nil {
		t.Fatalf("LatestScan() failed: %v", err)
	}
	if scan != nil {
		t.Errorf("LatestScan() = %+v, want nil", scan)
	}
}

func TestRecordOutcomes(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SaveInventory(samplePackages(), Scan{}); err != nil {
		t.Fatalf("SaveInventory() failed: %v", err)
	}

	outcomes := []inventory.Outcome{
		{Name: "com.google.android.youtube", Action: inventory.ActionRemove, From: inventory.Installed, To: inventory.Uninstalled, Kind: inventory.OutcomeApplied},
		{Name: "com.android.systemui", Action: inventory.ActionRemove, From: inventory.Installed, To: inventory.Installed, Kind: inventory.OutcomeSkipped, Reason: "unsafe tier cannot be removed"},
		{Name: "com.samsung.android.bixby", Action: inventory.ActionRestore, From: inventory.Uninstalled, To: inventory.Uninstalled, Kind: inventory.OutcomeFailed, Err: errors.New("Failure [INSTALL_FAILED]")},
	}

	if err := s.RecordOutcomes("batch-1", outcomes); err != nil {
		t.Fatalf("RecordOutcomes() failed: %v", err)
	}

	// Applied outcome updates the cached status; others do not.
	yt := cachedPackage(t, s, "com.google.android.youtube")
	if yt.Status != inventory.Uninstalled {
		t.Errorf("youtube Status = %s, want uninstalled", yt.Status)
	}
	bixby := cachedPackage(t, s, "com.samsung.android.bixby")
	if bixby.Status != inventory.Uninstalled {
		t.Errorf("bixby Status = %s, want uninstalled", bixby.Status)
	}

	batch, err := s.GetBatch("batch-1")
	if err != nil {
		t.Fatalf("GetBatch() failed: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 records, got %d", len(batch))
	}
	if batch[0].Package != "com.google.android.youtube" || batch[0].Outcome != "applied" {
		t.Errorf("unexpected first record: %+v", batch[0])
	}
	if batch[1].Reason == "" {
		t.Error("skipped record should keep its reason")
	}
	if batch[2].Error != "Failure [INSTALL_FAILED]" {
		t.Errorf("failed record Error = %q", batch[2].Error)
	}
}

func TestListActions_NewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)

	for _, batch := range []string{"b1", "b2", "b3"} {
		o := inventory.Outcome{Name: "pkg." + batch, Action: inventory.ActionRemove, From: inventory.Installed, To: inventory.Uninstalled, Kind: inventory.OutcomeApplied}
		if err := s.RecordOutcomes(batch, []inventory.Outcome{o}); err != nil {
			t.Fatalf("RecordOutcomes() failed: %v", err)
		}
	}

	records, err := s.ListActions(2)
	if err != nil {
		t.Fatalf("ListActions() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].BatchID != "b3" || records[1].BatchID != "b2" {
		t.Errorf("unexpected order: %s, %s", records[0].BatchID, records[1].BatchID)
	}

	all, err := s.ListActions(0)
	if err != nil {
		t.Fatalf("ListActions(0) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 records, got %d", len(all))
	}
}

func TestSnapshots(t *testing.T) {
	s := newTestStore(t)

	latest, err := s.LatestSnapshot()
	if err != nil || latest != nil {
		t.Fatalf("LatestSnapshot() on empty db = (%v, %v), want (nil, nil)", latest, err)
	}

	pkgs := []*SnapshotPackage{
		{PackageName: "b.app", Status: "installed", Tier: "safe"},
		{PackageName: "a.app", Status: "uninstalled"},
	}
	id, err := s.InsertSnapshot("before apply", "/tmp/snap.json", pkgs)
	if err != nil {
		t.Fatalf("InsertSnapshot() failed: %v", err)
	}

	snap, err := s.GetSnapshot(id)
	if err != nil {
		t.Fatalf("GetSnapshot() failed: %v", err)
	}
	if snap.Reason != "before apply" || snap.PackageCount != 2 || snap.SnapshotPath != "/tmp/snap.json" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	got, err := s.GetSnapshotPackages(id)
	if err != nil {
		t.Fatalf("GetSnapshotPackages() failed: %v", err)
	}
	if len(got) != 2 || got[0].PackageName != "a.app" || got[1].Tier != "safe" {
		t.Errorf("unexpected snapshot packages: %+v, %+v", got[0], got[1])
	}

	second, err := s.InsertSnapshot("second", "/tmp/snap2.json", nil)
	if err != nil {
		t.Fatalf("InsertSnapshot() failed: %v", err)
	}
	latest, err = s.LatestSnapshot()
	if err != nil || latest.ID != second {
		t.Errorf("LatestSnapshot() = (%v, %v), want ID %d", latest, err, second)
	}

	list, err := s.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots() failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != second {
		t.Errorf("ListSnapshots() should return newest first")
	}

	if _, err := s.GetSnapshot(999); err == nil {
		t.Error("expected error for missing snapshot")
	}
}

func TestInsertSnapshot_FailureLeavesNothing(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.db.Exec(`
		CREATE TRIGGER reject_broken BEFORE INSERT ON snapshot_packages
		WHEN NEW.package_name = 'broken.app'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END
	`); err != nil {
		t.Fatalf("failed to create trigger: %v", err)
	}

	pkgs := []*SnapshotPackage{
		{PackageName: "a.app", Status: "installed", Tier: "safe"},
		{PackageName: "broken.app", Status: "installed"},
		{PackageName: "c.app", Status: "uninstalled"},
	}
	if _, err := s.InsertSnapshot("before apply", "/tmp/snap.json", pkgs); err == nil {
		t.Fatal("expected InsertSnapshot() to fail")
	}

	list, err := s.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots() failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("failed insert left %d snapshot(s)", len(list))
	}

	var rows int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshot_packages`).Scan(&rows); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if rows != 0 {
		t.Errorf("failed insert left %d snapshot package row(s)", rows)
	}
}
