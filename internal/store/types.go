package store

import "time"

// Scan records one successful inventory load.
type Scan struct {
	ID           int64
	ScannedAt    time.Time
	DeviceSerial string
	DeviceModel  string
	PackageCount int
}

// ActionRecord is one journaled package outcome.
type ActionRecord struct {
	ID         int64
	BatchID    string
	Package    string
	Action     string // "remove" or "restore"
	FromStatus string
	ToStatus   string
	Outcome    string // "applied", "failed" or "skipped"
	Reason     string
	Error      string
	CreatedAt  time.Time
}

// Snapshot represents the recorded statuses of a batch's packages before it ran.
type Snapshot struct {
	ID           int64
	CreatedAt    time.Time
	Reason       string
	PackageCount int
	SnapshotPath string
}

// SnapshotPackage represents a package in a snapshot.
type SnapshotPackage struct {
	SnapshotID  int64
	PackageName string
	Status      string
	Tier        string
}
