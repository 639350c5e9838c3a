package store

import (
	"database/sql"
	"fmt"
	"time"
)

// InsertSnapshot records a snapshot and its packages in one transaction and
// returns the snapshot ID. Either every row is written or none is.
func (s *Store) InsertSnapshot(reason, path string, pkgs []*SnapshotPackage) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO snapshots (created_at, reason, package_count, snapshot_path)
		VALUES (?, ?, ?, ?)
	`, time.Now().Format(time.RFC3339), reason, len(pkgs), path)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", checkSchema(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get snapshot ID: %w", err)
	}

	for _, pkg := range pkgs {
		_, err := tx.Exec(`
			INSERT INTO snapshot_packages (snapshot_id, package_name, status, tier)
			VALUES (?, ?, ?, ?)
		`, id, pkg.PackageName, pkg.Status, pkg.Tier)
		if err != nil {
			return 0, fmt.Errorf("failed to insert snapshot package %s: %w", pkg.PackageName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return id, nil
}

// GetSnapshot retrieves a snapshot by ID.
func (s *Store) GetSnapshot(id int64) (*Snapshot, error) {
	query := `
		SELECT id, created_at, reason, package_count, snapshot_path
		FROM snapshots
		WHERE id = ?
	`

	snapshot, err := scanSnapshot(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %d: %w", id, checkSchema(err))
	}
	return snapshot, nil
}

// LatestSnapshot returns the newest snapshot, or nil if there is none.
func (s *Store) LatestSnapshot() (*Snapshot, error) {
	query := `
		SELECT id, created_at, reason, package_count, snapshot_path
		FROM snapshots
		ORDER BY id DESC
		LIMIT 1
	`

	snapshot, err := scanSnapshot(s.db.QueryRow(query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", checkSchema(err))
	}
	return snapshot, nil
}

// ListSnapshots returns all snapshots, newest first.
func (s *Store) ListSnapshots() ([]*Snapshot, error) {
	query := `
		SELECT id, created_at, reason, package_count, snapshot_path
		FROM snapshots
		ORDER BY id DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", checkSchema(err))
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var snapshot Snapshot
	var createdAt string
	var reason sql.NullString

	err := row.Scan(
		&snapshot.ID,
		&createdAt,
		&reason,
		&snapshot.PackageCount,
		&snapshot.SnapshotPath,
	)
	if err != nil {
		return nil, err
	}

	snapshot.Reason = reason.String
	snapshot.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for snapshot %d: %w", snapshot.ID, err)
	}
	return &snapshot, nil
}

// GetSnapshotPackages returns all packages in a snapshot.
func (s *Store) GetSnapshotPackages(snapshotID int64) ([]*SnapshotPackage, error) {
	query := `
		SELECT snapshot_id, package_name, status, tier
		FROM snapshot_packages
		WHERE snapshot_id = ?
		ORDER BY package_name
	`

	rows, err := s.db.Query(query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot packages: %w", checkSchema(err))
	}
	defer rows.Close()

	var packages []*SnapshotPackage
	for rows.Next() {
		var pkg SnapshotPackage
		var tier sql.NullString
		if err := rows.Scan(&pkg.SnapshotID, &pkg.PackageName, &pkg.Status, &tier); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot package row: %w", err)
		}
		pkg.Tier = tier.String
		packages = append(packages, &pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot packages: %w", err)
	}

	return packages, nil
}
