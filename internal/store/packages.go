package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/blackwell-systems/droidprune/internal/inventory"
)

// SaveInventory replaces the cached inventory with pkgs and records the scan.
func (s *Store) SaveInventory(pkgs []inventory.Package, scan Scan) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM packages`); err != nil {
		return 0, fmt.Errorf("failed to clear packages: %w", checkSchema(err))
	}

	stmt, err := tx.Prepare(`
		INSERT INTO packages (name, description, category, tier, status)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pkgs {
		if _, err := stmt.Exec(p.Name, p.Description, p.Category, p.Tier, string(p.Status)); err != nil {
			return 0, fmt.Errorf("failed to insert package %s: %w", p.Name, err)
		}
	}

	if scan.ScannedAt.IsZero() {
		scan.ScannedAt = time.Now()
	}
	result, err := tx.Exec(`
		INSERT INTO scans (scanned_at, device_serial, device_model, package_count)
		VALUES (?, ?, ?, ?)
	`, scan.ScannedAt.Format(time.RFC3339), scan.DeviceSerial, scan.DeviceModel, len(pkgs))
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get scan ID: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit inventory: %w", err)
	}
	return id, nil
}

// ListPackages returns the cached inventory ordered by name.
func (s *Store) ListPackages() ([]inventory.Package, error) {
	rows, err := s.db.Query(`
		SELECT name, description, category, tier, status
		FROM packages
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", checkSchema(err))
	}
	defer rows.Close()

	var packages []inventory.Package
	for rows.Next() {
		var p inventory.Package
		var status string
		if err := rows.Scan(&p.Name, &p.Description, &p.Category, &p.Tier, &status); err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		p.Status = inventory.Status(status)
		packages = append(packages, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}

	return packages, nil
}

// LatestScan returns the most recent scan, or nil if none was recorded.
func (s *Store) LatestScan() (*Scan, error) {
	var scan Scan
	var scannedAt string
	var serial, model sql.NullString

	err := s.db.QueryRow(`
		SELECT id, scanned_at, device_serial, device_model, package_count
		FROM scans
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&scan.ID, &scannedAt, &serial, &model, &scan.PackageCount)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest scan: %w", checkSchema(err))
	}

	scan.DeviceSerial = serial.String
	scan.DeviceModel = model.String
	scan.ScannedAt, err = time.Parse(time.RFC3339, scannedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scanned_at: %w", err)
	}
	return &scan, nil
}
