package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/blackwell-systems/droidprune/internal/inventory"
)

// RecordOutcomes journals every outcome under batchID and updates the cached
// status of applied packages.
func (s *Store) RecordOutcomes(batchID string, outcomes []inventory.Outcome) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Format(time.RFC3339)
	for _, o := range outcomes {
		var errText string
		if o.Err != nil {
			errText = o.Err.Error()
		}

		_, err := tx.Exec(`
			INSERT INTO actions (batch_id, package, action, from_status, to_status, outcome, reason, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, batchID, o.Name, string(o.Action), string(o.From), string(o.To), string(o.Kind), o.Reason, errText, now)
		if err != nil {
			return fmt.Errorf("failed to record action for %s: %w", o.Name, checkSchema(err))
		}

		if o.Kind != inventory.OutcomeApplied {
			continue
		}
		if _, err := tx.Exec(`UPDATE packages SET status = ? WHERE name = ?`, string(o.To), o.Name); err != nil {
			return fmt.Errorf("failed to update package %s: %w", o.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit actions: %w", err)
	}
	return nil
}

// ListActions returns the most recent journal entries, newest first.
// A limit of zero or less returns every entry.
func (s *Store) ListActions(limit int) ([]*ActionRecord, error) {
	query := `
		SELECT id, batch_id, package, action, from_status, to_status, outcome, reason, error, created_at
		FROM actions
		ORDER BY id DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.queryActions(query, args...)
}

// GetBatch returns the journal entries of one batch in the order they ran.
func (s *Store) GetBatch(batchID string) ([]*ActionRecord, error) {
	return s.queryActions(`
		SELECT id, batch_id, package, action, from_status, to_status, outcome, reason, error, created_at
		FROM actions
		WHERE batch_id = ?
		ORDER BY id
	`, batchID)
}

func (s *Store) queryActions(query string, args ...any) ([]*ActionRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", checkSchema(err))
	}
	defer rows.Close()

	var records []*ActionRecord
	for rows.Next() {
		var r ActionRecord
		var reason, errText sql.NullString
		var createdAt string

		err := rows.Scan(
			&r.ID,
			&r.BatchID,
			&r.Package,
			&r.Action,
			&r.FromStatus,
			&r.ToStatus,
			&r.Outcome,
			&reason,
			&errText,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}

		r.Reason = reason.String
		r.Error = errText.String
		r.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for action %d: %w", r.ID, err)
		}

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return records, nil
}
