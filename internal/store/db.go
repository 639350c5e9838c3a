package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotInitialized is returned when the database has no schema yet.
var ErrNotInitialized = errors.New("database not initialized: run 'droidprune scan' first")

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
}

// Store is the local cache of the last scanned inventory, the action
// journal and the snapshot index.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath without creating its schema. Queries on
// a database that was never initialized fail with ErrNotInitialized.
// ":memory:" gives a private in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return &Store{db: db}, nil
}

// Open creates the parent directory of dbPath if needed, opens the database
// and makes sure the schema exists.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.CreateSchema(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateSchema creates the tables and indexes. It is safe to call on an
// existing database.
func (s *Store) CreateSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// checkSchema maps sqlite's missing-table error to ErrNotInitialized.
func checkSchema(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return ErrNotInitialized
	}
	return err
}
