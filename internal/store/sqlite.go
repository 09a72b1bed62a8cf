package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"stockwatch/internal/core"
)

// SQLiteStore keeps the state as a single row in a SQLite database
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu          sync.Mutex
	initialized bool
}

// NewSQLiteStore opens (lazily) the database at path. The schema is created
// on first use, so an unreadable file surfaces from Load as ErrCorruptState
// instead of failing construction.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db, path: path}, nil
}

// initialize creates the state table. A failed attempt is retried on the
// next call since the file may only have been locked.
func (s *SQLiteStore) initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	stateTable := `
	CREATE TABLE IF NOT EXISTS watch_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_hash TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);`
	if _, err := s.db.ExecContext(ctx, stateTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	s.initialized = true
	return nil
}

// Load reads the state row. No row is an empty state.
func (s *SQLiteStore) Load(ctx context.Context) (core.State, error) {
	if err := s.initialize(ctx); err != nil {
		return core.State{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, s.path, err)
	}

	var state core.State
	row := s.db.QueryRowContext(ctx, `SELECT last_hash, updated_at FROM watch_state WHERE id = 1`)
	err := row.Scan(&state.LastHash, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.State{}, nil
	}
	if err != nil {
		return core.State{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, s.path, err)
	}
	return state, nil
}

// Save replaces the state row
func (s *SQLiteStore) Save(ctx context.Context, state core.State) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	query := `
	INSERT OR REPLACE INTO watch_state (id, last_hash, updated_at)
	VALUES (1, ?, ?)`

	if _, err := s.db.ExecContext(ctx, query, state.LastHash, state.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Reset deletes the state row
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM watch_state`); err != nil {
		return fmt.Errorf("failed to reset state: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
