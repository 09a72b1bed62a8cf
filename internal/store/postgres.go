package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq" // Postgres driver

	"stockwatch/internal/core"
)

// PostgresStore keeps the state as a single row in PostgreSQL, for
// deployments where several hosts take turns running passes.
type PostgresStore struct {
	db *sql.DB

	mu          sync.Mutex
	initialized bool
}

// NewPostgresStore opens a connection pool for connectionString. No
// connection is made until the first Load or Save.
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// initialize creates the state table once per store. A failed attempt is
// retried on the next call since the database may have been unreachable.
func (s *PostgresStore) initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	stateTable := `
	CREATE TABLE IF NOT EXISTS watch_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_hash TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, stateTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	s.initialized = true
	return nil
}

// Ping verifies the database is reachable
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load reads the state row. No row is an empty state.
func (s *PostgresStore) Load(ctx context.Context) (core.State, error) {
	if err := s.initialize(ctx); err != nil {
		return core.State{}, err
	}

	var state core.State
	row := s.db.QueryRowContext(ctx, `SELECT last_hash, updated_at FROM watch_state WHERE id = 1`)
	err := row.Scan(&state.LastHash, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.State{}, nil
	}
	if err != nil {
		return core.State{}, fmt.Errorf("failed to load state: %w", err)
	}
	return state, nil
}

// Save upserts the state row
func (s *PostgresStore) Save(ctx context.Context, state core.State) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO watch_state (id, last_hash, updated_at)
	VALUES (1, $1, $2)
	ON CONFLICT (id) DO UPDATE SET last_hash = EXCLUDED.last_hash, updated_at = EXCLUDED.updated_at`

	if _, err := s.db.ExecContext(ctx, query, state.LastHash, state.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Reset deletes the state row
func (s *PostgresStore) Reset(ctx context.Context) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM watch_state`); err != nil {
		return fmt.Errorf("failed to reset state: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
