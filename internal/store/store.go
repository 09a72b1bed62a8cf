package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stockwatch/internal/core"
)

// ErrCorruptState is returned by Load when the persisted record exists but
// cannot be decoded. Callers treat it as an absent record.
var ErrCorruptState = errors.New("corrupt state")

// Supported backends
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// StateStore persists the single de-duplication record
type StateStore interface {
	Load(ctx context.Context) (core.State, error)
	Save(ctx context.Context, state core.State) error
	Reset(ctx context.Context) error
	Close() error
}

// Open returns the store for backend. path is a file path, or a connection
// string for postgres.
func Open(backend, path string) (StateStore, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(path), nil
	case BackendSQLite:
		return NewSQLiteStore(path)
	case BackendPostgres:
		return NewPostgresStore(path)
	default:
		return nil, fmt.Errorf("unknown state backend: %s", backend)
	}
}

// FileStore keeps the state as a small JSON document
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store. Nothing is touched on disk until
// the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the state file
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the state file. A missing file is an empty state.
func (s *FileStore) Load(ctx context.Context) (core.State, error) {
	if err := ctx.Err(); err != nil {
		return core.State{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.State{}, nil
		}
		return core.State{}, fmt.Errorf("failed to read state file %s: %w", s.path, err)
	}

	var state core.State
	if err := json.Unmarshal(data, &state); err != nil {
		return core.State{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, s.path, err)
	}
	return state, nil
}

// Save writes state through a temp file in the same directory and renames it
// over the previous file.
func (s *FileStore) Save(ctx context.Context, state core.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".stockwatch-state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace state file %s: %w", s.path, err)
	}
	return nil
}

// Reset removes the state file. Removing a missing file is not an error.
func (s *FileStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove state file %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op for the file backend
func (s *FileStore) Close() error {
	return nil
}
