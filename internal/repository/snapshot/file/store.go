// Package file persists the embedding cache snapshot as a single file on local disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/commentlens/internal/domain"
)

// DefaultName is the snapshot file name inside the cache directory.
const DefaultName = "embeddings.bin"

// Store writes the snapshot atomically via a temp file and rename.
type Store struct {
	dir  string
	path string
}

// New creates a store rooted at dir. The directory is created on first Save.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: cache dir is empty", domain.ErrInvalidConfig)
	}
	return &Store{dir: dir, path: filepath.Join(dir, DefaultName)}, nil
}

// Path returns the snapshot file path.
func (s *Store) Path() string { return s.path }

// Load reads the snapshot or returns domain.ErrSnapshotNotFound.
func (s *Store) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	return data, nil
}

// Save replaces the snapshot. Readers never observe a partially written file.
func (s *Store) Save(_ context.Context, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, DefaultName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Remove deletes the snapshot file if present.
func (s *Store) Remove(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove snapshot %s: %w", s.path, err)
	}
	return nil
}

// Ping verifies the cache directory is usable.
func (s *Store) Ping(_ context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("cache dir %s: %w", s.dir, err)
	}
	return nil
}
