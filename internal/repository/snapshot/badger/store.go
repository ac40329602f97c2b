// Package badger persists the embedding cache snapshot in an embedded badger database.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
)

// DefaultKey is the badger key holding the snapshot.
const DefaultKey = domain.KeyPrefix + "emb_cache:snapshot"

// Store keeps one snapshot blob under a single key.
type Store struct {
	db  *badger.DB
	key []byte
}

// zapAdapter adapts zap.Logger to the badger.Logger interface.
type zapAdapter struct {
	logger *zap.SugaredLogger
}

var _ badger.Logger = (*zapAdapter)(nil)

func (a *zapAdapter) Errorf(msg string, items ...any)   { a.logger.Errorf(msg, items...) }
func (a *zapAdapter) Warningf(msg string, items ...any) { a.logger.Warnf(msg, items...) }
func (a *zapAdapter) Infof(msg string, items ...any)    { a.logger.Debugf(msg, items...) }
func (a *zapAdapter) Debugf(msg string, items ...any)   { a.logger.Debugf(msg, items...) }

// Open opens (creating if needed) a badger database at dir.
// An empty dir opens an in-memory database.
func Open(dir, key string, logger *zap.Logger) (*Store, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &zapAdapter{logger: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	if key == "" {
		key = DefaultKey
	}
	return &Store{db: db, key: []byte(key)}, nil
}

// Load returns the stored snapshot or domain.ErrSnapshotNotFound.
func (s *Store) Load(_ context.Context) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		it, err := txn.Get(s.key)
		if err != nil {
			return err //nolint:wrapcheck // mapped below
		}
		data, err = it.ValueCopy(nil)
		return err //nolint:wrapcheck // mapped below
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("badger load snapshot: %w", err)
	}
	return data, nil
}

// Save overwrites the snapshot.
func (s *Store) Save(_ context.Context, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, data)
	})
	if err != nil {
		return fmt.Errorf("badger save snapshot: %w", err)
	}
	return nil
}

// Remove deletes the snapshot. Removing a missing snapshot is not an error.
func (s *Store) Remove(_ context.Context) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key)
	})
	if err != nil {
		return fmt.Errorf("badger remove snapshot: %w", err)
	}
	return nil
}

// Ping reports whether the database is open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("badger database closed")
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}
