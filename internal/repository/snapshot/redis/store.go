// Package redis shares the embedding cache snapshot between workers through a key-value store.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/commentlens/internal/db"
	"github.com/kailas-cloud/commentlens/internal/domain"
)

// DefaultKey is the key holding the snapshot blob.
const DefaultKey = domain.KeyPrefix + "emb_cache:snapshot"

// Store keeps the snapshot under one key.
type Store struct {
	kv  db.KVStore
	key string
}

// New creates a snapshot store over kv. An empty key selects DefaultKey.
func New(kv db.KVStore, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: kv, key: key}
}

// Load returns the snapshot or domain.ErrSnapshotNotFound.
func (s *Store) Load(ctx context.Context) ([]byte, error) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("load snapshot %s: %w", s.key, err)
	}
	return data, nil
}

// Save overwrites the snapshot.
func (s *Store) Save(ctx context.Context, data []byte) error {
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("save snapshot %s: %w", s.key, err)
	}
	return nil
}

// Remove deletes the snapshot key.
func (s *Store) Remove(ctx context.Context) error {
	if err := s.kv.Del(ctx, s.key); err != nil {
		return fmt.Errorf("remove snapshot %s: %w", s.key, err)
	}
	return nil
}
