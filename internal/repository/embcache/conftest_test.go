package embcache

import (
	"context"

	"github.com/kailas-cloud/commentlens/internal/domain"
)

// mockSnapshotStore implements the consumer interface for tests.
type mockSnapshotStore struct {
	data      []byte
	loadErr   error
	saveErr   error
	removeErr error
	saves     int
	removed   bool
}

func (m *mockSnapshotStore) Load(_ context.Context) ([]byte, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return m.data, nil
}

func (m *mockSnapshotStore) Save(_ context.Context, data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *mockSnapshotStore) Remove(_ context.Context) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = true
	m.data = nil
	return nil
}
