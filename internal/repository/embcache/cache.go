package embcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/domain/vector"
)

// snapshotStore is the consumer interface for whole-map persistence (ISP).
// Load returns domain.ErrSnapshotNotFound when nothing was saved yet.
type snapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Remove(ctx context.Context) error
}

// Cache maps text hashes to vectors in memory and persists the whole map as one snapshot.
// Not safe for concurrent writers: callers sharing an instance must serialize access.
type Cache struct {
	entries    map[string]vector.Vector
	store      snapshotStore
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	hits       int
	misses     int
}

// New creates an empty cache. store may be nil for a process-lifetime cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(store snapshotStore, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{
		entries:    make(map[string]vector.Vector),
		store:      store,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Load replaces the in-memory map with the stored snapshot. Best-effort: a missing
// or unreadable snapshot leaves the cache empty and is only logged.
func (c *Cache) Load(ctx context.Context) {
	c.entries = make(map[string]vector.Vector)
	if c.store == nil {
		return
	}

	data, err := c.store.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			c.logger.Info("No embedding cache snapshot, starting empty")
		} else {
			c.logger.Warn("Failed to read embedding cache snapshot, starting empty", zap.Error(err))
		}
		return
	}

	entries, err := decodeSnapshot(data)
	if err != nil {
		c.logger.Warn("Corrupt embedding cache snapshot, starting empty",
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		return
	}

	c.entries = entries
	c.logger.Info("Embedding cache loaded", zap.Int("entries", len(entries)))
}

// Get returns the vector cached under hash.
func (c *Cache) Get(hash string) (vector.Vector, bool) {
	v, ok := c.entries[hash]
	if ok {
		c.hits++
		c.inc("hit")
	} else {
		c.misses++
		c.inc("miss")
	}
	return v, ok
}

// Set stores v under hash, overwriting any previous value.
func (c *Cache) Set(hash string, v vector.Vector) {
	c.entries[hash] = v
}

// Save overwrites the stored snapshot with the current map.
func (c *Cache) Save(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	data := encodeSnapshot(c.entries)
	if err := c.store.Save(ctx, data); err != nil {
		return fmt.Errorf("save embedding cache (%d entries): %w", len(c.entries), err)
	}
	c.logger.Debug("Embedding cache saved",
		zap.Int("entries", len(c.entries)),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Clear empties the map and removes the stored snapshot.
func (c *Cache) Clear(ctx context.Context) error {
	c.entries = make(map[string]vector.Vector)
	c.hits, c.misses = 0, 0
	if c.store == nil {
		return nil
	}
	if err := c.store.Remove(ctx); err != nil {
		return fmt.Errorf("remove embedding cache snapshot: %w", err)
	}
	return nil
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int { return len(c.entries) }

// Stats reports cache size and lookup counters since creation or the last Clear.
type Stats struct {
	Entries int
	Hits    int
	Misses  int
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	return Stats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
