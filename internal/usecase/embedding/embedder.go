// Package embedding produces item vectors through a content-addressed cache and a rate-governed encoder.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/domain/item"
	"github.com/kailas-cloud/commentlens/internal/domain/vector"
	"github.com/kailas-cloud/commentlens/internal/logger"
)

// DefaultBatchSize is the encoder's per-request input limit.
const DefaultBatchSize = 100

// Report summarizes one EmbedMany call. Counts are per item.
type Report struct {
	Cached  int
	Encoded int
	Failed  int
	Skipped int
	Batches int
}

// Embedder is a cache-first, batch-oriented vector producer.
// The cache is not synchronized: an Embedder must not be shared across goroutines.
type Embedder struct {
	encoder   domain.TextEncoder
	cache     cache
	limiter   limiter
	batchSize int
	logger    *zap.Logger
}

// New creates an embedder. batchSize <= 0 selects DefaultBatchSize.
func New(encoder domain.TextEncoder, c cache, l limiter, batchSize int, logger *zap.Logger) (*Embedder, error) {
	if encoder == nil {
		return nil, fmt.Errorf("%w: embedder requires an encoder", domain.ErrInvalidConfig)
	}
	if c == nil || l == nil {
		return nil, fmt.Errorf("%w: embedder requires a cache and a limiter", domain.ErrInvalidConfig)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		encoder:   encoder,
		cache:     c,
		limiter:   l,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// slot is one unique text waiting to be encoded and the items that share it.
type slot struct {
	hash  string
	text  string
	items []*item.Item
}

// EmbedMany assigns a vector to every item with content, encoding only cache misses
// (or everything when forceRefresh is set). Failed batches are logged and skipped;
// their items stay vector-less. The cache is saved once at the end.
func (e *Embedder) EmbedMany(ctx context.Context, items []*item.Item, forceRefresh bool) (Report, error) {
	var rep Report
	log := logger.FromContextOr(ctx, e.logger)

	slots := make([]*slot, 0)
	byHash := make(map[string]*slot)
	for _, it := range items {
		text := it.Content()
		if text == "" {
			rep.Skipped++
			continue
		}
		hash := domain.HashText(text)
		if !forceRefresh {
			if v, ok := e.cache.Get(hash); ok {
				it.SetVector(v)
				rep.Cached++
				continue
			}
		}
		s, ok := byHash[hash]
		if !ok {
			s = &slot{hash: hash, text: text}
			byHash[hash] = s
			slots = append(slots, s)
		}
		s.items = append(s.items, it)
	}

	err := e.encodeSlots(ctx, slots, &rep, log)

	// Encoded vectors are persisted even when the run was interrupted.
	if saveErr := e.cache.Save(context.WithoutCancel(ctx)); saveErr != nil {
		log.Warn("Failed to save embedding cache", zap.Error(saveErr))
	}

	if err != nil {
		return rep, err
	}

	log.Info("Embedding completed",
		zap.Int("items", len(items)),
		zap.Int("cached", rep.Cached),
		zap.Int("encoded", rep.Encoded),
		zap.Int("failed", rep.Failed),
		zap.Int("skipped", rep.Skipped),
		zap.Int("batches", rep.Batches),
	)
	return rep, nil
}

func (e *Embedder) encodeSlots(ctx context.Context, slots []*slot, rep *Report, log *zap.Logger) error {
	for start := 0; start < len(slots); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("embed: %w", err)
		}

		batch := slots[start:min(start+e.batchSize, len(slots))]
		batchNo := start / e.batchSize
		rep.Batches++

		vecs, err := e.encodeBatch(ctx, batch)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("embed batch %d: %w", batchNo, ctxErr)
			}
			if errors.Is(err, domain.ErrInvalidCredentials) {
				return fmt.Errorf("embed batch %d: %w", batchNo, err)
			}
			failed := 0
			for _, s := range batch {
				failed += len(s.items)
			}
			rep.Failed += failed
			log.Error("Embedding batch failed, skipping",
				zap.Int("batch", batchNo),
				zap.Int("texts", len(batch)),
				zap.Int("items", failed),
				zap.Error(err),
			)
			continue
		}

		for i, s := range batch {
			v := vector.Vector(vecs[i])
			e.cache.Set(s.hash, v)
			for _, it := range s.items {
				it.SetVector(v)
				rep.Encoded++
			}
		}
	}
	return nil
}

func (e *Embedder) encodeBatch(ctx context.Context, batch []*slot) ([][]float32, error) {
	texts := make([]string, len(batch))
	chars := 0
	for i, s := range batch {
		texts[i] = s.text
		chars += utf8.RuneCountInString(s.text)
	}

	if err := e.limiter.Acquire(ctx, domain.EstimateTokens(chars)); err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}

	res, err := e.encoder.Encode(ctx, texts)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller with batch number
	}
	if len(res.Vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts",
			domain.ErrEncoderFailure, len(res.Vectors), len(texts))
	}
	return res.Vectors, nil
}

// EmbedOne returns the vector for a single text, cache first.
// Unlike EmbedMany, encoder failures are returned to the caller.
func (e *Embedder) EmbedOne(ctx context.Context, text string) (vector.Vector, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidSpec)
	}
	hash := domain.HashText(text)
	if v, ok := e.cache.Get(hash); ok {
		return v, nil
	}

	if err := e.limiter.Acquire(ctx, domain.EstimateTokens(utf8.RuneCountInString(text))); err != nil {
		return nil, fmt.Errorf("embed one: acquire: %w", err)
	}
	res, err := e.encoder.Encode(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed one: %w", err)
	}
	if len(res.Vectors) != 1 {
		return nil, fmt.Errorf("embed one: %w: got %d vectors", domain.ErrEncoderFailure, len(res.Vectors))
	}

	v := vector.Vector(res.Vectors[0])
	e.cache.Set(hash, v)
	return v, nil
}

// Checkpoint persists the cache. EmbedOne results are only durable after a checkpoint.
func (e *Embedder) Checkpoint(ctx context.Context) error {
	if err := e.cache.Save(ctx); err != nil {
		return fmt.Errorf("checkpoint embedding cache: %w", err)
	}
	return nil
}
