// Package storage provides the vector index and its backends.
package storage

import (
	"context"
	"fmt"
	"sort"
)

const (
	// DefaultMaxBatchSize is the number of documents sent to the backend per upsert.
	DefaultMaxBatchSize = 100

	// deleteBatchSize is the number of ids sent to the backend per delete.
	deleteBatchSize = 1000
)

// Backend is the external vector database.
type Backend interface {
	Upsert(ctx context.Context, docs []EmbeddedDocument) error
	Query(ctx context.Context, vector []float32, limit int, threshold float64, filter Filter) ([]SearchHit, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (uint64, error)
	Health(ctx context.Context) error
}

// IndexConfig configures an Index.
type IndexConfig struct {
	Dimension    int    // Required vector dimension
	MaxBatchSize int    // Defaults to DefaultMaxBatchSize
	Capacity     uint64 // Optional, used for Stats.Fullness
}

// Index validates vectors against a fixed dimension and applies score
// filtering and ordering on top of a Backend. It holds no mutable state and is
// safe for concurrent use.
type Index struct {
	backend   Backend
	dimension int
	batchSize int
	capacity  uint64
}

// NewIndex creates an index over backend.
func NewIndex(backend Backend, cfg IndexConfig) (*Index, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	return &Index{
		backend:   backend,
		dimension: cfg.Dimension,
		batchSize: cfg.MaxBatchSize,
		capacity:  cfg.Capacity,
	}, nil
}

// Dimension returns the vector dimension the index accepts.
func (i *Index) Dimension() int {
	return i.dimension
}

// Upsert stores docs, replacing any entry with the same ID. The whole batch is
// validated before anything is sent; a failed backend batch fails the call.
// Retrying is safe because upsert is idempotent by ID.
func (i *Index) Upsert(ctx context.Context, docs []EmbeddedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	prepared := make([]EmbeddedDocument, len(docs))
	for n, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("%w: document %d has no id", ErrInvalidDocument, n)
		}
		if len(doc.Vector) != i.dimension {
			return fmt.Errorf("%w: document %q has %d dimensions, expected %d",
				ErrDimensionMismatch, doc.ID, len(doc.Vector), i.dimension)
		}
		metadata, err := NormalizeMetadata(doc.Metadata)
		if err != nil {
			return err
		}
		doc.Metadata = metadata
		prepared[n] = doc
	}

	for start := 0; start < len(prepared); start += i.batchSize {
		end := min(start+i.batchSize, len(prepared))
		if err := i.backend.Upsert(ctx, prepared[start:end]); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}

	return nil
}

// Query returns at most k hits scoring at least threshold, best first.
// An empty result is not an error.
func (i *Index) Query(ctx context.Context, vector []float32, k int, threshold float64, filter Filter) ([]SearchHit, error) {
	if len(vector) != i.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), i.dimension)
	}
	if k <= 0 {
		return []SearchHit{}, nil
	}

	results, err := i.backend.Query(ctx, vector, k, threshold, filter)
	if err != nil {
		return nil, fmt.Errorf("query backend: %w", err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, hit := range results {
		hit.Score = clampScore(hit.Score)
		if hit.Score < threshold {
			continue
		}
		hits = append(hits, hit)
	}

	// Stable keeps the backend's order for equal scores.
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes the given ids. Unknown ids are ignored.
func (i *Index) Delete(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))
		if err := i.backend.Delete(ctx, ids[start:end]); err != nil {
			return fmt.Errorf("delete batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Stats reports entry count, dimension and fullness.
func (i *Index) Stats(ctx context.Context) (*Stats, error) {
	count, err := i.backend.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}

	stats := &Stats{
		Count:     count,
		Dimension: i.dimension,
	}
	if i.capacity > 0 {
		stats.Fullness = float64(count) / float64(i.capacity)
	}
	return stats, nil
}

// Health checks the backend.
func (i *Index) Health(ctx context.Context) error {
	return i.backend.Health(ctx)
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}
