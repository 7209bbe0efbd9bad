//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

// setupTestBackend connects to a local Qdrant with a throwaway collection.
// Skips test if Qdrant is not running.
func setupTestBackend(t *testing.T) *QdrantBackend {
	t.Helper()
	backend, err := NewQdrantBackend(QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "test_" + uuid.New().String(),
		Dimension:  testDimension,
	})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	require.NoError(t, backend.EnsureCollection(context.Background()), "Failed to ensure collection")
	t.Cleanup(func() {
		_ = backend.DropCollection(context.Background())
		backend.Close()
	})
	return backend
}

func axis(i int) []float32 {
	v := make([]float32, testDimension)
	v[i] = 1
	return v
}

func TestQdrant_UpsertQueryRoundTrip(t *testing.T) {
	backend := setupTestBackend(t)
	idx, err := NewIndex(backend, IndexConfig{Dimension: testDimension})
	require.NoError(t, err)
	ctx := context.Background()

	err = idx.Upsert(ctx, []EmbeddedDocument{
		{
			ID:      "hypertension.md#0:0",
			Vector:  axis(0),
			Content: "Hypertension is elevated blood pressure.",
			Metadata: map[string]any{
				"title":       "Hypertension",
				"chunk_index": 0,
				"credibility": 0.8,
			},
		},
		{ID: "asthma.md#0:0", Vector: axis(1), Content: "Asthma affects the airways."},
	})
	require.NoError(t, err)

	hits, err := idx.Query(ctx, axis(0), 5, 0.5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "hypertension.md#0:0", hits[0].ID)
	assert.Equal(t, "Hypertension is elevated blood pressure.", hits[0].Content)
	assert.Equal(t, "Hypertension", hits[0].Metadata["title"])
	assert.Equal(t, int64(0), hits[0].Metadata["chunk_index"])
	assert.InDelta(t, 1.0, hits[0].Score, 1e-4)
}

func TestQdrant_IdempotentUpsertAndDelete(t *testing.T) {
	backend := setupTestBackend(t)
	idx, err := NewIndex(backend, IndexConfig{Dimension: testDimension})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := idx.Upsert(ctx, []EmbeddedDocument{
			{ID: "same-id", Vector: axis(2), Content: fmt.Sprintf("version %d", i)},
		})
		require.NoError(t, err)
	}

	hits, err := idx.Query(ctx, axis(2), 5, 0, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "version 1", hits[0].Content)

	require.NoError(t, idx.Delete(ctx, []string{"same-id"}))
	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.Count)
}

func TestQdrant_Filter(t *testing.T) {
	backend := setupTestBackend(t)
	idx, err := NewIndex(backend, IndexConfig{Dimension: testDimension})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []EmbeddedDocument{
		{ID: "a", Vector: axis(3), Metadata: map[string]any{"specialty": "cardiology"}},
		{ID: "b", Vector: axis(3), Metadata: map[string]any{"specialty": "neurology"}},
	}))

	hits, err := idx.Query(ctx, axis(3), 5, 0, Filter{"specialty": "cardiology"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}
