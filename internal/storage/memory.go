package storage

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryBackend is an in-process Backend using exact cosine similarity.
// Equal scores are ordered most recently upserted first.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	seq     uint64
}

type memoryEntry struct {
	doc EmbeddedDocument
	seq uint64
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
	}
}

// Upsert stores docs, replacing entries with the same ID.
func (m *MemoryBackend) Upsert(ctx context.Context, docs []EmbeddedDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, doc := range docs {
		m.seq++
		vector := make([]float32, len(doc.Vector))
		copy(vector, doc.Vector)
		doc.Vector = vector
		m.entries[doc.ID] = memoryEntry{doc: doc, seq: m.seq}
	}
	return nil
}

// Query scores every entry matching filter against vector.
func (m *MemoryBackend) Query(ctx context.Context, vector []float32, limit int, threshold float64, filter Filter) ([]SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		entry memoryEntry
		score float64
	}

	var results []scored
	for _, entry := range m.entries {
		if !filter.Matches(entry.doc.Metadata) {
			continue
		}
		score := cosineSimilarity(vector, entry.doc.Vector)
		if score < threshold {
			continue
		}
		results = append(results, scored{entry: entry, score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].entry.seq > results[j].entry.seq
	})

	if len(results) > limit {
		results = results[:limit]
	}

	hits := make([]SearchHit, len(results))
	for i, r := range results {
		hits[i] = SearchHit{
			ID:       r.entry.doc.ID,
			Content:  r.entry.doc.Content,
			Score:    r.score,
			Metadata: copyMetadata(r.entry.doc.Metadata),
		}
	}
	return hits, nil
}

// Delete removes ids.
func (m *MemoryBackend) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

// Count returns the number of entries.
func (m *MemoryBackend) Count(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.entries)), nil
}

// Health always succeeds.
func (m *MemoryBackend) Health(ctx context.Context) error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
