package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/medrag/internal/chunker"
	"github.com/bull/medrag/internal/markdown"
	"github.com/bull/medrag/internal/source"
	"github.com/bull/medrag/internal/storage"
	"github.com/bull/medrag/internal/tokenizer"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  string // Any batch containing this substring fails
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.fail != "" && strings.Contains(text, f.fail) {
			return nil, errors.New("embedding provider rejected input")
		}
		out[i] = []float32{1, float32(len(text) % 7), 0}
	}
	return out, nil
}

type testEnv struct {
	pipeline *Pipeline
	backend  *storage.MemoryBackend
	embedder *fakeEmbedder
}

func newTestEnv(t *testing.T, src source.Source, cfg Config) *testEnv {
	t.Helper()

	tok, err := tokenizer.NewTiktoken("")
	require.NoError(t, err)

	backend := storage.NewMemoryBackend()
	index, err := storage.NewIndex(backend, storage.IndexConfig{Dimension: 3})
	require.NoError(t, err)

	embedder := &fakeEmbedder{}
	p, err := NewPipeline(src, markdown.NewSplitter(), chunker.New(tok), embedder, index, cfg, nil)
	require.NoError(t, err)

	return &testEnv{pipeline: p, backend: backend, embedder: embedder}
}

func defaultConfig() Config {
	return Config{ChunkSizeTokens: 1000, ChunkOverlapTokens: 200}
}

func (env *testEnv) count(t *testing.T) uint64 {
	t.Helper()
	n, err := env.backend.Count(context.Background())
	require.NoError(t, err)
	return n
}

func (env *testEnv) hitsFor(t *testing.T, path string) []storage.SearchHit {
	t.Helper()
	hits, err := env.backend.Query(context.Background(), []float32{1, 0, 0}, 100, 0, storage.Filter{"source": path})
	require.NoError(t, err)
	return hits
}

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestPipeline_IndexAllSamples(t *testing.T) {
	env := newTestEnv(t, source.NewSampleSource(), defaultConfig())

	result, err := env.pipeline.IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalDocs)
	assert.Equal(t, 3, result.SuccessfulDocs)
	assert.Empty(t, result.FailedDocs)
	assert.Equal(t, "builtin-1", result.Revision)
	assert.Equal(t, 3, result.TotalChunks)
	assert.Equal(t, uint64(3), env.count(t))

	hits := env.hitsFor(t, "sample_diabetes_guide.txt")
	require.Len(t, hits, 1)
	hit := hits[0]
	assert.Equal(t, "sample_diabetes_guide.txt#0:0", hit.ID)
	assert.True(t, strings.HasPrefix(hit.Content, "Type 2 diabetes is a chronic metabolic disorder"))

	meta := hit.Metadata
	assert.Equal(t, "Type 2 Diabetes Management", meta["title"])
	assert.Equal(t, "sample_diabetes_guide.txt", meta["source"])
	assert.Equal(t, "", meta["section"])
	assert.Equal(t, int64(0), meta["chunk_index"])
	assert.Equal(t, int64(1), meta["total_chunks"])
	assert.Equal(t, "endocrinology", meta["specialty"])
	assert.Equal(t, "diabetes, glucose, insulin, blood sugar", meta["keywords"])
	assert.InDelta(t, 0.9, meta["credibility_score"], 1e-9)
	assert.Equal(t, "builtin-1", meta["revision"])
	assert.NotEmpty(t, meta["date_indexed"])
	assert.IsType(t, float64(0), meta["credibility_score"])
}

func TestPipeline_MarkdownSectionsAndTitle(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "asthma.md", "# Asthma\n\nAirway inflammation.\n\n## Treatment\n\nInhaled steroids.\n")
	writeDoc(t, root, "notes/heart_failure.txt", "The heart cannot pump enough blood.")

	src, err := source.NewDirSource(root)
	require.NoError(t, err)
	env := newTestEnv(t, src, defaultConfig())

	result, err := env.pipeline.IndexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessfulDocs)
	assert.Equal(t, 3, result.TotalChunks)

	hits := env.hitsFor(t, "asthma.md")
	require.Len(t, hits, 2)
	byID := map[string]storage.SearchHit{}
	for _, h := range hits {
		byID[h.ID] = h
	}
	require.Contains(t, byID, "asthma.md#0:0")
	require.Contains(t, byID, "asthma.md#1:0")
	assert.Equal(t, "# Asthma > ## Treatment", byID["asthma.md#1:0"].Metadata["section"])
	assert.Equal(t, "# Asthma > ## Treatment\n\nInhaled steroids.", byID["asthma.md#1:0"].Content)
	assert.Equal(t, "Asthma", byID["asthma.md#1:0"].Metadata["title"])
	assert.Equal(t, "pulmonology", byID["asthma.md#1:0"].Metadata["specialty"])

	txt := env.hitsFor(t, "notes/heart_failure.txt")
	require.Len(t, txt, 1)
	assert.Equal(t, "Heart Failure", txt[0].Metadata["title"])
	assert.Equal(t, "cardiology", txt[0].Metadata["specialty"])
}

func TestPipeline_ReindexDropsStaleChunks(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "asthma.md", "# Asthma\n\nOne.\n\n## Symptoms\n\nTwo.\n\n## Treatment\n\nThree.\n")

	src, err := source.NewDirSource(root)
	require.NoError(t, err)
	env := newTestEnv(t, src, defaultConfig())

	n, err := env.pipeline.IndexPath(context.Background(), "asthma.md")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(3), env.count(t))

	writeDoc(t, root, "asthma.md", "# Asthma\n\nOnly an overview now.\n")
	n, err = env.pipeline.IndexPath(context.Background(), "asthma.md")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(1), env.count(t))

	hits := env.hitsFor(t, "asthma.md")
	require.Len(t, hits, 1)
	assert.Equal(t, "# Asthma\n\nOnly an overview now.", hits[0].Content)
}

func TestPipeline_IndexAllIsIdempotent(t *testing.T) {
	env := newTestEnv(t, source.NewSampleSource(), defaultConfig())

	_, err := env.pipeline.IndexAll(context.Background())
	require.NoError(t, err)
	_, err = env.pipeline.IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(3), env.count(t))
}

func TestPipeline_RemovesDeletedFiles(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "asthma.md", "# Asthma\n\nAirways.\n")
	writeDoc(t, root, "stroke.md", "# Stroke\n\nBrain.\n")

	src, err := source.NewDirSource(root)
	require.NoError(t, err)
	env := newTestEnv(t, src, defaultConfig())

	_, err = env.pipeline.IndexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"asthma.md", "stroke.md"}, env.pipeline.IndexedPaths())

	require.NoError(t, os.Remove(filepath.Join(root, "stroke.md")))
	result, err := env.pipeline.IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.RemovedDocs)
	assert.Equal(t, []string{"asthma.md"}, env.pipeline.IndexedPaths())
	assert.Equal(t, uint64(1), env.count(t))
}

func TestPipeline_RemovePath(t *testing.T) {
	env := newTestEnv(t, source.NewSampleSource(), defaultConfig())
	_, err := env.pipeline.IndexAll(context.Background())
	require.NoError(t, err)

	require.NoError(t, env.pipeline.RemovePath(context.Background(), "sample_cold_flu_guide.txt"))
	assert.Equal(t, uint64(2), env.count(t))
	assert.Empty(t, env.hitsFor(t, "sample_cold_flu_guide.txt"))

	// Unknown paths are a no-op.
	require.NoError(t, env.pipeline.RemovePath(context.Background(), "never-indexed.md"))
}

func TestPipeline_FailedDocumentDoesNotStopRun(t *testing.T) {
	env := newTestEnv(t, source.NewSampleSource(), defaultConfig())
	env.embedder.fail = "Type 2 diabetes"

	result, err := env.pipeline.IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessfulDocs)
	require.Len(t, result.FailedDocs, 1)
	assert.Equal(t, "sample_diabetes_guide.txt", result.FailedDocs[0].Path)
	assert.Contains(t, result.FailedDocs[0].Reason, "embeddings")
	assert.Equal(t, uint64(2), env.count(t))
}

func TestPipeline_LongDocumentIsChunked(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "long.txt", "a"+strings.Repeat(" a", 249))

	src, err := source.NewDirSource(root)
	require.NoError(t, err)
	env := newTestEnv(t, src, Config{ChunkSizeTokens: 100, ChunkOverlapTokens: 20})

	n, err := env.pipeline.IndexPath(context.Background(), "long.txt")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits := env.hitsFor(t, "long.txt")
	require.Len(t, hits, 3)
	for _, h := range hits {
		assert.Equal(t, int64(3), h.Metadata["total_chunks"])
	}
}

func TestPipeline_EmptyDocument(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "empty.md", "   \n")

	src, err := source.NewDirSource(root)
	require.NoError(t, err)
	env := newTestEnv(t, src, defaultConfig())

	n, err := env.pipeline.IndexPath(context.Background(), "empty.md")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, env.embedder.calls)
	assert.Empty(t, env.pipeline.IndexedPaths())
}

func TestNewPipeline_RejectsBadChunking(t *testing.T) {
	tok, err := tokenizer.NewTiktoken("")
	require.NoError(t, err)

	_, err = NewPipeline(source.NewSampleSource(), markdown.NewSplitter(), chunker.New(tok),
		&fakeEmbedder{}, nil, Config{ChunkSizeTokens: 100, ChunkOverlapTokens: 100}, nil)
	assert.ErrorIs(t, err, chunker.ErrConfiguration)
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "cardiology/hypertension.md#2:5", ChunkID("cardiology/hypertension.md", 2, 5))
}
