// Package indexer turns knowledge documents into embedded chunks in the vector index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bull/medrag/internal/chunker"
	"github.com/bull/medrag/internal/markdown"
	"github.com/bull/medrag/internal/metadata"
	"github.com/bull/medrag/internal/source"
	"github.com/bull/medrag/internal/storage"
)

// Embedder embeds chunk texts in one call.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Writer is the write side of the vector index.
type Writer interface {
	Upsert(ctx context.Context, docs []storage.EmbeddedDocument) error
	Delete(ctx context.Context, ids []string) error
}

// Config controls chunking.
type Config struct {
	ChunkSizeTokens    int
	ChunkOverlapTokens int
}

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	RemovedDocs    int
	FailedDocs     []FailedDoc
	Revision       string
	Duration       time.Duration
}

// FailedDoc represents a document that failed to index.
type FailedDoc struct {
	Path   string
	Reason string
}

// Pipeline orchestrates indexing from fetching to storage. It remembers the
// chunk ids written for every path so a re-index or removal can delete them.
type Pipeline struct {
	source   source.Source
	splitter *markdown.Splitter
	chunker  *chunker.Chunker
	embedder Embedder
	index    Writer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu  sync.Mutex
	ids map[string][]string // path -> chunk ids currently in the index
}

// NewPipeline creates a new indexing pipeline with the given components.
func NewPipeline(
	src source.Source,
	splitter *markdown.Splitter,
	textChunker *chunker.Chunker,
	embedder Embedder,
	index Writer,
	cfg Config,
	logger *slog.Logger,
) (*Pipeline, error) {
	if err := chunker.ValidateParams(cfg.ChunkSizeTokens, cfg.ChunkOverlapTokens); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:   src,
		splitter: splitter,
		chunker:  textChunker,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		ids:      make(map[string][]string),
	}, nil
}

// IndexAll indexes every document of the source. A document that fails is
// recorded in the result and the run continues. Paths indexed earlier that
// the source no longer lists are removed.
func (p *Pipeline) IndexAll(ctx context.Context) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	revision, err := p.source.Revision(ctx)
	if err != nil {
		return nil, fmt.Errorf("get revision: %w", err)
	}
	result.Revision = revision
	p.logger.Info("Starting indexing", "source", p.source.Name(), "revision", revision)

	paths, err := p.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list docs: %w", err)
	}
	result.TotalDocs = len(paths)
	p.logger.Info("Found documents", "count", len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := p.processDocument(ctx, path, revision)
		if err != nil {
			p.logger.Warn("Failed to process document", "path", path, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Path:   path,
				Reason: err.Error(),
			})
			continue
		}
		result.SuccessfulDocs++
		result.TotalChunks += chunks
	}

	listed := make(map[string]bool, len(paths))
	for _, path := range paths {
		listed[path] = true
	}
	for _, path := range p.IndexedPaths() {
		if listed[path] {
			continue
		}
		if err := p.RemovePath(ctx, path); err != nil {
			p.logger.Warn("Failed to remove stale document", "path", path, "error", err)
			continue
		}
		result.RemovedDocs++
	}

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"removed", result.RemovedDocs,
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)

	return result, nil
}

// IndexPath (re)indexes one document and returns its chunk count.
func (p *Pipeline) IndexPath(ctx context.Context, path string) (int, error) {
	revision, err := p.source.Revision(ctx)
	if err != nil {
		return 0, fmt.Errorf("get revision: %w", err)
	}
	return p.processDocument(ctx, path, revision)
}

// RemovePath deletes every chunk previously indexed for path.
func (p *Pipeline) RemovePath(ctx context.Context, path string) error {
	p.mu.Lock()
	ids := p.ids[path]
	p.mu.Unlock()

	if len(ids) > 0 {
		if err := p.index.Delete(ctx, ids); err != nil {
			return fmt.Errorf("delete chunks of %s: %w", path, err)
		}
	}

	p.mu.Lock()
	delete(p.ids, path)
	p.mu.Unlock()

	p.logger.Info("Removed document", "path", path, "chunks", len(ids))
	return nil
}

// IndexedPaths returns the paths with chunks in the index, sorted.
func (p *Pipeline) IndexedPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	paths := make([]string, 0, len(p.ids))
	for path := range p.ids {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// processDocument handles the full pipeline for a single document.
// Returns the number of chunks created for the document.
func (p *Pipeline) processDocument(ctx context.Context, path, revision string) (int, error) {
	fetched, err := p.source.Fetch(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	p.logger.Debug("Fetched document", "path", path, "size", len(fetched.Content))

	var doc *markdown.Document
	if source.IsMarkdown(path) {
		doc, err = p.splitter.Split([]byte(fetched.Content))
		if err != nil {
			return 0, fmt.Errorf("split: %w", err)
		}
	} else {
		doc = markdown.SplitText(fetched.Content)
	}

	title := fetched.Title
	if title == "" {
		title = doc.Title
	}
	if title == "" {
		title = source.TitleFromPath(path)
	}

	annotation := metadata.Annotate(title, fetched.Content, fetched.Authors)
	if fetched.Specialty != "" {
		annotation.Specialty = fetched.Specialty
	}
	if len(fetched.Keywords) > 0 {
		annotation.Keywords = fetched.Keywords
	}
	if fetched.Credibility > 0 {
		annotation.Credibility = fetched.Credibility
	}

	type piece struct {
		id      string
		section markdown.Section
		chunk   chunker.Chunk
	}
	var pieces []piece
	for _, section := range doc.Sections {
		chunks, err := p.chunker.Chunk(section.Content, p.cfg.ChunkSizeTokens, p.cfg.ChunkOverlapTokens)
		if err != nil {
			return 0, fmt.Errorf("chunk: %w", err)
		}
		for _, c := range chunks {
			pieces = append(pieces, piece{
				id:      ChunkID(path, section.Index, c.Index),
				section: section,
				chunk:   c,
			})
		}
	}
	p.logger.Debug("Chunked document", "path", path, "sections", len(doc.Sections), "chunks", len(pieces))

	var vectors [][]float32
	if len(pieces) > 0 {
		texts := make([]string, len(pieces))
		for i, pc := range pieces {
			texts[i] = pc.chunk.Text
		}
		vectors, err = p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embeddings: %w", err)
		}
		if len(vectors) != len(pieces) {
			return 0, fmt.Errorf("embeddings: got %d vectors for %d chunks", len(vectors), len(pieces))
		}
	}

	indexedAt := p.now().UTC().Format(time.RFC3339)
	docs := make([]storage.EmbeddedDocument, len(pieces))
	ids := make([]string, len(pieces))
	for i, pc := range pieces {
		meta := map[string]any{
			"title":             title,
			"source":            path,
			"section":           pc.section.HeaderPath,
			"chunk_index":       i,
			"total_chunks":      len(pieces),
			"keywords":          annotation.Keywords,
			"credibility_score": annotation.Credibility,
			"revision":          revision,
			"date_indexed":      indexedAt,
		}
		if annotation.Specialty != "" {
			meta["specialty"] = annotation.Specialty
		}
		if fetched.URL != "" {
			meta["url"] = fetched.URL
		}
		docs[i] = storage.EmbeddedDocument{
			ID:       pc.id,
			Vector:   vectors[i],
			Content:  pc.chunk.Text,
			Metadata: meta,
		}
		ids[i] = pc.id
	}

	if err := p.index.Upsert(ctx, docs); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	// Drop chunks of the previous version that the new version no longer has.
	p.mu.Lock()
	previous := p.ids[path]
	p.mu.Unlock()
	if stale := difference(previous, ids); len(stale) > 0 {
		if err := p.index.Delete(ctx, stale); err != nil {
			return 0, fmt.Errorf("delete stale chunks: %w", err)
		}
	}

	p.mu.Lock()
	if len(ids) == 0 {
		delete(p.ids, path)
	} else {
		p.ids[path] = ids
	}
	p.mu.Unlock()

	p.logger.Info("Indexed document", "path", path, "chunks", len(pieces), "specialty", annotation.Specialty)
	return len(pieces), nil
}

// ChunkID is the index id of a chunk: "path#section:chunk".
func ChunkID(path string, section, chunk int) string {
	return fmt.Sprintf("%s#%d:%d", path, section, chunk)
}

// difference returns the ids in a that are not in b.
func difference(a, b []string) []string {
	keep := make(map[string]bool, len(b))
	for _, id := range b {
		keep[id] = true
	}
	var out []string
	for _, id := range a {
		if !keep[id] {
			out = append(out, id)
		}
	}
	return out
}
