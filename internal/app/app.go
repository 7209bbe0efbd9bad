// Package app wires the configured components together for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bull/medrag/internal/budget"
	"github.com/bull/medrag/internal/chunker"
	"github.com/bull/medrag/internal/config"
	"github.com/bull/medrag/internal/conversation"
	"github.com/bull/medrag/internal/embedding"
	"github.com/bull/medrag/internal/engine"
	ghclient "github.com/bull/medrag/internal/github"
	"github.com/bull/medrag/internal/indexer"
	"github.com/bull/medrag/internal/llm"
	"github.com/bull/medrag/internal/markdown"
	"github.com/bull/medrag/internal/source"
	"github.com/bull/medrag/internal/storage"
	"github.com/bull/medrag/internal/tokenizer"
)

// App holds the shared components of a running binary.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Tokenizer *tokenizer.Tiktoken
	Backend   storage.Backend
	Index     *storage.Index
	Gateway   *embedding.Gateway
	Generator llm.Generator
	Store     *conversation.Store
	Engine    *engine.Engine

	source   source.Source
	pipeline *indexer.Pipeline
	closers  []func() error
}

// NewLogger returns a text logger on w at level. Binaries pass stderr so stdout
// stays free for the MCP stdio transport.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// New builds every component from cfg. The vector backend is contacted (and
// its collection created) for Qdrant; providers are contacted lazily.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = NewLogger(os.Stderr, cfg.LogLevel)
	}
	a := &App{Config: cfg, Logger: logger}

	tok, err := tokenizer.NewTiktoken(tokenizer.DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	a.Tokenizer = tok

	if err := a.initIndex(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	provider, generator, err := newProviders(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Gateway = embedding.NewGateway(provider, tok, cfg.EmbeddingMaxTokens, logger.With("component", "embedding"))
	a.Generator = generator

	a.Store = conversation.NewStore(conversation.Options{
		MaxHistoryLength: cfg.MaxHistoryLength,
		ContextWindow:    cfg.ContextWindow,
	})

	a.Engine = engine.New(engine.Deps{
		Store:     a.Store,
		Embedder:  a.Gateway,
		Index:     a.Index,
		Budgeter:  budget.New(tok),
		Generator: generator,
		Logger:    logger.With("component", "engine"),
	}, engine.Config{
		MaxRetrievalDocs:       cfg.MaxRetrievalDocs,
		SimilarityThreshold:    cfg.SimilarityThreshold,
		MaxContextTokens:       cfg.MaxContextTokens,
		Temperature:            cfg.Temperature,
		MaxOutputTokens:        cfg.MaxOutputTokens,
		EnableSafetyDisclaimer: cfg.EnableSafetyDisclaimer,
		EmbedTimeout:           cfg.EmbedTimeout,
		RetrievalTimeout:       cfg.RetrievalTimeout,
		GenerateTimeout:        cfg.GenerateTimeout,
	})

	logger.Info("Components ready",
		"provider", cfg.LLMProvider,
		"model", generator.Model(),
		"backend", cfg.VectorBackend,
		"dimension", cfg.EmbeddingDimension)

	return a, nil
}

func (a *App) initIndex(ctx context.Context) error {
	cfg := a.Config
	switch cfg.VectorBackend {
	case config.BackendMemory:
		a.Backend = storage.NewMemoryBackend()
	default:
		backend, err := storage.NewQdrantBackend(storage.QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantUseTLS,
			Collection: cfg.QdrantCollection,
			Dimension:  cfg.EmbeddingDimension,
		})
		if err != nil {
			return fmt.Errorf("connect to Qdrant: %w", err)
		}
		a.closers = append(a.closers, backend.Close)
		if err := backend.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("ensure collection: %w", err)
		}
		a.Backend = backend
	}

	index, err := storage.NewIndex(a.Backend, storage.IndexConfig{
		Dimension: cfg.EmbeddingDimension,
		Capacity:  cfg.IndexCapacity,
	})
	if err != nil {
		return err
	}
	a.Index = index
	return nil
}

func newProviders(cfg *config.Config) (embedding.Provider, llm.Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		client, err := llm.NewOllamaClient(cfg.OllamaHost)
		if err != nil {
			return nil, nil, err
		}
		return embedding.NewOllamaEmbedder(client, cfg.EmbeddingModel),
			llm.NewOllamaGenerator(client, cfg.ChatModel), nil
	default:
		client, err := embedding.NewClient(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("create OpenAI client: %w", err)
		}
		return embedding.NewOpenAIEmbedder(client, cfg.EmbeddingModel, 0),
			llm.NewOpenAIGenerator(client.Client(), cfg.ChatModel), nil
	}
}

// Source returns the configured knowledge source.
func (a *App) Source() (source.Source, error) {
	if a.source != nil {
		return a.source, nil
	}

	cfg := a.Config
	switch cfg.KnowledgeSource {
	case config.SourceSamples:
		a.source = source.NewSampleSource()
	case config.SourceGitHub:
		client, err := ghclient.NewClient(cfg.GitHubToken)
		if err != nil {
			return nil, fmt.Errorf("create GitHub client: %w", err)
		}
		a.source = ghclient.NewFetcher(client, ghclient.Repo{
			Owner:    cfg.GitHubOwner,
			Name:     cfg.GitHubRepo,
			BasePath: cfg.GitHubPath,
			Ref:      cfg.GitHubRef,
		})
	default:
		dir, err := source.NewDirSource(cfg.KnowledgeDir)
		if err != nil {
			return nil, err
		}
		a.source = dir
	}
	return a.source, nil
}

// Pipeline returns the indexing pipeline over the configured source.
func (a *App) Pipeline() (*indexer.Pipeline, error) {
	if a.pipeline != nil {
		return a.pipeline, nil
	}
	src, err := a.Source()
	if err != nil {
		return nil, err
	}
	p, err := indexer.NewPipeline(
		src,
		markdown.NewSplitter(),
		chunker.New(a.Tokenizer),
		a.Gateway,
		a.Index,
		indexer.Config{
			ChunkSizeTokens:    a.Config.ChunkSizeTokens,
			ChunkOverlapTokens: a.Config.ChunkOverlapTokens,
		},
		a.Logger.With("component", "indexer"),
	)
	if err != nil {
		return nil, err
	}
	a.pipeline = p
	return p, nil
}

// Bootstrap fills an in-memory index from the knowledge source, since it starts
// empty on every run. It does nothing for persistent backends.
func (a *App) Bootstrap(ctx context.Context) error {
	if a.Config.VectorBackend != config.BackendMemory {
		return nil
	}
	p, err := a.Pipeline()
	if err != nil {
		return err
	}
	result, err := p.IndexAll(ctx)
	if err != nil {
		return fmt.Errorf("index knowledge: %w", err)
	}
	if result.SuccessfulDocs == 0 && result.TotalDocs > 0 {
		return fmt.Errorf("index knowledge: all %d documents failed", result.TotalDocs)
	}
	return nil
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
