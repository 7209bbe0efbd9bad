// Package main provides the CLI for indexing the medical knowledge base.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/medrag/internal/app"
	"github.com/bull/medrag/internal/config"
	"github.com/bull/medrag/internal/indexer"
	"github.com/bull/medrag/internal/source"
	"github.com/bull/medrag/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "medrag-sync",
	Short: "Medical knowledge base indexing tool",
	Long:  "CLI tool for managing the medical knowledge index",
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index every knowledge document",
	Long: `Indexes every document of the configured knowledge source.

This command:
1. Connects to the vector backend and verifies health
2. Optionally clears the existing collection (--reset)
3. Splits each document by heading and chunks it by tokens
4. Embeds the chunks and annotates them with specialty, keywords and credibility
5. Stores the chunks, replacing the ones of earlier runs

Environment variables:
  KNOWLEDGE_SOURCE  dir, github or samples (default: dir)
  KNOWLEDGE_DIR     Directory of markdown/text files (default: ./knowledge)
  VECTOR_BACKEND    qdrant or memory (default: qdrant)
  QDRANT_HOST       Qdrant hostname (default: localhost)
  QDRANT_PORT       Qdrant gRPC port (default: 6334)
  LLM_PROVIDER      openai or ollama (default: openai)
  OPENAI_API_KEY    OpenAI API key (required for openai)
  GITHUB_TOKEN      GitHub token for higher rate limits (optional)`,
	RunE: runSync,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index the knowledge directory and keep it in sync",
	Long: `Indexes the knowledge directory, then re-indexes files as they change
and removes the chunks of deleted files. Requires KNOWLEDGE_SOURCE=dir.`,
	RunE: runWatch,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print knowledge index statistics",
	RunE:  runStats,
}

var (
	reset    bool
	debounce time.Duration
)

func init() {
	syncCmd.Flags().BoolVar(&reset, "reset", false, "drop and recreate the Qdrant collection first")
	watchCmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "wait this long after the last change to a file")
	rootCmd.AddCommand(syncCmd, watchCmd, statsCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, app.NewLogger(os.Stderr, cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	if err := a.Index.Health(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("vector backend health check failed: %w", err)
	}
	return a, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	start := time.Now()

	fmt.Println("Starting sync...")
	fmt.Println()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Printf("Vector backend healthy (%s)\n", a.Config.VectorBackend)
	if a.Config.VectorBackend == config.BackendMemory {
		fmt.Println("Note: the memory backend is discarded when this command exits")
	}

	if reset {
		qdrant, ok := a.Backend.(*storage.QdrantBackend)
		if !ok {
			return errors.New("--reset requires VECTOR_BACKEND=qdrant")
		}
		fmt.Println()
		fmt.Println("Clearing existing collection...")
		if err := qdrant.ClearCollection(ctx); err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
		fmt.Println("Collection cleared")
	}

	pipeline, err := a.Pipeline()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Indexing documents from %s...\n", a.Config.KnowledgeSource)
	result, err := pipeline.IndexAll(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	printResult(result)
	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func printResult(result *indexer.IndexResult) {
	fmt.Println()
	fmt.Println("Sync complete!")
	fmt.Printf("  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Printf("  Chunks: %d\n", result.TotalChunks)
	if result.RemovedDocs > 0 {
		fmt.Printf("  Removed: %d\n", result.RemovedDocs)
	}
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("  Revision: %s\n", result.Revision)

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := a.Source()
	if err != nil {
		return err
	}
	dir, ok := src.(*source.DirSource)
	if !ok {
		return errors.New("watch requires KNOWLEDGE_SOURCE=dir")
	}

	pipeline, err := a.Pipeline()
	if err != nil {
		return err
	}
	result, err := pipeline.IndexAll(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	printResult(result)

	watcher, err := source.NewWatcher(dir, debounce, a.Logger.With("component", "watcher"))
	if err != nil {
		return err
	}
	defer watcher.Close()

	events, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Watching %s (Ctrl+C to stop)\n", dir.Root())
	for event := range events {
		switch event.Op {
		case source.OpRemoved:
			if err := pipeline.RemovePath(ctx, event.Path); err != nil {
				a.Logger.Warn("Failed to remove document", "path", event.Path, "error", err)
				continue
			}
			fmt.Printf("  - %s removed\n", event.Path)
		default:
			chunks, err := pipeline.IndexPath(ctx, event.Path)
			if err != nil {
				a.Logger.Warn("Failed to index document", "path", event.Path, "error", err)
				continue
			}
			fmt.Printf("  + %s (%d chunks)\n", event.Path, chunks)
		}
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Index.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}

	fmt.Printf("Backend:   %s\n", a.Config.VectorBackend)
	if a.Config.VectorBackend == config.BackendQdrant {
		fmt.Printf("Collection: %s\n", a.Config.QdrantCollection)
	}
	fmt.Printf("Chunks:    %d\n", stats.Count)
	fmt.Printf("Dimension: %d\n", stats.Dimension)
	if a.Config.IndexCapacity > 0 {
		fmt.Printf("Fullness:  %.1f%%\n", stats.Fullness*100)
	}
	return nil
}
