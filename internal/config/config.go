// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bull/medrag/internal/chunker"
)

// ErrInvalidConfig is returned for malformed or out-of-range settings.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendQdrant = "qdrant"
	BackendMemory = "memory"

	SourceDir     = "dir"
	SourceGitHub  = "github"
	SourceSamples = "samples"
)

// Config holds every setting of the binaries.
type Config struct {
	LogLevel slog.Level

	// Providers
	LLMProvider        string
	OpenAIAPIKey       string
	OllamaHost         string
	ChatModel          string // Empty selects the provider default
	EmbeddingModel     string // Empty selects the provider default
	EmbeddingDimension int
	EmbeddingMaxTokens int
	Temperature        float64
	MaxOutputTokens    int

	// Conversation memory
	MaxHistoryLength int
	ContextWindow    time.Duration
	SweepInterval    time.Duration

	// Retrieval and prompt budget
	MaxRetrievalDocs       int
	SimilarityThreshold    float64
	MaxContextTokens       int
	ChunkSizeTokens        int
	ChunkOverlapTokens     int
	EnableSafetyDisclaimer bool

	// Timeouts for external calls
	EmbedTimeout     time.Duration
	RetrievalTimeout time.Duration
	GenerateTimeout  time.Duration

	// Vector index
	VectorBackend    string
	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantUseTLS     bool
	QdrantCollection string
	IndexCapacity    uint64

	// Knowledge source
	KnowledgeSource string
	KnowledgeDir    string
	GitHubToken     string
	GitHubOwner     string
	GitHubRepo      string
	GitHubPath      string
	GitHubRef       string

	// Server
	Port       string
	ServerMode bool
}

// Load reads the configuration from environment variables and validates it.
func Load() (*Config, error) {
	l := &loader{}

	cfg := &Config{
		LLMProvider:        strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OllamaHost:         getEnv("OLLAMA_HOST", "http://localhost:11434"),
		ChatModel:          os.Getenv("CHAT_MODEL"),
		EmbeddingModel:     os.Getenv("EMBEDDING_MODEL"),
		EmbeddingMaxTokens: l.envInt("EMBEDDING_MAX_TOKENS", 8000),
		Temperature:        l.envFloat("TEMPERATURE", 0.1),
		MaxOutputTokens:    l.envInt("MAX_OUTPUT_TOKENS", 1000),

		MaxHistoryLength: l.envInt("MAX_HISTORY_LENGTH", 10),
		ContextWindow:    time.Duration(l.envInt("CONTEXT_WINDOW_HOURS", 24)) * time.Hour,
		SweepInterval:    l.envDuration("SWEEP_INTERVAL", 10*time.Minute),

		MaxRetrievalDocs:       l.envInt("MAX_RETRIEVAL_DOCS", 5),
		SimilarityThreshold:    l.envFloat("SIMILARITY_THRESHOLD", 0.7),
		MaxContextTokens:       l.envInt("MAX_CONTEXT_TOKENS", 8000),
		ChunkSizeTokens:        l.envInt("CHUNK_SIZE_TOKENS", 1000),
		ChunkOverlapTokens:     l.envInt("CHUNK_OVERLAP_TOKENS", 200),
		EnableSafetyDisclaimer: l.envBool("ENABLE_SAFETY_DISCLAIMER", true),

		EmbedTimeout:     l.envDuration("EMBED_TIMEOUT", 30*time.Second),
		RetrievalTimeout: l.envDuration("RETRIEVAL_TIMEOUT", 10*time.Second),
		GenerateTimeout:  l.envDuration("GENERATE_TIMEOUT", 60*time.Second),

		VectorBackend:    strings.ToLower(getEnv("VECTOR_BACKEND", BackendQdrant)),
		QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:       l.envInt("QDRANT_PORT", 6334),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantUseTLS:     l.envBool("QDRANT_USE_TLS", false),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "medical_knowledge"),

		KnowledgeSource: strings.ToLower(getEnv("KNOWLEDGE_SOURCE", SourceDir)),
		KnowledgeDir:    getEnv("KNOWLEDGE_DIR", "./knowledge"),
		GitHubToken:     os.Getenv("GITHUB_TOKEN"),
		GitHubOwner:     os.Getenv("GITHUB_OWNER"),
		GitHubRepo:      os.Getenv("GITHUB_REPO"),
		GitHubPath:      os.Getenv("GITHUB_PATH"),
		GitHubRef:       os.Getenv("GITHUB_REF"),

		Port:       getEnv("PORT", "8080"),
		ServerMode: l.envBool("SERVER_MODE", false),
	}

	// Local embedding models are smaller than OpenAI's.
	defaultDimension := 1536
	if cfg.LLMProvider == ProviderOllama {
		defaultDimension = 768
	}
	cfg.EmbeddingDimension = l.envInt("EMBEDDING_DIMENSION", defaultDimension)

	if capacity := l.envInt("INDEX_CAPACITY", 0); capacity < 0 {
		l.errs = append(l.errs, fmt.Errorf("%w: INDEX_CAPACITY must not be negative", ErrInvalidConfig))
	} else {
		cfg.IndexCapacity = uint64(capacity)
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		l.errs = append(l.errs, err)
	}
	cfg.LogLevel = level

	if err := errors.Join(l.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field constraints. Bad chunking parameters
// wrap chunker.ErrConfiguration; everything else wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := chunker.ValidateParams(c.ChunkSizeTokens, c.ChunkOverlapTokens); err != nil {
		return err
	}

	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(c.LLMProvider == ProviderOpenAI || c.LLMProvider == ProviderOllama,
		"LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderOllama, c.LLMProvider)
	check(c.VectorBackend == BackendQdrant || c.VectorBackend == BackendMemory,
		"VECTOR_BACKEND must be %q or %q, got %q", BackendQdrant, BackendMemory, c.VectorBackend)
	check(c.KnowledgeSource == SourceDir || c.KnowledgeSource == SourceGitHub || c.KnowledgeSource == SourceSamples,
		"KNOWLEDGE_SOURCE must be %q, %q or %q, got %q", SourceDir, SourceGitHub, SourceSamples, c.KnowledgeSource)
	check(c.KnowledgeSource != SourceGitHub || (c.GitHubOwner != "" && c.GitHubRepo != ""),
		"GITHUB_OWNER and GITHUB_REPO are required for the github source")

	check(c.MaxHistoryLength > 0, "MAX_HISTORY_LENGTH must be positive, got %d", c.MaxHistoryLength)
	check(c.ContextWindow > 0, "CONTEXT_WINDOW_HOURS must be positive")
	check(c.MaxRetrievalDocs >= 0, "MAX_RETRIEVAL_DOCS must not be negative, got %d", c.MaxRetrievalDocs)
	check(c.SimilarityThreshold >= 0 && c.SimilarityThreshold <= 1,
		"SIMILARITY_THRESHOLD must be within [0, 1], got %g", c.SimilarityThreshold)
	check(c.MaxContextTokens > 0, "MAX_CONTEXT_TOKENS must be positive, got %d", c.MaxContextTokens)
	check(c.Temperature >= 0 && c.Temperature <= 2, "TEMPERATURE must be within [0, 2], got %g", c.Temperature)
	check(c.MaxOutputTokens > 0, "MAX_OUTPUT_TOKENS must be positive, got %d", c.MaxOutputTokens)
	check(c.EmbeddingDimension > 0, "EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
	check(c.EmbeddingMaxTokens > 0, "EMBEDDING_MAX_TOKENS must be positive, got %d", c.EmbeddingMaxTokens)
	check(c.QdrantPort > 0 && c.QdrantPort < 65536, "QDRANT_PORT out of range: %d", c.QdrantPort)

	return errors.Join(errs...)
}

// loader collects parse errors so every malformed variable is reported at once.
type loader struct {
	errs []error
}

func (l *loader) envInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v))
		return defaultValue
	}
	return i
}

func (l *loader) envFloat(key string, defaultValue float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v))
		return defaultValue
	}
	return f
}

func (l *loader) envBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v))
		return defaultValue
	}
	return b
}

func (l *loader) envDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidConfig, key, v))
		return defaultValue
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: LOG_LEVEL=%q", ErrInvalidConfig, s)
	}
	return level, nil
}
