// Package engine answers questions from retrieved knowledge while keeping
// per-conversation memory.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bull/medrag/internal/budget"
	"github.com/bull/medrag/internal/conversation"
	"github.com/bull/medrag/internal/llm"
	"github.com/bull/medrag/internal/storage"
)

const (
	DefaultMaxRetrievalDocs    = 5
	DefaultSimilarityThreshold = 0.7
	DefaultMaxContextTokens    = 8000
	DefaultTemperature         = 0.1
	DefaultMaxOutputTokens     = 1000
	DefaultEmbedTimeout        = 30 * time.Second
	DefaultRetrievalTimeout    = 10 * time.Second
	DefaultGenerateTimeout     = 60 * time.Second
)

// IndexUnreachable is reported in Stats when the index could not be read.
// The backend error itself is only logged.
const IndexUnreachable = "vector index unreachable"

// QueryEmbedder turns a query into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the read side of the vector index.
type Searcher interface {
	Query(ctx context.Context, vector []float32, k int, threshold float64, filter storage.Filter) ([]storage.SearchHit, error)
	Stats(ctx context.Context) (*storage.Stats, error)
}

// Config tunes retrieval, budgeting and generation.
type Config struct {
	MaxRetrievalDocs       int
	SimilarityThreshold    float64
	MaxContextTokens       int
	Temperature            float64
	MaxOutputTokens        int
	EnableSafetyDisclaimer bool

	EmbedTimeout     time.Duration
	RetrievalTimeout time.Duration
	GenerateTimeout  time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetrievalDocs:       DefaultMaxRetrievalDocs,
		SimilarityThreshold:    DefaultSimilarityThreshold,
		MaxContextTokens:       DefaultMaxContextTokens,
		Temperature:            DefaultTemperature,
		MaxOutputTokens:        DefaultMaxOutputTokens,
		EnableSafetyDisclaimer: true,
		EmbedTimeout:           DefaultEmbedTimeout,
		RetrievalTimeout:       DefaultRetrievalTimeout,
		GenerateTimeout:        DefaultGenerateTimeout,
	}
}

// Deps are the collaborators an Engine is built from.
type Deps struct {
	Store     *conversation.Store
	Embedder  QueryEmbedder
	Index     Searcher
	Budgeter  *budget.Budgeter
	Generator llm.Generator
	Logger    *slog.Logger
	Now       func() time.Time // Defaults to time.Now
}

// Engine runs the ask flow. It is safe for concurrent use; no lock is held
// while calling the embedder, the index or the generator.
type Engine struct {
	store     *conversation.Store
	embedder  QueryEmbedder
	index     Searcher
	budgeter  *budget.Budgeter
	generator llm.Generator
	logger    *slog.Logger
	now       func() time.Time
	cfg       Config
}

// New creates an engine.
func New(deps Deps, cfg Config) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:     deps.Store,
		embedder:  deps.Embedder,
		index:     deps.Index,
		budgeter:  deps.Budgeter,
		generator: deps.Generator,
		logger:    logger,
		now:       now,
		cfg:       cfg,
	}
}

// Citation describes evidence an answer was grounded on.
type Citation struct {
	Title    string         `json:"title"`
	Preview  string         `json:"preview"`
	Score    float64        `json:"score"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AnswerMetadata reports how an answer was produced.
type AnswerMetadata struct {
	Model              string `json:"model"`
	RetrievalDocsCount int    `json:"retrieval_docs_count"`
	EvidenceUsed       int    `json:"evidence_used"`
	EnhancedQuery      string `json:"enhanced_query"`
	ConversationLength int    `json:"conversation_length"`
	RetrievalDegraded  bool   `json:"retrieval_degraded"`
	PromptTokens       int    `json:"prompt_tokens"`
}

// Answer is the result of a successful Ask.
type Answer struct {
	ConversationID string         `json:"conversation_id"`
	Answer         string         `json:"answer"`
	Sources        []Citation     `json:"sources"`
	Metadata       AnswerMetadata `json:"metadata"`
}

// Retrieval is the outcome of the retrieve step. A degraded retrieval has no
// hits and a Reason; answering continues without evidence.
type Retrieval struct {
	Hits     []storage.SearchHit
	Degraded bool
	Reason   string
}

// Ask answers query within the conversation. An empty conversationID starts a
// new conversation. On failure the conversation is left unchanged and the
// error is an *Error.
func (e *Engine) Ask(ctx context.Context, conversationID, query string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, newError(KindInvalidRequest, "query must not be empty", nil)
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	history := e.store.GetConversation(conversationID)
	enhanced := enhanceQuery(query, history)

	retrieval := e.retrieve(ctx, enhanced)
	if retrieval.Degraded {
		e.logger.Warn("Retrieval degraded, answering without evidence",
			"conversation_id", conversationID, "reason", retrieval.Reason)
	}

	assembly, err := e.assemble(query, history, retrieval.Hits)
	if err != nil {
		e.logger.Warn("Prompt does not fit context budget",
			"conversation_id", conversationID, "error", err)
		if errors.Is(err, budget.ErrContextOverflow) {
			return nil, newError(KindContextOverflow, "question is too long for the context window", err)
		}
		return nil, newError(KindGenerationFailure, "failed to assemble prompt", err)
	}

	text, err := e.generate(ctx, assembly.Messages)
	if err != nil {
		e.logger.Error("Generation failed",
			"conversation_id", conversationID, "model", e.generator.Model(), "error", err)
		return nil, err
	}

	if e.cfg.EnableSafetyDisclaimer {
		text += Disclaimer
	}

	used := make([]storage.SearchHit, 0, len(assembly.EvidenceIndexes))
	for _, i := range assembly.EvidenceIndexes {
		used = append(used, retrieval.Hits[i])
	}

	now := e.now()
	e.store.AddMessages(conversationID,
		conversation.Message{Role: conversation.RoleUser, Content: query, Timestamp: now},
		conversation.Message{Role: conversation.RoleAssistant, Content: text, Timestamp: now, Sources: used},
	)

	answer := &Answer{
		ConversationID: conversationID,
		Answer:         text,
		Sources:        citations(used),
		Metadata: AnswerMetadata{
			Model:              e.generator.Model(),
			RetrievalDocsCount: len(retrieval.Hits),
			EvidenceUsed:       len(used),
			EnhancedQuery:      enhanced,
			ConversationLength: min(len(history)+2, e.store.MaxHistoryLength()),
			RetrievalDegraded:  retrieval.Degraded,
			PromptTokens:       assembly.Tokens,
		},
	}

	e.logger.Info("Answered question",
		"conversation_id", conversationID,
		"retrieved", len(retrieval.Hits),
		"evidence_used", len(used),
		"history_dropped", assembly.HistoryDropped,
		"prompt_tokens", assembly.Tokens)

	return answer, nil
}

// assemble builds the prompt. The reference wording of the user prompt must
// match the evidence that was admitted, so when no hit fits the prompt is
// rebuilt without evidence under the no-references wording.
func (e *Engine) assemble(query string, history []conversation.Message, hits []storage.SearchHit) (*budget.Assembly, error) {
	past := historyMessages(history)
	if len(hits) > 0 {
		assembly, err := e.budgeter.Assemble(SystemPrompt, past, evidenceMessages(hits),
			userPrompt(query, true), e.cfg.MaxContextTokens)
		if err == nil && len(assembly.EvidenceIndexes) > 0 {
			return assembly, nil
		}
		if err != nil && !errors.Is(err, budget.ErrContextOverflow) {
			return nil, err
		}
	}
	return e.budgeter.Assemble(SystemPrompt, past, nil, userPrompt(query, false), e.cfg.MaxContextTokens)
}

// retrieve embeds the enhanced query and searches the index. Failures degrade
// to an empty result instead of failing the ask.
func (e *Engine) retrieve(ctx context.Context, query string) Retrieval {
	if e.cfg.MaxRetrievalDocs <= 0 {
		return Retrieval{Hits: []storage.SearchHit{}}
	}

	embedCtx, cancel := withTimeout(ctx, e.cfg.EmbedTimeout)
	vector, err := e.embedder.Embed(embedCtx, query)
	cancel()
	if err != nil {
		return Retrieval{Hits: []storage.SearchHit{}, Degraded: true, Reason: "embedding failed: " + err.Error()}
	}

	queryCtx, cancel := withTimeout(ctx, e.cfg.RetrievalTimeout)
	hits, err := e.index.Query(queryCtx, vector, e.cfg.MaxRetrievalDocs, e.cfg.SimilarityThreshold, nil)
	cancel()
	if err != nil {
		return Retrieval{Hits: []storage.SearchHit{}, Degraded: true, Reason: "index query failed: " + err.Error()}
	}
	return Retrieval{Hits: hits}
}

func (e *Engine) generate(ctx context.Context, messages []llm.Message) (string, error) {
	genCtx, cancel := withTimeout(ctx, e.cfg.GenerateTimeout)
	defer cancel()

	text, err := e.generator.Generate(genCtx, messages, llm.Options{
		Temperature:     e.cfg.Temperature,
		MaxOutputTokens: e.cfg.MaxOutputTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return "", newError(KindGenerationTimeout, "answer generation timed out", err)
		}
		return "", newError(KindGenerationFailure, "answer generation failed", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", newError(KindGenerationFailure, "answer generation returned no text", llm.ErrGenerationFailure)
	}
	return text, nil
}

// History returns the live messages of a conversation, oldest first.
func (e *Engine) History(conversationID string) []conversation.Message {
	return e.store.GetConversation(conversationID)
}

// ClearConversation forgets a conversation.
func (e *Engine) ClearConversation(conversationID string) {
	e.store.ClearConversation(conversationID)
	e.logger.Info("Cleared conversation", "conversation_id", conversationID)
}

// Stats describes the engine configuration and the state of its index.
type Stats struct {
	Model               string         `json:"model"`
	ActiveConversations int            `json:"active_conversations"`
	MaxRetrievalDocs    int            `json:"max_retrieval_docs"`
	SimilarityThreshold float64        `json:"similarity_threshold"`
	MaxContextTokens    int            `json:"max_context_tokens"`
	SafetyDisclaimer    bool           `json:"safety_disclaimer"`
	Index               *storage.Stats `json:"index,omitempty"`
	IndexError          string         `json:"index_error,omitempty"`
}

// Stats reports engine and index statistics. An unreachable index is reported
// in IndexError rather than failing the call.
func (e *Engine) Stats(ctx context.Context) *Stats {
	stats := &Stats{
		Model:               e.generator.Model(),
		ActiveConversations: e.store.ActiveConversations(),
		MaxRetrievalDocs:    e.cfg.MaxRetrievalDocs,
		SimilarityThreshold: e.cfg.SimilarityThreshold,
		MaxContextTokens:    e.cfg.MaxContextTokens,
		SafetyDisclaimer:    e.cfg.EnableSafetyDisclaimer,
	}

	statsCtx, cancel := withTimeout(ctx, e.cfg.RetrievalTimeout)
	defer cancel()
	idx, err := e.index.Stats(statsCtx)
	if err != nil {
		e.logger.Warn("Index stats unavailable", "error", err)
		stats.IndexError = IndexUnreachable
		return stats
	}
	stats.Index = idx
	return stats
}

func citations(hits []storage.SearchHit) []Citation {
	out := make([]Citation, len(hits))
	for i, hit := range hits {
		out[i] = Citation{
			Title:    sourceTitle(hit.Metadata),
			Preview:  abbreviate(hit.Content, previewChars),
			Score:    hit.Score,
			Content:  hit.Content,
			Metadata: hit.Metadata,
		}
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
