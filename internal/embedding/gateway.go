// Package embedding turns text into vectors through an external provider.
package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/medrag/internal/tokenizer"
)

// DefaultMaxInputTokens is the longest input sent to the provider.
const DefaultMaxInputTokens = 8000

// Provider is the external embedding function.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Gateway enforces the provider's input token ceiling and turns every
// provider failure into ErrEmbeddingUnavailable.
type Gateway struct {
	provider  Provider
	tok       tokenizer.Tokenizer
	maxTokens int
	logger    *slog.Logger
}

// NewGateway creates a gateway. maxTokens <= 0 selects DefaultMaxInputTokens.
func NewGateway(provider Provider, tok tokenizer.Tokenizer, maxTokens int, logger *slog.Logger) *Gateway {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxInputTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		provider:  provider,
		tok:       tok,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Embed returns the vector for a single text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per text. Over-long texts are truncated with a
// warning; a missing or empty vector fails the whole call.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(texts))
	for i, text := range texts {
		inputs[i] = g.truncate(text)
	}

	vectors, err := g.provider.Embed(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d inputs",
			ErrEmbeddingUnavailable, len(vectors), len(inputs))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty vector for input %d", ErrEmbeddingUnavailable, i)
		}
	}

	return vectors, nil
}

// truncate cuts text to the gateway's token ceiling.
func (g *Gateway) truncate(text string) string {
	tokens := g.tok.Encode(text)
	if len(tokens) <= g.maxTokens {
		return text
	}

	g.logger.Warn("Truncating embedding input",
		"tokens", len(tokens),
		"max_tokens", g.maxTokens,
	)
	return g.tok.Decode(tokens[:g.maxTokens])
}
