package embedding

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/medrag/internal/tokenizer"
)

// recordingProvider returns fixed vectors and remembers its inputs.
type recordingProvider struct {
	inputs  []string
	vectors [][]float32
	err     error
}

func (p *recordingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.inputs = append(p.inputs, texts...)
	if p.err != nil {
		return nil, p.err
	}
	if p.vectors != nil {
		return p.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func newTestTokenizer(t *testing.T) *tokenizer.Tiktoken {
	t.Helper()
	tok, err := tokenizer.NewTiktoken("")
	require.NoError(t, err)
	return tok
}

func TestGateway_TruncatesLongInput(t *testing.T) {
	tok := newTestTokenizer(t)
	provider := &recordingProvider{}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	g := NewGateway(provider, tok, 10, logger)

	text := "a" + strings.Repeat(" a", 49) // 50 tokens
	vec, err := g.Embed(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)

	require.Len(t, provider.inputs, 1)
	assert.Equal(t, 10, tok.Count(provider.inputs[0]))
	assert.True(t, strings.HasPrefix(text, provider.inputs[0]))
	assert.Contains(t, logs.String(), "Truncating embedding input")
}

func TestGateway_ShortInputUnchanged(t *testing.T) {
	provider := &recordingProvider{}
	g := NewGateway(provider, newTestTokenizer(t), 0, nil)

	_, err := g.Embed(context.Background(), "What causes anemia?")
	require.NoError(t, err)
	assert.Equal(t, []string{"What causes anemia?"}, provider.inputs)
}

func TestGateway_ProviderErrorIsUnavailable(t *testing.T) {
	provider := &recordingProvider{err: errors.New("connection refused")}
	g := NewGateway(provider, newTestTokenizer(t), 0, nil)

	_, err := g.Embed(context.Background(), "query")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestGateway_EmptyVectorIsUnavailable(t *testing.T) {
	provider := &recordingProvider{vectors: [][]float32{{}}}
	g := NewGateway(provider, newTestTokenizer(t), 0, nil)

	vec, err := g.Embed(context.Background(), "query")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Nil(t, vec)
}

func TestGateway_MissingVectorsAreUnavailable(t *testing.T) {
	provider := &recordingProvider{vectors: [][]float32{{1, 2, 3}}}
	g := NewGateway(provider, newTestTokenizer(t), 0, nil)

	_, err := g.EmbedBatch(context.Background(), []string{"one", "two"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestGateway_EmptyBatch(t *testing.T) {
	provider := &recordingProvider{}
	g := NewGateway(provider, newTestTokenizer(t), 0, nil)

	vectors, err := g.EmbedBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Empty(t, provider.inputs)
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{0.5, -1, 0}, toFloat32([]float64{0.5, -1, 0}))
}
