package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/medrag/internal/tokenizer"
)

func newTestChunker(t *testing.T) (*Chunker, *tokenizer.Tiktoken) {
	t.Helper()
	tok, err := tokenizer.NewTiktoken("")
	require.NoError(t, err)
	return New(tok), tok
}

// TestChunk_SlidingWindowOffsets covers a 250-token document with size 100 and overlap 20.
func TestChunk_SlidingWindowOffsets(t *testing.T) {
	c, tok := newTestChunker(t)

	text := "a" + strings.Repeat(" a", 249)
	require.Equal(t, 250, tok.Count(text))

	chunks, err := c.Chunk(text, 100, 20)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	expected := [][2]int{{0, 100}, {80, 180}, {160, 250}}
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, 3, chunk.Total)
		assert.Equal(t, expected[i][0], chunk.Start, "chunk %d start", i)
		assert.Equal(t, expected[i][1], chunk.End, "chunk %d end", i)
	}
}

func TestChunk_ReconstructsTokenSequence(t *testing.T) {
	c, tok := newTestChunker(t)

	text := strings.Repeat("Asthma is a chronic inflammatory disease of the airways. ", 60)
	tokens := tok.Encode(text)

	chunks, err := c.Chunk(text, 64, 16)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	var rebuilt []int
	prevEnd := 0
	for _, chunk := range chunks {
		assert.Equal(t, tok.Decode(tokens[chunk.Start:chunk.End]), chunk.Text)
		assert.LessOrEqual(t, chunk.End-chunk.Start, 64)
		rebuilt = append(rebuilt, tokens[prevEnd:chunk.End]...)
		prevEnd = chunk.End
	}
	assert.Equal(t, tokens, rebuilt)
}

func TestChunk_ShortTextIsSingleChunk(t *testing.T) {
	c, tok := newTestChunker(t)

	text := "Migraine headaches are often accompanied by nausea."
	n := tok.Count(text)

	for _, size := range []int{n, n + 1, 1000} {
		chunks, err := c.Chunk(text, size, 0)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0].Text)
		assert.Equal(t, 1, chunks[0].Total)
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	c, _ := newTestChunker(t)

	for _, text := range []string{"", "   ", "\n\t \n"} {
		chunks, err := c.Chunk(text, 100, 20)
		assert.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestChunk_InvalidParams(t *testing.T) {
	c, _ := newTestChunker(t)

	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 50, 80},
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Chunk("some text", tt.size, tt.overlap)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestChunk_MultiByteTextStaysValidUTF8(t *testing.T) {
	c, _ := newTestChunker(t)

	text := strings.Repeat("高血压是一种常见的慢性疾病，需要长期管理。", 20)

	chunks, err := c.Chunk(text, 32, 8)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk.Text), "chunk %d is not valid UTF-8", chunk.Index)
	}
}
