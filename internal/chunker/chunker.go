// Package chunker splits text into overlapping, token-bounded chunks for embedding.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bull/medrag/internal/tokenizer"
)

// maxAlignShift bounds how far a window edge may move to avoid cutting a rune.
const maxAlignShift = 8

// Chunk is a token-aligned slice of a source document.
type Chunk struct {
	Text  string // Decoded text of tokens[Start:End]
	Index int    // Position in document (0, 1, 2...)
	Total int    // Number of chunks produced for the document
	Start int    // First token offset (inclusive)
	End   int    // Last token offset (exclusive)
}

// Chunker produces sliding-window chunks over a token sequence.
type Chunker struct {
	tok tokenizer.Tokenizer
}

// New creates a chunker. The tokenizer must be the same one used for prompt
// budgeting so that token costs agree.
func New(tok tokenizer.Tokenizer) *Chunker {
	return &Chunker{tok: tok}
}

// ValidateParams checks chunkSize and overlap without chunking anything.
func ValidateParams(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfiguration, chunkSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrConfiguration, overlap)
	}
	if overlap >= chunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrConfiguration, overlap, chunkSize)
	}
	return nil
}

// Chunk slides a window of chunkSize tokens over text, advancing by
// chunkSize-overlap tokens. The last chunk holds the remainder.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Chunk(text string, chunkSize, overlap int) ([]Chunk, error) {
	if err := ValidateParams(chunkSize, overlap); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	tokens := c.tok.Encode(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	start := 0
	for {
		end := min(start+chunkSize, len(tokens))
		end = c.alignEnd(tokens, start, end)

		chunks = append(chunks, Chunk{
			Text:  c.tok.Decode(tokens[start:end]),
			Index: len(chunks),
			Start: start,
			End:   end,
		})

		if end >= len(tokens) {
			break
		}

		next := c.alignStart(tokens, end-overlap, end)
		if next <= start {
			next = start + 1
		}
		start = next
	}

	for i := range chunks {
		chunks[i].Total = len(chunks)
	}
	return chunks, nil
}

// alignEnd moves end back while the boundary would cut a multi-byte rune.
// The window never shrinks below one token.
func (c *Chunker) alignEnd(tokens []int, start, end int) int {
	for shift := 0; shift < maxAlignShift; shift++ {
		candidate := end - shift
		if candidate <= start {
			break
		}
		if !c.splitsRune(tokens, candidate) {
			return candidate
		}
	}
	return end
}

// alignStart moves start forward while the boundary would cut a multi-byte rune.
// The result stays below limit.
func (c *Chunker) alignStart(tokens []int, start, limit int) int {
	for shift := 0; shift < maxAlignShift; shift++ {
		candidate := start + shift
		if candidate >= limit {
			break
		}
		if !c.splitsRune(tokens, candidate) {
			return candidate
		}
	}
	return start
}

// splitsRune reports whether the boundary before tokens[at] falls inside a rune.
func (c *Chunker) splitsRune(tokens []int, at int) bool {
	if at <= 0 || at >= len(tokens) {
		return false
	}
	tail := []byte(c.tok.Decode(tokens[max(0, at-utf8.UTFMax):at]))
	for i := len(tail) - 1; i >= 0 && i >= len(tail)-utf8.UTFMax; i-- {
		if utf8.RuneStart(tail[i]) {
			return !utf8.FullRune(tail[i:])
		}
	}
	return false
}
