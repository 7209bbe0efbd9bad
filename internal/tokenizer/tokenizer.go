// Package tokenizer provides the deterministic tokenizer shared by chunking,
// embedding truncation and prompt budgeting.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the BPE used by the OpenAI chat and embedding models.
const DefaultEncoding = "cl100k_base"

// Tokenizer converts text to a stable integer sequence and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
	Count(text string) int
}

var loaderOnce sync.Once

// Tiktoken is a Tokenizer backed by tiktoken-go with the BPE ranks embedded in
// the binary, so no download happens at runtime.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken returns a tokenizer for the named encoding.
// An empty name selects DefaultEncoding.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Encode returns the token ids for text. Special-token strings are encoded as
// ordinary text.
func (t *Tiktoken) Encode(text string) []int {
	if text == "" {
		return nil
	}
	return t.enc.Encode(text, nil, nil)
}

// Decode converts token ids back to text.
func (t *Tiktoken) Decode(tokens []int) string {
	if len(tokens) == 0 {
		return ""
	}
	return t.enc.Decode(tokens)
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	return len(t.Encode(text))
}
