package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiktoken_RoundTrip(t *testing.T) {
	tok, err := NewTiktoken("")
	require.NoError(t, err)

	texts := []string{
		"Hypertension is persistently elevated arterial blood pressure.",
		"Température élevée, 発熱, лихорадка",
		strings.Repeat("a ", 300),
	}
	for _, text := range texts {
		tokens := tok.Encode(text)
		assert.NotEmpty(t, tokens)
		assert.Equal(t, text, tok.Decode(tokens))
		assert.Equal(t, len(tokens), tok.Count(text))
	}
}

func TestTiktoken_Deterministic(t *testing.T) {
	a, err := NewTiktoken(DefaultEncoding)
	require.NoError(t, err)
	b, err := NewTiktoken(DefaultEncoding)
	require.NoError(t, err)

	text := "Metformin is a first-line medication for type 2 diabetes."
	assert.Equal(t, a.Encode(text), b.Encode(text))
}

func TestTiktoken_Empty(t *testing.T) {
	tok, err := NewTiktoken("")
	require.NoError(t, err)

	assert.Nil(t, tok.Encode(""))
	assert.Equal(t, "", tok.Decode(nil))
	assert.Equal(t, 0, tok.Count(""))
}

func TestNewTiktoken_UnknownEncoding(t *testing.T) {
	_, err := NewTiktoken("no_such_encoding")
	assert.Error(t, err)
}
