// Package llm defines prompt messages and the generative model providers.
package llm

import (
	"context"
	"errors"
)

// ErrGenerationFailure wraps any error returned by a generative provider.
var ErrGenerationFailure = errors.New("generation failed")

// Role is the author of a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a prompt sent to a generator.
type Message struct {
	Role    Role
	Content string
}

// Options are per-call generation parameters.
type Options struct {
	Temperature     float64
	MaxOutputTokens int
}

// Generator produces a completion for an ordered list of messages.
type Generator interface {
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
	Model() string
}
