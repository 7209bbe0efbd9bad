package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	// DefaultOllamaHost is where a local Ollama server listens.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a small local chat model.
	DefaultOllamaModel = "llama3.2:1b"
)

// NewOllamaClient creates an Ollama API client for host.
// The HTTP client has no timeout; callers bound each request with a context.
func NewOllamaClient(host string) (*api.Client, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return api.NewClient(base, &http.Client{}), nil
}

// OllamaGenerator calls a local Ollama server's chat endpoint.
type OllamaGenerator struct {
	client *api.Client
	model  string
}

// NewOllamaGenerator creates a generator for model.
func NewOllamaGenerator(client *api.Client, model string) *OllamaGenerator {
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaGenerator{client: client, model: model}
}

// Model returns the chat model name.
func (g *OllamaGenerator) Model() string {
	return g.model
}

// Generate runs a non-streaming chat request.
func (g *OllamaGenerator) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	chat := make([]api.Message, len(messages))
	for i, m := range messages {
		chat[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}

	options := map[string]interface{}{
		"temperature": opts.Temperature,
	}
	if opts.MaxOutputTokens > 0 {
		options["num_predict"] = opts.MaxOutputTokens
	}

	stream := false
	req := &api.ChatRequest{
		Model:    g.model,
		Messages: chat,
		Stream:   &stream,
		Options:  options,
	}

	start := time.Now()
	var answer strings.Builder
	err := g.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		answer.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: ollama chat after %s: %w", ErrGenerationFailure, time.Since(start).Round(time.Millisecond), err)
	}

	return answer.String(), nil
}
