package embedding

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaModel is a small local embedding model.
const DefaultOllamaModel = "nomic-embed-text"

// OllamaEmbedder generates embeddings with a local Ollama server.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

// NewOllamaEmbedder creates an embedder using client. An empty model selects DefaultOllamaModel.
func NewOllamaEmbedder(client *api.Client, model string) *OllamaEmbedder {
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaEmbedder{client: client, model: model}
}

// Embed returns one vector per text, in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	return resp.Embeddings, nil
}
