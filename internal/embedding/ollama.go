package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	olla "github.com/ollama/ollama/api"
)

// DefaultOllamaBaseURL is the local Ollama endpoint.
const DefaultOllamaBaseURL = "http://localhost:11434"

// OllamaEmbedder generates embeddings via a local Ollama server. Use only
// with a pinned model: mixing model versions across index builds breaks
// score reproducibility.
type OllamaEmbedder struct {
	client *olla.Client
	model  string
	dims   int
}

// NewOllamaEmbedder creates an Ollama-backed embedder for the given model.
// dims must match the model's output size (e.g. 768 for nomic-embed-text).
func NewOllamaEmbedder(model, baseURL string, dims int) (*OllamaEmbedder, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embedder requires a model name")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("ollama embedder requires the model dimension, got %d", dims)
	}
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}

	hc := &http.Client{Timeout: 120 * time.Second}
	return &OllamaEmbedder{
		client: olla.NewClient(parsed, hc),
		model:  model,
		dims:   dims,
	}, nil
}

func (e *OllamaEmbedder) Dimensions() int { return e.dims }

func (e *OllamaEmbedder) ModelName() string { return "ollama/" + e.model }

// Embed requests a single embedding from the Ollama server.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings(ctx, &olla.EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedding: %w", err)
	}
	if len(resp.Embedding) != e.dims {
		return nil, fmt.Errorf("ollama returned %d dimensions, expected %d", len(resp.Embedding), e.dims)
	}
	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EmbedBatch embeds each text in order. The embeddings endpoint takes one
// prompt per call, so this loops rather than batching server-side.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
