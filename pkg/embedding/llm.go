package embedding

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
)

// ErrEmptyEmbedding is returned when the provider answers without a vector
var ErrEmptyEmbedding = goerr.New("embedding generation returned empty result")

// LLM embeds text with the embedding endpoint of a gollem LLM client
type LLM struct {
	client gollem.LLMClient
	dim    int
}

// LLMOption configures the LLM embedder
type LLMOption func(*LLM)

// WithDimension overrides the requested embedding dimension
func WithDimension(dim int) LLMOption {
	return func(e *LLM) {
		if dim > 0 {
			e.dim = dim
		}
	}
}

// NewLLM creates an embedder backed by client
func NewLLM(client gollem.LLMClient, opts ...LLMOption) *LLM {
	e := &LLM{
		client: client,
		dim:    model.LLMEmbeddingDimension,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimension returns the requested vector size
func (e *LLM) Dimension() int {
	return e.dim
}

// Embed generates a float32 embedding of text
func (e *LLM) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.client.GenerateEmbedding(ctx, e.dim, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.Wrap(ErrEmptyEmbedding, "no vector returned", goerr.V("dimension", e.dim))
	}

	embedding32 := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		embedding32[i] = float32(v)
	}
	return embedding32, nil
}
