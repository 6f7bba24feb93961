package interfaces

import "context"

// Embedder turns text into a similarity embedding. Implementations must be
// deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
