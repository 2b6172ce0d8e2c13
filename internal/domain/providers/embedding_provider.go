package providers

import "context"

// EmbeddingProvider turns text into a dense vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
