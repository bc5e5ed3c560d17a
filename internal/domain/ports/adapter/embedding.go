package adapter

import "context"

// Embedder turns text into a query vector. Failures propagate as retrieval
// failures, never as silent empty results.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
