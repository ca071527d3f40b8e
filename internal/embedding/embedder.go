package embedding

import "context"

// Embedder converts free text into a numeric vector representation.
// Embeddings are computed by the configured implementation, never by the
// retrieval core itself.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}
