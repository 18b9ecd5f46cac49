// Package embeddings turns knowledge-base chunks and customer questions
// into vectors for retrieval.
package embeddings

import "context"

// Embedder generates text embeddings.
type Embedder interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the length of the vectors.
	Dimensions() int

	// Name identifies the embedding model. Indexes built with different
	// names are not comparable.
	Name() string
}
