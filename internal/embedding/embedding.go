// Package embedding turns chunk and query text into fixed-dimension vectors.
package embedding

import "context"

// Embedder generates vector embeddings from text. Implementations must be
// deterministic for identical input: retrieval results are required to be
// reproducible for a fixed corpus and query.
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName identifies the embedding model.
	ModelName() string
}
