package ports

import "context"

// Embedder defines the interface for generating vector embeddings.
// Implementations must be deterministic for a given (model, text) pair so
// that embeddings can be cached by content.
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vector embeddings for multiple texts, one vector
	// per input in the same order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed vector dimension produced by this embedder.
	Dimension() int
}
