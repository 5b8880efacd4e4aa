package ports

import "context"

// IndexAdmin handles vector index lifecycle operations. This is separate
// from VectorIndex because not all implementations manage their own schema,
// and it keeps VectorIndex focused on data operations.
type IndexAdmin interface {
	// EnsureIndex creates the index or collection for the given vector
	// dimension if it doesn't exist. Fails with ErrDimensionMismatch if an
	// existing index was created with a different dimension.
	EnsureIndex(ctx context.Context, dimension int) error

	// DropIndex removes the index and all its vectors.
	DropIndex(ctx context.Context) error
}
