package entities

import (
	"context"
	"errors"
)

// Sentinel errors shared across the service. Callers classify failures with
// errors.Is; transient provider errors may be retried, configuration errors
// must not be.
var (
	// ErrProviderUnavailable means the embedding or generation backend could
	// not be reached. Retryable with backoff.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrDimensionMismatch means a vector's length does not match the store
	// dimension. This is a configuration error (a model was swapped without
	// reindexing) and is never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingFailed means a specific embedding operation failed.
	// Retryable.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrSynthesisFailed means reflection or chat synthesis failed. Retrieval
	// results remain usable; callers degrade to notes-only responses.
	ErrSynthesisFailed = errors.New("synthesis failed")

	// ErrNotFound means a referenced entry, session or fact does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTimeout means an operation exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
)

// Retryable reports whether err is a transient failure worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrEmbeddingFailed) ||
		errors.Is(err, ErrSynthesisFailed) ||
		errors.Is(err, ErrTimeout)
}

// ClassifyDeadline maps context deadline errors onto ErrTimeout so callers
// see the taxonomy instead of raw context errors.
func ClassifyDeadline(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}
