package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rememo/rememo/internal/domain/entities"
)

// maxRetries bounds local retries of transient provider failures before the
// error is surfaced to the caller.
const maxRetries = 3

// retryTransient runs op, retrying with exponential backoff while the error
// is transient per the error taxonomy. Configuration errors such as
// ErrDimensionMismatch are returned immediately.
func retryTransient(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ExponentialBackOff{
		InitialInterval:     200 * time.Millisecond,
		RandomizationFactor: 0.2,
		Multiplier:          2,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      30 * time.Second,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}, maxRetries), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		err = entities.ClassifyDeadline(err)
		if !entities.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
