package shared

import (
	"context"
	"errors"
	"time"
)

// RetryConflicts runs fn up to attempts times while it fails with ErrConflict.
// Backoff grows linearly from base. The last error is returned unchanged.
func RetryConflicts(ctx context.Context, attempts int, base time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil || !errors.Is(err, ErrConflict) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * base):
		}
	}
	return err
}
