package runner

import (
	"context"
	"time"
)

const defaultRetryDelay = 100 * time.Millisecond

// withRetry runs fn once plus up to maxRetries more times, doubling the
// pause between attempts. It gives up early when ctx ends.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}

	err := fn(ctx)
	for attempt, delay := 0, baseDelay; err != nil && attempt < maxRetries; attempt, delay = attempt+1, delay*2 {
		wait := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
		err = fn(ctx)
	}
	return err
}
