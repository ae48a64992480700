package webclient

import (
	"context"
	"time"
)

// Retry runs fn, retrying with exponential backoff while retryable
// reports the returned error as transient. The last error is returned
// once attempts are exhausted or the context is cancelled.
func Retry(ctx context.Context, attempts int, initialDelay time.Duration, retryable func(error) bool, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 500 * time.Millisecond
	}
	delay := initialDelay
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !retryable(err) {
			return err
		}
		if i == attempts-1 {
			return err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	return err
}
