package backoff

import "context"

// Retry calls fn up to maxAttempts times, sleeping between attempts
// according to policy. Only errors for which retryable returns true are
// retried; a nil retryable retries everything. The last error from fn is
// returned when attempts run out, and ctx.Err() when ctx ends first.
func Retry[T any](ctx context.Context, policy Policy, maxAttempts int, retryable func(error) bool, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, err := fn(ctx, attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if retryable != nil && !retryable(err) {
			return zero, err
		}
		if attempt < maxAttempts {
			if err := Sleep(ctx, policy.Delay(attempt)); err != nil {
				return zero, err
			}
		}
	}
	return zero, lastErr
}
