package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"ogpimage/internal/failure"
	"ogpimage/internal/timeutil"
)

// Retry runs fn until it succeeds, returns a non-retryable error, or MaxAttempts
// is reached. Delays between attempts follow the exponential backoff in
// retryParam and are interrupted by ctx.
func Retry[T any](ctx context.Context, retryParam RetryParam, fn func() (T, failure.ClassifiedError)) (T, error) {
	var zero T
	if retryParam.MaxAttempts < 1 {
		return zero, &RetryError{Message: "max attempts cannot be 0", Cause: ErrZeroAttempt}
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))
	var lastErr failure.ClassifiedError
	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return zero, err
		}
		if attempt == retryParam.MaxAttempts {
			break
		}

		delay := timeutil.ExponentialBackoffDelay(attempt, retryParam.Jitter, rng, retryParam.BackoffParam)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &RetryError{Message: ctx.Err().Error(), Cause: ErrCanceled, Last: lastErr}
		case <-timer.C:
		}
	}

	return zero, &RetryError{
		Message: fmt.Sprintf("exhausted %d attempts, last error: %v", retryParam.MaxAttempts, lastErr),
		Cause:   ErrExhaustedAttempts,
		Last:    lastErr,
	}
}

func isRetryable(err failure.ClassifiedError) bool {
	if r, ok := err.(interface{ IsRetryable() bool }); ok {
		return r.IsRetryable()
	}
	return err.Severity() == failure.SeverityRecoverable
}
