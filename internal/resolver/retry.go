package resolver

import (
	"context"
	"time"

	"github.com/tikrelay/tikrelay/internal/config"
)

// RetryPolicy bounds repeated attempts around an extractor call.
// Retries are capped, never infinite, so a permanently failing origin
// cannot stall a request forever.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// PolicyFromConfig builds a RetryPolicy from resolver configuration.
func PolicyFromConfig(cfg config.ResolverConfig) RetryPolicy {
	p := RetryPolicy{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.RetryDelay,
		MaxDelay:      cfg.MaxRetryDelay,
		BackoffFactor: cfg.BackoffFactor,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2.0
	}
	return p
}

// Retry executes fn with bounded backoff. Each attempt is a full
// re-invocation, not a sub-step retry. Context cancellation is honored
// between attempts so abandoned requests release resources promptly.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T

	delay := policy.InitialDelay

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Don't wait after the last attempt
		if attempt == policy.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * policy.BackoffFactor)
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return zero, lastErr
}
