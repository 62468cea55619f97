package externaldata

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy configures exponential backoff with jitter for provider
// fetches, per spec.md §4.6: base·2^attempt + jitter, capped at maxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// FetchError carries the HTTP status (0 for non-HTTP failures) that
// determines whether an error is retryable.
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string { return e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// IsRetryable classifies an error per spec.md §4.6: 4xx other than 429 is
// terminal; 5xx, 429, and non-HTTP (network/timeout) errors are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	fe, ok := err.(*FetchError)
	if !ok {
		return true
	}
	if fe.StatusCode == 0 {
		return true
	}
	if fe.StatusCode == 429 {
		return true
	}
	return fe.StatusCode >= 500
}

// FetchOperation is a provider call the policy retries on failure.
type FetchOperation func(ctx context.Context) error

// Run executes operation under exponential backoff, following the same
// attempt-loop shape as the teacher's exchange.WithRetry, generalized to
// spec.md's HTTP-status retry classes and jitter.
func (p RetryPolicy) Run(ctx context.Context, provider string, operation FetchOperation) error {
	var lastErr error
	delay := p.BaseDelay

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("externaldata: %s fetch cancelled: %w", provider, ctx.Err())
		default:
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		jitter := time.Duration(rand.Int63n(int64(delay) / 2))
		wait := delay + jitter
		if wait > p.MaxDelay {
			wait = p.MaxDelay
		}

		log.Warn().Str("provider", provider).Err(err).Int("attempt", attempt+1).Dur("wait", wait).Msg("external data fetch failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("externaldata: %s fetch cancelled during backoff: %w", provider, ctx.Err())
		case <-time.After(wait):
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("externaldata: %s fetch failed after %d attempts: %w", provider, p.MaxAttempts, lastErr)
}
