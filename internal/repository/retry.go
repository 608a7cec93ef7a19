package repository

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxRetryAttempts bounds how often a transient store failure is retried
// before it is surfaced to the caller as a retry-later condition.
const maxRetryAttempts = 3

// withRetry runs op, retrying transient failures with capped exponential
// backoff. Permanent errors (not-found, conflict, validation) abort
// immediately. Callers rely on op being atomic: an exhausted retry must
// not have partially applied.
func withRetry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetryAttempts), ctx))
}
