package chainadapter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy implements the exponential backoff spec.md §4.5/§5
// mandates for outbound transaction submission: base 1s, cap 60s, up to
// MaxAttempts tries. This package does no fee bumping, and the htlc
// machine submits refund transactions under the same policy as every
// other leg transaction.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy matches spec.md's stated defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicyWithMaxAttempts(8)
}

// RetryPolicyWithMaxAttempts is DefaultRetryPolicy with limits.max_tx_attempts
// (spec.md §6) supplied explicitly instead of defaulted.
func RetryPolicyWithMaxAttempts(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		MaxAttempts: maxAttempts,
	}
}

func (p RetryPolicy) backoffFor(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.MaxInterval = p.MaxDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.2
	eb.MaxElapsedTime = 0 // bounded by MaxAttempts via WithMaxRetries below
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)), ctx)
}

// Do retries op under the policy, giving up after MaxAttempts or when op
// returns a non-transient AdapterError.
func Do(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		var aerr *AdapterError
		if errors.As(err, &aerr) && !aerr.Transient() {
			return backoff.Permanent(err)
		}
		return err
	}, policy.backoffFor(ctx))
}
