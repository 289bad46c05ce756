package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often Store.Tx re-runs a transaction that lost an
// optimistic concurrency race.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first one
	BaseBackoff time.Duration // delay before the second attempt
	MaxBackoff  time.Duration // cap on the interval before jitter is applied
}

// DefaultRetryPolicy returns five attempts with 10ms..200ms jittered backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseBackoff: 10 * time.Millisecond, MaxBackoff: 200 * time.Millisecond}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = time.Millisecond
	}
	if p.MaxBackoff < p.BaseBackoff {
		p.MaxBackoff = p.BaseBackoff
	}
	return p
}

// backOff returns a jittered exponential schedule that stops after
// MaxAttempts-1 retries or when ctx ends.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.BaseBackoff),
		backoff.WithMaxInterval(p.MaxBackoff),
		backoff.WithMultiplier(2),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// RunTx calls attempt until it succeeds, fails with an error that
// retryable rejects, the context ends, or the policy is exhausted.  The
// final conflict is returned wrapped in ErrTxConflict.
func RunTx(ctx context.Context, p RetryPolicy, retryable func(error) bool, attempt func() error) error {
	p = p.normalized()
	err := backoff.Retry(func() error {
		err := attempt()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx))
	if err == nil || !retryable(err) {
		return err
	}
	if errors.Is(err, ErrTxConflict) {
		return fmt.Errorf("gave up after %d attempts: %w", p.MaxAttempts, err)
	}
	return fmt.Errorf("gave up after %d attempts: %w: %v", p.MaxAttempts, ErrTxConflict, err)
}
