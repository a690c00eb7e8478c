package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a reusable retry policy. Each call site that used to carry its
// own ad-hoc retry loop parameterizes one of these instead.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Zero means retry until the context is done.
	MaxAttempts uint64
	// BaseDelay is the initial back-off interval.
	BaseDelay time.Duration
	// MaxDelay caps the back-off interval.
	MaxDelay time.Duration
	// Jitter is the randomization factor applied to each interval, 0..1.
	Jitter float64
}

// Do runs op with exponential back-off under the policy. It returns the
// last error once attempts are exhausted or the context is done.
func (p Policy) Do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if p.BaseDelay > 0 {
		b.InitialInterval = p.BaseDelay
	}
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0

	var bo backoff.BackOff = backoff.WithContext(b, ctx)
	if p.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, p.MaxAttempts-1)
	}

	return backoff.Retry(op, bo)
}

// Permanent marks err as non-retryable so Do stops immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
