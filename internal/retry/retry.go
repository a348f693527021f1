// Package retry wraps transient-failure handling around embedding and
// generation calls. Policies are explicit objects so call sites declare how
// many attempts they tolerate and which errors are worth repeating; anything
// the predicate rejects fails fast on the first attempt.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxAttempts is the total number of tries including the first.
	DefaultMaxAttempts = 3
	// DefaultInitialInterval is the first backoff delay; subsequent delays
	// grow exponentially with jitter.
	DefaultInitialInterval = 1 * time.Second
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of tries including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// InitialInterval is the delay before the first retry. Zero means
	// DefaultInitialInterval.
	InitialInterval time.Duration

	// Retryable decides whether an error is transient. A nil predicate
	// retries every error.
	Retryable func(error) bool
}

// NewPolicy returns a Policy with the package defaults and the given
// transient-error predicate.
func NewPolicy(retryable func(error) bool) *Policy {
	return &Policy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		Retryable:       retryable,
	}
}

// Do runs op under the policy, sleeping with exponential backoff between
// attempts. It returns nil on the first success, the last error once
// attempts are exhausted, and immediately when the predicate marks an error
// permanent or ctx is done.
func (p *Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	interval := p.InitialInterval
	if interval <= 0 {
		interval = DefaultInitialInterval
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

// DoValue runs op under the policy and returns its result. The zero T is
// returned alongside the final error when all attempts fail.
func DoValue[T any](ctx context.Context, p *Policy, op func() (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
