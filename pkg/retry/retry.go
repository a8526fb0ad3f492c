package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy is a bounded retry loop with a fixed delay between attempts.
// It is shared by the broker connection manager and the event publisher.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// Retryable reports whether an error is worth another attempt.
	// A nil Retryable retries every error.
	Retryable func(err error) bool

	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, err error, next time.Duration)
}

// Fixed returns a policy of n attempts separated by delay.
func Fixed(n int, delay time.Duration) Policy {
	return Policy{MaxAttempts: n, Delay: delay}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs op until it succeeds, fails permanently, or the policy is exhausted.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	tries := 0
	permanent := false
	operation := func() (T, error) {
		tries++
		v, err := op(ctx)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			permanent = true
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
			p.OnRetry(tries, err, next)
		}))
	}

	v, err := backoff.Retry(ctx, operation, opts...)
	if err == nil || permanent {
		return v, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return v, err
	}
	return v, &ExhaustedError{Attempts: tries, Err: err}
}
