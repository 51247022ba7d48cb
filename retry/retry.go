// Package retry runs an operation under a bounded attempt policy with a
// pluggable backoff schedule.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	ErrExhausted     = errors.New("retry: attempts exhausted")
	ErrInvalidPolicy = errors.New("retry: invalid policy")
)

// Policy describes how many times an operation is tried and how long to wait
// between tries. The zero value is not usable; start from Constant or
// Exponential.
type Policy struct {
	// MaxAttempts counts every call, including the first one.
	MaxAttempts int
	// NewBackOff returns a fresh schedule for one Do invocation.
	NewBackOff func() backoff.BackOff
	// Retryable reports whether err warrants another attempt. Nil means every
	// error except a permanent one is retried.
	Retryable func(error) bool
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Constant retries up to attempts times with a fixed delay.
func Constant(attempts int, delay time.Duration) Policy {
	return Policy{
		MaxAttempts: attempts,
		NewBackOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(delay)
		},
	}
}

// Exponential retries up to attempts times, doubling the delay from initial
// up to maxDelay. The schedule is deterministic.
func Exponential(attempts int, initial, maxDelay time.Duration) Policy {
	return Policy{
		MaxAttempts: attempts,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = maxDelay
			b.Multiplier = 2
			b.RandomizationFactor = 0
			b.MaxElapsedTime = 0
			b.Reset()
			return b
		},
	}
}

// WithRetryable returns a copy of p using fn as the retry predicate.
func (p Policy) WithRetryable(fn func(error) bool) Policy {
	p.Retryable = fn
	return p
}

// WithSleep returns a copy of p using fn to wait between attempts.
func (p Policy) WithSleep(fn func(ctx context.Context, d time.Duration) error) Policy {
	p.Sleep = fn
	return p
}

// WithOnRetry returns a copy of p that reports every retry to fn.
func (p Policy) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Policy {
	p.OnRetry = fn
	return p
}

func (p Policy) validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidPolicy, p.MaxAttempts)
	}
	return nil
}

// Permanent wraps err so that Do stops without consulting the predicate.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a non-retryable error, the context
// ends, or MaxAttempts calls have been made. It returns the result, the
// number of calls made and the final error. When the ceiling is reached the
// error wraps both ErrExhausted and the last failure.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	var zero T
	if err := p.validate(); err != nil {
		return zero, 0, err
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	var schedule backoff.BackOff = &backoff.ZeroBackOff{}
	if p.NewBackOff != nil {
		schedule = p.NewBackOff()
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, err
		}

		v, err := op(ctx, attempt)
		if err == nil {
			return v, attempt, nil
		}
		lastErr = err

		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return zero, attempt, perm.Unwrap()
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, attempt, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			return zero, attempt, fmt.Errorf("%w after %d attempts (schedule stopped): %w", ErrExhausted, attempt, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, attempt, err
		}
	}

	return zero, p.MaxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.MaxAttempts, lastErr)
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
