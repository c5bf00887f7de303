package clients

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
)

// RetryPolicy defines retry behavior for retryable failures
type RetryPolicy struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
}

// DefaultRetryPolicy returns a sensible default retry policy
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:      5,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}
}

// NoRetryPolicy returns a policy that doesn't retry
func NoRetryPolicy() *RetryPolicy {
	return &RetryPolicy{MaxRetries: 0}
}

func (rp *RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if rp.InitialDelay > 0 {
		b.InitialInterval = rp.InitialDelay
	}
	if rp.MaxDelay > 0 {
		b.MaxInterval = rp.MaxDelay
	}
	if rp.Multiplier > 0 {
		b.Multiplier = rp.Multiplier
	}
	b.RandomizationFactor = rp.RandomizeFactor
	return b
}

// Retry runs op until it succeeds, returns a non-retryable error, or the
// retry budget is spent. onRetry is called before each wait.
func Retry[T any](ctx context.Context, rp *RetryPolicy, op func() (T, error), onRetry func(err error, wait time.Duration)) (T, error) {
	if rp == nil {
		rp = NoRetryPolicy()
	}

	wrapped := func() (T, error) {
		res, err := op()
		if err != nil && !errors.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(rp.backOff()),
		backoff.WithMaxTries(uint(rp.MaxRetries) + 1),
		backoff.WithMaxElapsedTime(0),
	}
	if onRetry != nil {
		opts = append(opts, backoff.WithNotify(onRetry))
	}

	res, err := backoff.Retry(ctx, wrapped, opts...)
	if err == nil {
		return res, nil
	}

	// The attempt limit is checked before permanent errors are unwrapped.
	var permanent *backoff.PermanentError
	if stderrors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if ctxErr := ctx.Err(); ctxErr != nil && stderrors.Is(err, ctxErr) {
		return res, errors.Wrap(err, errors.ErrorTypeTimeout, "request cancelled")
	}
	return res, err
}

// retryAfter attaches a server-requested delay to err so the backoff loop
// waits that long before the next attempt.
func retryAfter(err *errors.Error, wait time.Duration) *errors.Error {
	if wait <= 0 {
		return err
	}
	err.Cause = &backoff.RetryAfterError{Duration: wait}
	return err
}
