package clients

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter blocks until a request may proceed
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// TokenBucketRateLimiter implements a token bucket rate limiter
type TokenBucketRateLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketRateLimiter creates a limiter allowing rps requests per
// second with bursts of up to burst requests. A burst below 1 is raised to 1.
func NewTokenBucketRateLimiter(rps float64, burst int) *TokenBucketRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketRateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or ctx is done
func (rl *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed now, consuming a token if so
func (rl *TokenBucketRateLimiter) Allow() bool {
	return rl.limiter.Allow()
}
