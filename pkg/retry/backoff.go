package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "igrelay/pkg/errors"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before the given retry attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ErrorAwareBackoff picks a delay from the failure that triggered the retry
type ErrorAwareBackoff interface {
	NextDelayFor(attempt int, err error) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	// BaseDelay is the initial delay duration
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor adds randomness to avoid thundering herd (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	return jitter(delay, eb.JitterFactor)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// ErrorTypeBackoff selects a strategy from the upstream error type
type ErrorTypeBackoff struct {
	// NetworkErrorBackoff for network-related errors
	NetworkErrorBackoff BackoffStrategy
	// RateLimitBackoff for 429 responses (longer delays)
	RateLimitBackoff BackoffStrategy
	// ServerErrorBackoff for 5xx errors
	ServerErrorBackoff BackoffStrategy
	// DefaultBackoff for other retryable errors
	DefaultBackoff BackoffStrategy
}

// NewErrorTypeBackoff derives per-type strategies from a base delay
func NewErrorTypeBackoff(base time.Duration, multiplier float64) *ErrorTypeBackoff {
	if base <= 0 {
		base = time.Second
	}
	if multiplier < 1 {
		multiplier = 2.0
	}

	return &ErrorTypeBackoff{
		NetworkErrorBackoff: &ExponentialBackoff{
			BaseDelay:    base,
			MaxDelay:     30 * base,
			Multiplier:   multiplier,
			JitterFactor: 0.2,
		},
		RateLimitBackoff: &ExponentialBackoff{
			BaseDelay:    15 * base,
			MaxDelay:     5 * time.Minute,
			Multiplier:   1.5,
			JitterFactor: 0.3,
		},
		ServerErrorBackoff: &ExponentialBackoff{
			BaseDelay:    2 * base,
			MaxDelay:     60 * base,
			Multiplier:   multiplier,
			JitterFactor: 0.1,
		},
		DefaultBackoff: &ExponentialBackoff{
			BaseDelay:    base,
			MaxDelay:     60 * base,
			Multiplier:   multiplier,
			JitterFactor: 0.1,
		},
	}
}

// NextDelay uses the default strategy when no error is known
func (etb *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	return etb.DefaultBackoff.NextDelay(attempt)
}

// NextDelayFor returns the delay for the strategy matching err's type
func (etb *ErrorTypeBackoff) NextDelayFor(attempt int, err error) time.Duration {
	return etb.ForType(errs.TypeOf(err)).NextDelay(attempt)
}

// ForType returns the strategy for an error type
func (etb *ErrorTypeBackoff) ForType(errorType errs.ErrorType) BackoffStrategy {
	switch errorType {
	case errs.ErrorTypeNetwork:
		return etb.NetworkErrorBackoff
	case errs.ErrorTypeRateLimit:
		return etb.RateLimitBackoff
	case errs.ErrorTypeServerError:
		return etb.ServerErrorBackoff
	default:
		return etb.DefaultBackoff
	}
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func jitter(delay, factor float64) time.Duration {
	if factor > 0 {
		spread := delay * factor
		delay += (rand.Float64() * 2 * spread) - spread
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
