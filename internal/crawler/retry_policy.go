package crawler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"
)

// RetryPolicy decides whether and when a failed attempt is repeated.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// RetryConfig tunes an ExponentialRetryPolicy.
// MaxAttempts of zero retries forever.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// ExponentialRetryPolicy implements RetryPolicy with capped exponential backoff.
type ExponentialRetryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       bool
}

// NewExponentialRetryPolicy builds a policy, filling unset values with defaults.
func NewExponentialRetryPolicy(cfg RetryConfig) *ExponentialRetryPolicy {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 2 * time.Second
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	return &ExponentialRetryPolicy{
		maxAttempts:  cfg.MaxAttempts,
		initialDelay: cfg.InitialDelay,
		maxDelay:     cfg.MaxDelay,
		multiplier:   cfg.Multiplier,
		jitter:       cfg.Jitter,
	}
}

// FixedRetryPolicy retries with a constant delay, the shape of the readiness poll.
func FixedRetryPolicy(maxAttempts int, delay time.Duration) *ExponentialRetryPolicy {
	return NewExponentialRetryPolicy(RetryConfig{
		MaxAttempts:  maxAttempts,
		InitialDelay: delay,
		MaxDelay:     delay,
		Multiplier:   1,
	})
}

// MaxAttempts reports the attempt ceiling; zero means unbounded.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether the error is retryable after attempt tries.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if p.maxAttempts > 0 && attempt >= p.maxAttempts {
		return false
	}
	// Per-attempt timeouts surface as deadline errors too; the caller's
	// context is checked separately by Retry.
	return !errors.Is(err, ErrStructural)
}

// Backoff returns the wait duration before attempt+1.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.initialDelay) * math.Pow(p.multiplier, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	if !p.jitter {
		return time.Duration(delay)
	}
	return time.Duration(delay/2) + p.randomJitter(time.Duration(delay)/2)
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// RetryFunc is invoked before each sleep with the failed attempt number.
type RetryFunc func(attempt int, delay time.Duration, err error)

// Retry runs fn until it succeeds, the policy gives up, or ctx ends.
// Giving up on a retryable error wraps ErrExhausted.
func Retry(ctx context.Context, policy RetryPolicy, onRetry RetryFunc, fn func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry canceled: %w", ctx.Err())
		}
		if !policy.ShouldRetry(err, attempt) {
			if errors.Is(err, ErrStructural) {
				return err
			}
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}
		delay := policy.Backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
