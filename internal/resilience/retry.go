package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
)

// RetryConfig controls how often and how patiently an operation is retried.
type RetryConfig struct {
	// MaxAttempts counts the first try. 1 disables retries. Default 3.
	MaxAttempts int
	// BaseDelay is the backoff ceiling before the first retry; the ceiling
	// doubles per attempt up to MaxDelay. Default 500ms.
	BaseDelay time.Duration
	// MaxDelay caps every wait, including server-requested Retry-After
	// hints. Default 30s.
	MaxDelay time.Duration
	// Retryable selects the errors worth another attempt. Default
	// IsTransient.
	Retryable func(err error) bool
	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetryConfig returns the retry settings for calls to external
// services.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Retryable:   IsTransient,
	}
}

// ConflictRetryConfig retries an operation that lost an optimistic
// concurrency race. Waits are short: the competing writer has usually
// committed by the time the state is re-read.
func ConflictRetryConfig(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: maxAttempts,
		BaseDelay:   20 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
		Retryable:   errs.IsConflict,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Retryable == nil {
		c.Retryable = def.Retryable
	}
	return c
}

// Do runs fn until it succeeds, fails with a non-retryable error, runs out
// of attempts or ctx ends. The last error is returned.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if attempt >= cfg.MaxAttempts || ctx.Err() != nil || !cfg.Retryable(err) {
			return zero, err
		}

		wait := backoff(attempt, cfg, RetryAfter(err))
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

// backoff picks a full-jitter wait for the given attempt (1-based): uniform
// in [0, min(MaxDelay, BaseDelay*2^(attempt-1))]. A server hint raises the
// wait to at least hint, still capped by MaxDelay.
func backoff(attempt int, cfg RetryConfig, hint time.Duration) time.Duration {
	ceiling := cfg.BaseDelay
	for i := 1; i < attempt && ceiling < cfg.MaxDelay; i++ {
		ceiling *= 2
	}
	ceiling = min(ceiling, cfg.MaxDelay)

	wait := time.Duration(rand.Int64N(int64(ceiling) + 1))
	if hint > wait {
		wait = min(hint, cfg.MaxDelay)
	}
	return wait
}

// RetryLogger returns an OnRetry callback that logs each retry.
func RetryLogger(component, operation string) func(int, error, time.Duration) {
	return func(attempt int, err error, wait time.Duration) {
		zap.L().Warn("retrying operation",
			zap.String("component", component),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
}
