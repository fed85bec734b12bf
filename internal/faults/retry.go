package faults

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"romcurator/internal/logging"
)

// RetryPolicy bounds the backoff schedule applied to transient failures.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy matches the engine defaults: three attempts starting at
// 250ms, capped at 5s between attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: 250 * time.Millisecond, MaxInterval: 5 * time.Second}
}

// Retry runs fn, retrying with exponential backoff only while the returned
// error classifies as transient. Any other class is returned immediately.
func Retry(ctx context.Context, logger *slog.Logger, policy RetryPolicy, operation string, fn func() error) error {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}

	expo := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		expo.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		expo.MaxInterval = policy.MaxInterval
	}

	attempt := 0
	wrapped := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !Retryable(err) || attempt >= policy.MaxAttempts {
			return backoff.Permanent(err)
		}
		if logger != nil {
			logger.Warn("transient failure, retrying",
				logging.String("operation", operation),
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(expo, uint64(policy.MaxAttempts)), ctx))
}
