package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig configures exponential-backoff retry.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryConfig matches the webhook dispatch retry schedule: an
// initial attempt plus up to three retries, backing off roughly 1s/2s/4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     4,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
	}
}

// Retry executes fn with exponential backoff, stopping after cfg.MaxAttempts
// or when ctx is cancelled. A Permanent error (backoff.Permanent) stops
// retrying immediately and is returned unwrapped.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialInterval
	eb.MaxInterval = cfg.MaxInterval
	eb.Multiplier = cfg.Multiplier
	eb.MaxElapsedTime = 0

	withCap := backoff.WithMaxRetries(eb, uint64(cfg.MaxAttempts-1))
	withCtx := backoff.WithContext(withCap, ctx)

	return backoff.Retry(func() error {
		return fn(ctx)
	}, withCtx)
}

// Permanent wraps err so Retry stops immediately instead of continuing to
// back off, used when a collaborator responds with a non-retryable error
// (e.g. 4xx from a webhook endpoint).
func Permanent(err error) error {
	return backoff.Permanent(err)
}
