package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// Retryable reports whether a failed attempt is worth repeating. Nil
	// retries everything except a cancelled or expired caller context.
	Retryable func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

// Backoff is the jittered delay after the given failed attempt (1-based),
// capped at MaxDelay.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	backoff := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	backoff += backoff * c.JitterFraction * (2*rand.Float64() - 1)
	if backoff > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	if backoff < 0 {
		return c.InitialDelay
	}
	return time.Duration(backoff)
}

// Retry calls fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. The last error is wrapped.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: retry aborted: %w", name, err)
		}
		if !retryable(cfg, err) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%s: all %d attempts failed: %w", name, cfg.MaxAttempts, err)
		}

		delay := cfg.Backoff(attempt)
		logger.Warn("attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"next_delay", delay,
			"error", err,
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry aborted during backoff: %w", name, errors.Join(ctx.Err(), err))
		}
	}
}

func retryable(cfg RetryConfig, err error) bool {
	if cfg.Retryable != nil {
		return cfg.Retryable(err)
	}
	return !errors.Is(err, context.Canceled)
}
