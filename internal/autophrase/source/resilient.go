package source

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/resilience"
)

// IsTransient reports whether a loader error may go away on its own. A
// missing or empty list, an open breaker and a cancelled caller do not.
// Use it as the breaker's IsFailure so bad data never trips the breaker.
func IsTransient(err error) bool {
	return !errors.Is(err, apperrors.ErrConfiguration) &&
		!errors.Is(err, resilience.ErrCircuitOpen) &&
		!errors.Is(err, context.Canceled)
}

// Resilient wraps a network-backed loader with a per-attempt timeout,
// retries with backoff and an optional circuit breaker.
type Resilient struct {
	name    string
	next    Loader
	retry   resilience.RetryConfig
	timeout time.Duration
	breaker *resilience.CircuitBreaker
}

func NewResilient(name string, next Loader, attempts int, timeout time.Duration, breaker *resilience.CircuitBreaker) *Resilient {
	return &Resilient{
		name:    name,
		next:    next,
		retry:   resilience.RetryConfig{MaxAttempts: attempts, Retryable: IsTransient},
		timeout: timeout,
		breaker: breaker,
	}
}

func (r *Resilient) Lines(ctx context.Context, location string) ([]string, error) {
	var lines []string
	err := resilience.Retry(ctx, r.name, r.retry, func() error {
		attempt := func() error {
			var got []string
			err := resilience.WithTimeout(ctx, r.timeout, r.name, func(ctx context.Context) error {
				var err error
				got, err = r.next.Lines(ctx, location)
				return err
			})
			if err == nil {
				lines = got
			}
			return err
		}
		if r.breaker != nil {
			return r.breaker.Execute(attempt)
		}
		return attempt()
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}
