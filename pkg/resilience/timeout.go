package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
)

// WithTimeout runs fn with a context that expires after timeout and stops
// waiting for it at that point. An expired call returns an error matching
// both apperrors.ErrTimeout and context.DeadlineExceeded. timeout <= 0 runs
// fn directly.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(callCtx) }()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w after %v: %w", name, apperrors.ErrTimeout, timeout, context.DeadlineExceeded)
	}
}
