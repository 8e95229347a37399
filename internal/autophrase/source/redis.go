package source

import (
	"context"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
)

// ListReader is the subset of the Redis client the loader needs.
type ListReader interface {
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// RedisLoader reads a phrase list stored as a Redis list, one line per
// element. location is the key.
type RedisLoader struct {
	client ListReader
}

func NewRedisLoader(client ListReader) *RedisLoader {
	return &RedisLoader{client: client}
}

func (l *RedisLoader) Lines(ctx context.Context, key string) ([]string, error) {
	lines, err := l.client.LRange(ctx, key, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("reading redis list %q: %w", key, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: redis phrase list %q is empty or missing", apperrors.ErrConfiguration, key)
	}
	return lines, nil
}
