package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const snapshotSchema = `CREATE TABLE IF NOT EXISTS rewrite_stats_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	replica     TEXT        NOT NULL,
	data        JSONB       NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Store persists periodic stats snapshots in Postgres so they survive a
// restart of the replica.
type Store struct {
	db      *sql.DB
	replica string
	logger  *slog.Logger
}

func NewStore(db *sql.DB, replica string) *Store {
	return &Store{
		db:      db,
		replica: replica,
		logger:  slog.Default().With("component", "analytics-store"),
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("creating snapshot table: %w", err)
	}
	return nil
}

func (s *Store) SaveSnapshot(ctx context.Context, stats AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rewrite_stats_snapshots (replica, data, captured_at) VALUES ($1, $2, $3)`,
		s.replica, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving stats snapshot: %w", err)
	}
	s.logger.Debug("stats snapshot saved", "total_rewrites", stats.TotalRewrites)
	return nil
}

// LatestSnapshot returns nil, nil when no snapshot exists yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*AggregatedStats, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM rewrite_stats_snapshots WHERE replica = $1 ORDER BY captured_at DESC LIMIT 1`,
		s.replica,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// StartPeriodicSave snapshots agg every interval and once more on shutdown.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
