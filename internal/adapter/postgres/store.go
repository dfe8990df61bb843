package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements the cache tier port on the analytics_aggregates
// table. It is the L3 tier: rows are written when aggregates are
// computed and refreshed by the rollup schedule, never invalidated
// synchronously.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the stored bytes for key if the row is not stale.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM analytics_aggregates
		 WHERE key = $1 AND (expires_at IS NULL OR expires_at > NOW())`,
		key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get aggregate %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the aggregate row, overwriting any previous value.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires any
	if ttl > 0 {
		expires = time.Now().UTC().Add(ttl)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analytics_aggregates (key, value, stored_at, expires_at)
		 VALUES ($1, $2, NOW(), $3)
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, stored_at = NOW(), expires_at = EXCLUDED.expires_at`,
		key, value, expires)
	if err != nil {
		return fmt.Errorf("upsert aggregate %s: %w", key, err)
	}
	return nil
}

// Delete removes the aggregate row for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM analytics_aggregates WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete aggregate %s: %w", key, err)
	}
	return nil
}

// DeletePattern removes every row whose key starts with prefix. The
// prefix LIKE rides the primary-key btree index (text_pattern_ops).
func (s *Store) DeletePattern(ctx context.Context, prefix string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM analytics_aggregates WHERE key LIKE $1 || '%'`, prefix)
	if err != nil {
		return 0, fmt.Errorf("delete aggregates %s*: %w", prefix, err)
	}
	return int(tag.RowsAffected()), nil
}

// SweepExpired deletes rows past their expiry and returns the count.
// Called from the background sweep schedule, not the request path.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM analytics_aggregates WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("sweep aggregates: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
