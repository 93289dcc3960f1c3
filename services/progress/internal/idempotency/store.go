// Package idempotency deduplicates playback events delivered more than once
// by JetStream.
//
// Primary backend: Redis SETNX with TTL (REDIS_URL).
// Fallback: Postgres INSERT ... ON CONFLICT into processed_events.
// Without either, an in-memory store is used (development only).
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store checks whether an event has already been processed and marks it.
type Store interface {
	// Check returns true if eventID was already processed.
	// If not seen, it atomically marks it as processed.
	Check(ctx context.Context, eventID string) (duplicate bool, err error)
}

// NewStore creates the best available store: Redis > Postgres > in-memory.
// In production the in-memory fallback is refused.
func NewStore(redisURL string, pool *pgxpool.Pool, ttl time.Duration, isProd bool) (Store, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if redisURL != "" {
		return newRedisStore(redisURL, ttl), nil
	}
	if pool != nil {
		return newPostgresStore(pool), nil
	}
	if isProd {
		return nil, errors.New("production requires REDIS_URL or DATABASE_URL for event deduplication; in-memory store is not allowed")
	}
	return newMemoryStore(), nil
}
