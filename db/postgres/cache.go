// Package postgres provides the Postgres implementation of cache.Backend.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"cashflow-calm/internal/cache"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// CacheBackend stores cache entries in a single cache_entries table. The
// model column records which generator wrote the payload; cleanup sweeps the
// whole table regardless of model.
type CacheBackend struct {
	db *sql.DB
}

// NewCacheBackend wraps an open database handle.
func NewCacheBackend(db *sql.DB) *CacheBackend {
	return &CacheBackend{db: db}
}

// EnsureSchema creates the cache table when it does not exist yet.
func (b *CacheBackend) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS cache_entries (
			id         UUID PRIMARY KEY,
			key        TEXT NOT NULL UNIQUE,
			model      TEXT NOT NULL,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries (expires_at);`
	if _, err := b.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure cache schema: %w", err)
	}
	return nil
}

func (b *CacheBackend) Get(ctx context.Context, key string) (*cache.Entry, error) {
	const query = `
		SELECT key, model, payload, created_at, expires_at
		FROM cache_entries
		WHERE key = $1`

	e := &cache.Entry{}
	err := b.db.QueryRowContext(ctx, query, key).
		Scan(&e.Key, &e.Model, &e.Payload, &e.CreatedAt, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return e, nil
}

func (b *CacheBackend) Upsert(ctx context.Context, e *cache.Entry) error {
	const query = `
		INSERT INTO cache_entries (id, key, model, payload, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			model      = EXCLUDED.model,
			payload    = EXCLUDED.payload,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`

	_, err := b.db.ExecContext(ctx, query,
		uuid.New(), e.Key, e.Model, e.Payload, e.CreatedAt, e.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

func (b *CacheBackend) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted cache entries: %w", err)
	}
	return count, nil
}
