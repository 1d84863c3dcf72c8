// Package cache memoizes expensive, externally generated payloads (narrative
// text) under a TTL, keyed by a deterministic fingerprint of the numeric
// input. The store itself provides no mutual exclusion: two callers racing on
// the same miss may both do the work and both write, which is harmless
// because the cached value is a deterministic function of the key.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Entry is one cached payload. Upserted by key; a read is a miss once
// now >= ExpiresAt.
type Entry struct {
	Key       string
	Model     string
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Backend is the shared backing store. Concurrency control, if any, belongs
// to the backend, not to this package.
type Backend interface {
	// Get returns the entry for key, or nil when absent. Expiry is the
	// store's concern, not the backend's.
	Get(ctx context.Context, key string) (*Entry, error)

	// Upsert inserts the entry or overwrites an existing one with the same
	// key. Last writer wins.
	Upsert(ctx context.Context, e *Entry) error

	// DeleteExpired removes every entry with ExpiresAt <= now and returns
	// the count removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store is the TTL cache over a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore creates a cache store.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend, logger: slog.Default(), now: time.Now}
}

// WithLogger overrides the logger.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger
	return s
}

// WithClock overrides the time source. Tests use this to force expiry.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get unmarshals the cached payload for key into dest and reports whether it
// was a hit. Expired entries and payloads that fail to unmarshal are misses,
// never errors; only a backend failure is returned.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	e, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if e == nil || !e.ExpiresAt.After(s.now()) {
		s.logger.Debug("cache miss", "key", shortKey(key))
		return false, nil
	}
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		s.logger.Warn("cached payload failed to decode, treating as miss",
			"key", shortKey(key), "error", err)
		return false, nil
	}
	s.logger.Debug("cache hit", "key", shortKey(key))
	return true, nil
}

// Set marshals payload and upserts it under key with the given TTL. An
// existing entry has both its payload and its expiry refreshed.
func (s *Store) Set(ctx context.Context, key, model string, payload any, ttl time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cache set: marshaling payload: %w", err)
	}
	now := s.now()
	e := &Entry{
		Key:       key,
		Model:     model,
		Payload:   data,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.backend.Upsert(ctx, e); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// CleanupExpired batch-deletes every expired entry the backend holds,
// whatever model wrote it, and returns the count removed. Maintenance only;
// Get and Set never invoke it.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.backend.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	if count > 0 {
		s.logger.Info("cleaned up expired cache entries", "count", count)
	}
	return count, nil
}

func shortKey(key string) string {
	if len(key) > 16 {
		return key[:16]
	}
	return key
}
