package port

import (
	"context"
	"errors"
	"time"
)

// Cache is the minimal key-value contract used by the chat application,
// chiefly to memoize participant display names between directory scans.
// Implementations must be concurrency-safe and context-aware.
type Cache interface {
	// Get fetches the value for key. Misses return ErrMiss; a non-nil error
	// other than ErrMiss means transport or server failure.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. Zero or negative TTL means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes the given keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Close releases any resources held by the cache.
	Close() error
}

// ErrMiss signals a cache miss in a typed way, so callers can tell misses
// apart from transport errors.
var ErrMiss = errors.New("cache: miss")
