package port

import (
	"context"
	"time"
)

// Cache is the key-value surface the conversation-metadata cache relies on:
// read an entry, write it with a TTL, and drop it when the inbox worker
// invalidates. Implementations must be safe for concurrent use.
type Cache interface {
	// Get fetches the value for key. Misses are reported as ("", ErrMiss);
	// a non-nil error otherwise means a transport or server failure.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. Zero or negative TTL means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes one or more keys and returns how many were removed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Close releases any resources held by the cache.
	Close() error
}

// ErrMiss signals a cache miss in a typed way so callers can tell misses
// apart from transport errors.
var ErrMiss = errMiss{}

type errMiss struct{}

func (e errMiss) Error() string { return "cache: miss" }
