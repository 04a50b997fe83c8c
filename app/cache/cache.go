package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

// Cache abstracts the shared key-value store backing idempotency records,
// status records and rate-limit counters. Values are opaque blobs and are
// round-tripped exactly. Increment and SetNX must be atomic with respect
// to concurrent callers on the same key.
type Cache interface {
	// Get returns the value for key, or ErrNotFound when absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only when the key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Increment adds one to the integer at key, creating it at 1 when absent.
	Increment(ctx context.Context, key string) (int64, error)
	// Expire attaches a ttl to an existing key. No-op when the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)
}
