package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Store là contract cho key-value store có TTL.
// Redis trong multi-instance deployment, in-memory cho dev và test.
type Store interface {
	// AdmitOnce stores value under key only if key is absent.
	// Returns true when this call created the key. Check-and-insert is atomic.
	AdmitOnce(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the stored value or ErrCacheMiss.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes keys, missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Ping kiểm tra connection
	Ping(ctx context.Context) error
}
