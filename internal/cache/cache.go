// Package cache provides the byte-level cache behind the repository
// decorators: Valkey in deployments, an in-memory map for development and
// tests.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value store with per-key expiration.
// Implementations return (nil, nil) from Get on a miss; a miss is not an
// error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A zero expiration means no expiry.
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	Close() error

	// Health reports whether the backing store is reachable.
	Health(ctx context.Context) error
}

// CacheError wraps a failed cache operation with the key and operation name,
// so repository logs can say which lookup went wrong.
type CacheError struct {
	Operation string
	Key       string
	Err       error
}

func (e *CacheError) Error() string {
	return "cache " + e.Operation + " failed for key '" + e.Key + "': " + e.Err.Error()
}

func (e *CacheError) Unwrap() error {
	return e.Err
}
