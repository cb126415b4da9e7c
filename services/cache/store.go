// Package cache memoizes generated responses over a pluggable key-value Store.
package cache

import (
	"context"
	"time"
)

// Store is an external key-value store with per-key TTL.
// Get reports found=false for missing or expired keys without an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Pinger is implemented by stores that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}
