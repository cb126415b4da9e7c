package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tradelens/ai-gateway/services/providers"
)

// DefaultTTL is how long a generated response stays reusable
const DefaultTTL = 300 * time.Second

// CacheEntry is the JSON document stored per cache key
type CacheEntry struct {
	Key      string          `json:"key"`
	Content  string          `json:"content"`
	Provider string          `json:"provider"`
	Model    string          `json:"model"`
	Usage    providers.Usage `json:"usage"`
	StoredAt time.Time       `json:"stored_at"`
}

// ResponseCache serializes CacheEntry values into a Store
type ResponseCache struct {
	store Store
	ttl   time.Duration
}

// NewResponseCache creates a ResponseCache. A non-positive ttl falls back to DefaultTTL.
func NewResponseCache(store Store, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{store: store, ttl: ttl}
}

// TTL returns the default entry lifetime
func (c *ResponseCache) TTL() time.Duration {
	return c.ttl
}

// Store returns the underlying store
func (c *ResponseCache) Store() Store {
	return c.store
}

// Get returns the entry for key, or nil on a miss
func (c *ResponseCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &entry, nil
}

// Set stores entry under key. A non-positive ttl uses the cache default.
func (c *ResponseCache) Set(ctx context.Context, key string, entry *CacheEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	stored := *entry
	stored.Key = key
	if stored.StoredAt.IsZero() {
		stored.StoredAt = time.Now().UTC()
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return c.store.Set(ctx, key, data, ttl)
}

// Key derives a deterministic cache key from the prompt and the
// fields that shape the response
func Key(prompt, model string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return "gen:" + hex.EncodeToString(h.Sum(nil))
}
