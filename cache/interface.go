// Package cache stores JSON-encodable responses for a fixed time.
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store whose entries expire on their own. Entries are
// never invalidated early: a cached page can be stale for up to its TTL.
type Cache interface {
	// Get decodes the entry for key into dst and reports whether it existed.
	Get(ctx context.Context, key string, dst any) (bool, error)

	// Set stores v under key for ttl.
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}
