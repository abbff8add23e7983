package leases

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amp-memory/amp/internal/amperr"
)

const (
	cacheItemTTLPrefix  = "amp:cache:item:"
	cacheFrameTTLPrefix = "amp:cache:frame:"
)

// RedisTTLMirror satisfies internal/cache.TTLMirror, giving cache item/frame
// expiry a fast Redis-backed check alongside the authoritative SQLite TTL
// columns that GC ultimately enforces.
type RedisTTLMirror struct {
	client *redis.Client
}

// NewRedisTTLMirror builds a RedisTTLMirror over an existing client.
func NewRedisTTLMirror(client *redis.Client) *RedisTTLMirror {
	return &RedisTTLMirror{client: client}
}

// SetItemTTL records itemID's expiry in Redis.
func (m *RedisTTLMirror) SetItemTTL(ctx context.Context, itemID string, ttl time.Duration) error {
	if err := m.client.Set(ctx, cacheItemTTLPrefix+itemID, "1", ttl).Err(); err != nil {
		return amperr.Storage("leases.RedisTTLMirror.SetItemTTL", err)
	}
	return nil
}

// SetFrameTTL records scopeID's frame expiry in Redis.
func (m *RedisTTLMirror) SetFrameTTL(ctx context.Context, scopeID string, ttl time.Duration) error {
	if err := m.client.Set(ctx, cacheFrameTTLPrefix+scopeID, "1", ttl).Err(); err != nil {
		return amperr.Storage("leases.RedisTTLMirror.SetFrameTTL", err)
	}
	return nil
}
