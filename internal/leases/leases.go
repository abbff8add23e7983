// Package leases implements §5's lease abstraction: a time-bounded
// exclusive claim on a named resource, periodically renewed by its holder.
// Redis backs the primary implementation (SET NX PX for acquire, a Lua
// script for conditional renew/release so a holder can only touch its own
// lease); a SQLite-backed fallback covers deployments without Redis.
package leases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/amp-memory/amp/internal/amperr"
)

// Manager implements acquire/renew/release.
type Manager interface {
	Acquire(ctx context.Context, resource, holder string, ttl time.Duration) (leaseID string, expiresAt time.Time, err error)
	Renew(ctx context.Context, leaseID string, ttl time.Duration) (expiresAt time.Time, err error)
	Release(ctx context.Context, leaseID string) error
}

const (
	resourceKeyPrefix = "amp:lease:resource:"
	leaseKeyPrefix    = "amp:lease:id:"
)

// RedisManager is the primary lease backend. Each lease is tracked at two
// keys sharing one TTL: resourceKeyPrefix+resource holds the current lease
// id (so Acquire can SETNX for mutual exclusion) and leaseKeyPrefix+leaseID
// holds the resource name (so Renew/Release can work from lease id alone,
// matching the lease_id-only renew/release signature).
type RedisManager struct {
	client *redis.Client
}

// NewRedisManager builds a RedisManager over an existing client.
func NewRedisManager(client *redis.Client) *RedisManager {
	return &RedisManager{client: client}
}

// Acquire claims resource for holder for ttl, failing with KindConflict if
// already held by someone else.
func (m *RedisManager) Acquire(ctx context.Context, resource, holder string, ttl time.Duration) (string, time.Time, error) {
	leaseID := uuid.NewString()
	resourceKey := resourceKeyPrefix + resource

	ok, err := m.client.SetNX(ctx, resourceKey, leaseID, ttl).Result()
	if err != nil {
		return "", time.Time{}, amperr.Storage("leases.Acquire", err)
	}
	if !ok {
		return "", time.Time{}, amperr.Conflict("leases.Acquire", "resource "+resource+" is already leased")
	}

	if err := m.client.Set(ctx, leaseKeyPrefix+leaseID, resource, ttl).Err(); err != nil {
		m.client.Del(ctx, resourceKey)
		return "", time.Time{}, amperr.Storage("leases.Acquire", err)
	}
	return leaseID, time.Now().UTC().Add(ttl), nil
}

// renewScript bumps the TTL of both the lease-id key and its resource key,
// but only if the resource key still points at this lease id (i.e. no one
// else acquired the resource after this lease expired and was reclaimed).
// KEYS[1]=lease-id key, ARGV[1]=resource key prefix, ARGV[2]=lease id,
// ARGV[3]=ttl in milliseconds.
var renewScript = redis.NewScript(`
local resource = redis.call("GET", KEYS[1])
if not resource then return 0 end
local resourceKey = ARGV[1] .. resource
local current = redis.call("GET", resourceKey)
if current ~= ARGV[2] then return 0 end
redis.call("PEXPIRE", KEYS[1], ARGV[3])
redis.call("PEXPIRE", resourceKey, ARGV[3])
return 1
`)

// releaseScript deletes both the lease-id key and, if it still matches,
// the resource key. KEYS[1]=lease-id key, ARGV[1]=resource key prefix,
// ARGV[2]=lease id.
var releaseScript = redis.NewScript(`
local resource = redis.call("GET", KEYS[1])
if not resource then return 0 end
local resourceKey = ARGV[1] .. resource
local current = redis.call("GET", resourceKey)
if current == ARGV[2] then
	redis.call("DEL", resourceKey)
end
redis.call("DEL", KEYS[1])
return 1
`)

// Renew extends leaseID's TTL, failing with KindNotFound if it has already
// expired or been released.
func (m *RedisManager) Renew(ctx context.Context, leaseID string, ttl time.Duration) (time.Time, error) {
	key := leaseKeyPrefix + leaseID
	res, err := renewScript.Run(ctx, m.client, []string{key}, resourceKeyPrefix, leaseID, ttl.Milliseconds()).Int()
	if err != nil {
		return time.Time{}, amperr.Storage("leases.Renew", err)
	}
	if res == 0 {
		return time.Time{}, amperr.NotFound("leases.Renew", "lease "+leaseID+" not found or expired")
	}
	return time.Now().UTC().Add(ttl), nil
}

// Release frees leaseID's resource immediately.
func (m *RedisManager) Release(ctx context.Context, leaseID string) error {
	key := leaseKeyPrefix + leaseID
	res, err := releaseScript.Run(ctx, m.client, []string{key}, resourceKeyPrefix, leaseID).Int()
	if err != nil {
		return amperr.Storage("leases.Release", err)
	}
	if res == 0 {
		return amperr.NotFound("leases.Release", "lease "+leaseID+" not found or expired")
	}
	return nil
}
