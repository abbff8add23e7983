package leases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/storage"
)

func testManager(t *testing.T) *SQLiteManager {
	t.Helper()
	db, err := storage.Open(context.Background(), "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteManager(db.SQL())
}

func TestAcquireThenConflict(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	leaseID, expiresAt, err := m.Acquire(ctx, "repo-lock", "agent-1", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, leaseID)
	assert.True(t, expiresAt.After(time.Now().UTC()))

	_, _, err = m.Acquire(ctx, "repo-lock", "agent-2", time.Minute)
	require.Error(t, err)
	assert.Equal(t, amperr.KindConflict, amperr.KindOf(err))
}

func TestAcquireAfterExpiryReclaims(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	_, _, err := m.Acquire(ctx, "repo-lock", "agent-1", -time.Second)
	require.NoError(t, err)

	leaseID, _, err := m.Acquire(ctx, "repo-lock", "agent-2", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, leaseID)
}

func TestRenewExtendsExpiry(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	leaseID, firstExpiry, err := m.Acquire(ctx, "repo-lock", "agent-1", time.Minute)
	require.NoError(t, err)

	secondExpiry, err := m.Renew(ctx, leaseID, 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, secondExpiry.After(firstExpiry))
}

func TestRenewUnknownLeaseFails(t *testing.T) {
	m := testManager(t)
	_, err := m.Renew(context.Background(), "nope:"+uuid.NewString(), time.Minute)
	require.Error(t, err)
	assert.Equal(t, amperr.KindNotFound, amperr.KindOf(err))
}

func TestReleaseFreesResourceForReacquire(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	leaseID, _, err := m.Acquire(ctx, "repo-lock", "agent-1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, m.Release(ctx, leaseID))

	newLeaseID, _, err := m.Acquire(ctx, "repo-lock", "agent-2", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, newLeaseID)
}

func TestReleaseTwiceFailsSecondTime(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	leaseID, _, err := m.Acquire(ctx, "repo-lock", "agent-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, m.Release(ctx, leaseID))

	err = m.Release(ctx, leaseID)
	require.Error(t, err)
	assert.Equal(t, amperr.KindNotFound, amperr.KindOf(err))
}
