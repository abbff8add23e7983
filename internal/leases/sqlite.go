package leases

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/amp-memory/amp/internal/amperr"
)

// sqlExecutor is satisfied by storage.DB's underlying *sql.DB; it's declared
// narrowly here so this package does not import internal/storage, avoiding a
// dependency cycle (storage has no business depending on leases, but a
// plain *sql.DB handle lets this backend share the same database file).
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteManager is the fallback lease backend for deployments without
// Redis. It trades the Redis backend's cross-process speed for reuse of
// amp's existing SQLite database and transaction semantics.
type SQLiteManager struct {
	db sqlExecutor
}

// NewSQLiteManager builds a SQLiteManager over db (amp's main database
// connection, which already carries the leases table from migration 5).
func NewSQLiteManager(db sqlExecutor) *SQLiteManager {
	return &SQLiteManager{db: db}
}

// Acquire claims resource for holder for ttl.
func (m *SQLiteManager) Acquire(ctx context.Context, resource, holder string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	var existingHolder string
	var existingExpiry time.Time
	row := m.db.QueryRowContext(ctx, "SELECT holder, expires_at FROM leases WHERE resource = ?", resource)
	switch err := row.Scan(&existingHolder, &existingExpiry); {
	case errors.Is(err, sql.ErrNoRows):
		// no existing row; fall through to insert
	case err != nil:
		return "", time.Time{}, amperr.Storage("leases.Acquire", err)
	default:
		if existingExpiry.After(now) {
			return "", time.Time{}, amperr.Conflict("leases.Acquire", "resource "+resource+" is already leased")
		}
	}

	leaseID := resource + ":" + uuid.NewString()
	_, err := m.db.ExecContext(ctx, `
INSERT INTO leases (resource, holder, acquired_at, expires_at) VALUES (?, ?, ?, ?)
ON CONFLICT(resource) DO UPDATE SET holder = excluded.holder, acquired_at = excluded.acquired_at, expires_at = excluded.expires_at`,
		resource, leaseID+"|"+holder, now, expiresAt)
	if err != nil {
		return "", time.Time{}, amperr.Storage("leases.Acquire", err)
	}
	return leaseID, expiresAt, nil
}

// Renew extends a lease's TTL if it is still held and not expired.
func (m *SQLiteManager) Renew(ctx context.Context, leaseID string, ttl time.Duration) (time.Time, error) {
	resource, err := resourceFromLeaseID(leaseID)
	if err != nil {
		return time.Time{}, err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	var holder string
	var expiry time.Time
	row := m.db.QueryRowContext(ctx, "SELECT holder, expires_at FROM leases WHERE resource = ?", resource)
	if err := row.Scan(&holder, &expiry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, amperr.NotFound("leases.Renew", "lease "+leaseID+" not found")
		}
		return time.Time{}, amperr.Storage("leases.Renew", err)
	}
	if expiry.Before(now) || holderLeaseID(holder) != leaseID {
		return time.Time{}, amperr.NotFound("leases.Renew", "lease "+leaseID+" not found or expired")
	}

	if _, err := m.db.ExecContext(ctx, "UPDATE leases SET expires_at = ? WHERE resource = ?", expiresAt, resource); err != nil {
		return time.Time{}, amperr.Storage("leases.Renew", err)
	}
	return expiresAt, nil
}

// Release frees leaseID's resource.
func (m *SQLiteManager) Release(ctx context.Context, leaseID string) error {
	resource, err := resourceFromLeaseID(leaseID)
	if err != nil {
		return err
	}

	var holder string
	row := m.db.QueryRowContext(ctx, "SELECT holder FROM leases WHERE resource = ?", resource)
	if err := row.Scan(&holder); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return amperr.NotFound("leases.Release", "lease "+leaseID+" not found")
		}
		return amperr.Storage("leases.Release", err)
	}
	if holderLeaseID(holder) != leaseID {
		return amperr.NotFound("leases.Release", "lease "+leaseID+" not found or expired")
	}

	if _, err := m.db.ExecContext(ctx, "DELETE FROM leases WHERE resource = ?", resource); err != nil {
		return amperr.Storage("leases.Release", err)
	}
	return nil
}

// resourceFromLeaseID recovers the resource name this package encoded as
// the leaseID prefix in Acquire.
func resourceFromLeaseID(leaseID string) (string, error) {
	for i := len(leaseID) - 1; i >= 0; i-- {
		if leaseID[i] == ':' {
			return leaseID[:i], nil
		}
	}
	return "", amperr.InvalidInput("leases", "malformed lease id "+leaseID)
}

// holderLeaseID extracts the lease id half of a "leaseID|holder" value.
func holderLeaseID(stored string) string {
	for i := 0; i < len(stored); i++ {
		if stored[i] == '|' {
			return stored[:i]
		}
	}
	return stored
}
