package storage

import (
	"context"

	"github.com/amp-memory/amp/internal/amperr"
)

// SettingsStore persists simple runtime key/value configuration overrides
// (e.g. retrieval weight tuning) that operators change via the HTTP API
// without restarting the daemon.
type SettingsStore struct {
	db *DB
}

// NewSettingsStore returns a SettingsStore backed by db.
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the stored value for key, or ok=false if unset.
func (s *SettingsStore) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	row := s.db.sqlDB.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key)
	if scanErr := row.Scan(&value); scanErr != nil {
		return "", false, nil
	}
	return value, true, nil
}

// Set stores a key/value pair, overwriting any existing value.
func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	_, err := s.db.sqlDB.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return amperr.Storage("SettingsStore.Set", err)
	}
	return nil
}

// All returns every setting as a map.
func (s *SettingsStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.sqlDB.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, amperr.Storage("SettingsStore.All", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, amperr.Storage("SettingsStore.All", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
