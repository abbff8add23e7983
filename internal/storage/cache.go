package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/metrics"
	"github.com/amp-memory/amp/internal/model"
)

// CacheStore persists C10's episodic cache items and per-scope frames.
type CacheStore struct {
	db *DB
}

// NewCacheStore returns a CacheStore backed by db.
func NewCacheStore(db *DB) *CacheStore {
	return &CacheStore{db: db}
}

const cacheItemColumns = "id, scope_id, artifact_id, kind, preview, facts, embedding, importance, access_count, provenance, created_at, updated_at, ttl_expires_at"

func scanCacheItem(row interface{ Scan(...any) error }) (*model.CacheItem, error) {
	var item model.CacheItem
	var embBlob []byte
	var factsJSON, provJSON, kind string
	if err := row.Scan(&item.ID, &item.ScopeID, &item.ArtifactID, &kind, &item.Preview, &factsJSON,
		&embBlob, &item.Importance, &item.AccessCount, &provJSON,
		&item.CreatedAt, &item.UpdatedAt, &item.TTLExpiresAt); err != nil {
		return nil, err
	}
	item.Kind = model.CacheItemKind(kind)
	if err := json.Unmarshal([]byte(factsJSON), &item.Facts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(provJSON), &item.Provenance); err != nil {
		return nil, err
	}
	if len(embBlob) > 0 {
		item.Embedding = decodeEmbedding(embBlob)
		item.HasEmbedding = true
	}
	return &item, nil
}

// PutItem inserts or replaces a cache item.
func (s *CacheStore) PutItem(ctx context.Context, item *model.CacheItem) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var embBlob []byte
	if item.HasEmbedding {
		embBlob = encodeEmbedding(item.Embedding)
	}
	factsJSON, err := json.Marshal(item.Facts)
	if err != nil {
		return amperr.Storage("CacheStore.PutItem", err)
	}
	provJSON, err := json.Marshal(item.Provenance)
	if err != nil {
		return amperr.Storage("CacheStore.PutItem", err)
	}

	_, err = s.db.sqlDB.ExecContext(ctx, `
INSERT INTO cache_items (id, scope_id, artifact_id, kind, preview, facts, embedding, importance, access_count, provenance, created_at, updated_at, ttl_expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	preview = excluded.preview, facts = excluded.facts, embedding = excluded.embedding,
	importance = excluded.importance, access_count = excluded.access_count,
	updated_at = excluded.updated_at, ttl_expires_at = excluded.ttl_expires_at`,
		item.ID, item.ScopeID, item.ArtifactID, string(item.Kind), item.Preview, string(factsJSON),
		embBlob, item.Importance, item.AccessCount, string(provJSON),
		item.CreatedAt.UTC(), item.UpdatedAt.UTC(), item.TTLExpiresAt.UTC())
	if err != nil {
		metrics.CacheItemsWritten.WithLabelValues("error").Inc()
		return amperr.Storage("CacheStore.PutItem", err)
	}
	metrics.CacheItemsWritten.WithLabelValues("ok").Inc()
	return nil
}

// GetItem retrieves a single cache item by ID.
func (s *CacheStore) GetItem(ctx context.Context, id string) (*model.CacheItem, error) {
	row := s.db.sqlDB.QueryRowContext(ctx, "SELECT "+cacheItemColumns+" FROM cache_items WHERE id = ?", id)
	item, err := scanCacheItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, amperr.NotFound("CacheStore.GetItem", "cache item "+id+" not found")
	}
	if err != nil {
		return nil, amperr.Storage("CacheStore.GetItem", err)
	}
	return item, nil
}

// ItemsByScope lists every non-expired cache item in scope.
func (s *CacheStore) ItemsByScope(ctx context.Context, scopeID string) ([]*model.CacheItem, error) {
	rows, err := s.db.sqlDB.QueryContext(ctx,
		"SELECT "+cacheItemColumns+" FROM cache_items WHERE scope_id = ? AND ttl_expires_at >= ?", scopeID, time.Now().UTC())
	if err != nil {
		return nil, amperr.Storage("CacheStore.ItemsByScope", err)
	}
	defer rows.Close()

	var out []*model.CacheItem
	for rows.Next() {
		item, err := scanCacheItem(rows)
		if err != nil {
			return nil, amperr.Storage("CacheStore.ItemsByScope", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteExpiredItems removes cache items whose TTL has passed as of now,
// returning the count reclaimed.
func (s *CacheStore) DeleteExpiredItems(ctx context.Context, now time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	res, err := s.db.sqlDB.ExecContext(ctx, "DELETE FROM cache_items WHERE ttl_expires_at < ?", now.UTC())
	if err != nil {
		return 0, amperr.Storage("CacheStore.DeleteExpiredItems", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, amperr.Storage("CacheStore.DeleteExpiredItems", err)
	}
	if n > 0 {
		metrics.CacheGCReclaimed.Add(float64(n))
	}
	return n, nil
}

// DeleteItem removes a cache item by ID.
func (s *CacheStore) DeleteItem(ctx context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, err := s.db.sqlDB.ExecContext(ctx, "DELETE FROM cache_items WHERE id = ?", id); err != nil {
		return amperr.Storage("CacheStore.DeleteItem", err)
	}
	return nil
}

// GetFrame retrieves the current frame for scope, or nil if none exists yet.
func (s *CacheStore) GetFrame(ctx context.Context, scopeID string) (*model.CacheFrame, error) {
	row := s.db.sqlDB.QueryRowContext(ctx,
		"SELECT scope_id, version, summary, token_count, updated_at, ttl_expires_at FROM cache_frames WHERE scope_id = ?", scopeID)

	var f model.CacheFrame
	if err := row.Scan(&f.ScopeID, &f.Version, &f.Summary, &f.TokenCount, &f.UpdatedAt, &f.TTLExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, amperr.NotFound("CacheStore.GetFrame", "cache frame for scope "+scopeID+" not found")
		}
		return nil, amperr.Storage("CacheStore.GetFrame", err)
	}
	return &f, nil
}

// PutFrame inserts or replaces the current frame for its scope.
func (s *CacheStore) PutFrame(ctx context.Context, frame *model.CacheFrame) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	_, err := s.db.sqlDB.ExecContext(ctx, `
INSERT INTO cache_frames (scope_id, version, summary, token_count, updated_at, ttl_expires_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(scope_id) DO UPDATE SET
	version = excluded.version, summary = excluded.summary, token_count = excluded.token_count,
	updated_at = excluded.updated_at, ttl_expires_at = excluded.ttl_expires_at`,
		frame.ScopeID, frame.Version, frame.Summary, frame.TokenCount, frame.UpdatedAt.UTC(), frame.TTLExpiresAt.UTC())
	if err != nil {
		return amperr.Storage("CacheStore.PutFrame", err)
	}
	return nil
}

// TouchFrameUpdatedAt bumps a frame's updated_at without changing its
// summary or version, used when write_items adds an item to an existing
// frame so staleness tracking reflects the latest activity.
func (s *CacheStore) TouchFrameUpdatedAt(ctx context.Context, scopeID string, now time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	_, err := s.db.sqlDB.ExecContext(ctx, "UPDATE cache_frames SET updated_at = ? WHERE scope_id = ?", now.UTC(), scopeID)
	if err != nil {
		return amperr.Storage("CacheStore.TouchFrameUpdatedAt", err)
	}
	return nil
}

// DeleteStaleFrames removes frames whose ttl_expires_at has passed as of
// now, returning the count reclaimed.
func (s *CacheStore) DeleteStaleFrames(ctx context.Context, now time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	res, err := s.db.sqlDB.ExecContext(ctx, "DELETE FROM cache_frames WHERE ttl_expires_at < ?", now.UTC())
	if err != nil {
		return 0, amperr.Storage("CacheStore.DeleteStaleFrames", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, amperr.Storage("CacheStore.DeleteStaleFrames", err)
	}
	if n > 0 {
		metrics.CacheGCReclaimed.Add(float64(n))
	}
	return n, nil
}
