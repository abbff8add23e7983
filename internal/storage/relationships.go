package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/metrics"
	"github.com/amp-memory/amp/internal/model"
)

// RelationshipStore implements C2: typed, directed edges between objects,
// one SQL table per relation type so each edge type can carry its own
// indexes and be scanned independently.
type RelationshipStore struct {
	db *DB
}

// NewRelationshipStore returns a RelationshipStore backed by db.
func NewRelationshipStore(db *DB) *RelationshipStore {
	return &RelationshipStore{db: db}
}

// Relate inserts a directed edge. Re-relating the same (source, type, target)
// triple is a no-op rather than an error, since indexing re-runs routinely
// rediscover edges that already exist.
func (s *RelationshipStore) Relate(ctx context.Context, rel model.Relationship) error {
	start := time.Now()
	defer func() {
		metrics.StoreOperationDuration.WithLabelValues("relate").Observe(time.Since(start).Seconds())
	}()

	table := relTable(string(rel.Type))
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	q := fmt.Sprintf(`INSERT INTO %s (source_id, target_id, created_at) VALUES (?, ?, ?)
ON CONFLICT(source_id, target_id) DO NOTHING`, table)
	if _, err := s.db.sqlDB.ExecContext(ctx, q, rel.SourceID, rel.TargetID, rel.CreatedAt.UTC()); err != nil {
		metrics.StoreOperationErrorsTotal.WithLabelValues("relate", "exec").Inc()
		return amperr.Storage("RelationshipStore.Relate", err)
	}
	metrics.RelationshipsTotal.WithLabelValues(string(rel.Type)).Inc()
	return nil
}

// Unrelate removes a single directed edge.
func (s *RelationshipStore) Unrelate(ctx context.Context, relType model.RelationType, sourceID, targetID string) error {
	table := relTable(string(relType))
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	q := fmt.Sprintf("DELETE FROM %s WHERE source_id = ? AND target_id = ?", table)
	if _, err := s.db.sqlDB.ExecContext(ctx, q, sourceID, targetID); err != nil {
		return amperr.Storage("RelationshipStore.Unrelate", err)
	}
	return nil
}

// EdgesOf returns every relationship of relType touching objectID, in the
// given direction.
func (s *RelationshipStore) EdgesOf(ctx context.Context, relType model.RelationType, objectID string, dir model.Direction) ([]model.Relationship, error) {
	table := relTable(string(relType))

	var q string
	switch dir {
	case model.DirectionOut:
		q = fmt.Sprintf("SELECT source_id, target_id, created_at FROM %s WHERE source_id = ?", table)
	case model.DirectionIn:
		q = fmt.Sprintf("SELECT source_id, target_id, created_at FROM %s WHERE target_id = ?", table)
	default:
		q = fmt.Sprintf("SELECT source_id, target_id, created_at FROM %s WHERE source_id = ? OR target_id = ?", table)
	}

	var rows interface {
		Close() error
		Next() bool
		Scan(...any) error
		Err() error
	}
	var err error
	if dir == model.DirectionAny {
		rows, err = s.db.sqlDB.QueryContext(ctx, q, objectID, objectID)
	} else {
		rows, err = s.db.sqlDB.QueryContext(ctx, q, objectID)
	}
	if err != nil {
		return nil, amperr.Storage("RelationshipStore.EdgesOf", err)
	}
	defer rows.Close()

	var out []model.Relationship
	for rows.Next() {
		var r model.Relationship
		if err := rows.Scan(&r.SourceID, &r.TargetID, &r.CreatedAt); err != nil {
			return nil, amperr.Storage("RelationshipStore.EdgesOf", err)
		}
		r.Type = relType
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, amperr.Storage("RelationshipStore.EdgesOf", err)
	}
	return out, nil
}

// Neighbors returns the set of object IDs reachable from objectID by a
// single hop of relType in the given direction. This is the primitive C6's
// iterative BFS/DFS builds on.
func (s *RelationshipStore) Neighbors(ctx context.Context, objectID string, relType model.RelationType, dir model.Direction) ([]string, error) {
	edges, err := s.EdgesOf(ctx, relType, objectID, dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(edges))
	var out []string
	for _, e := range edges {
		var other string
		if e.SourceID == objectID {
			other = e.TargetID
		} else {
			other = e.SourceID
		}
		if other == objectID || seen[other] {
			continue
		}
		seen[other] = true
		out = append(out, other)
	}
	return out, nil
}

// NeighborsAllTypes returns neighbors across every relation type, used when
// a traversal call does not restrict to a single edge type.
func (s *RelationshipStore) NeighborsAllTypes(ctx context.Context, objectID string, dir model.Direction) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, rt := range model.RelationTypes {
		ns, err := s.Neighbors(ctx, objectID, rt, dir)
		if err != nil {
			return nil, err
		}
		for _, n := range ns {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out, nil
}

// DeleteEdgesOf removes every edge (in every relation type, either
// direction) touching objectID. Callers use this to clean up relationships
// before or after deleting the object itself.
func (s *RelationshipStore) DeleteEdgesOf(ctx context.Context, objectID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	tx, err := s.db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return amperr.Storage("RelationshipStore.DeleteEdgesOf", err)
	}
	defer tx.Rollback()

	for _, rt := range model.RelationTypes {
		table := relTable(string(rt))
		q := fmt.Sprintf("DELETE FROM %s WHERE source_id = ? OR target_id = ?", table)
		if _, err := tx.ExecContext(ctx, q, objectID, objectID); err != nil {
			return amperr.Storage("RelationshipStore.DeleteEdgesOf", err)
		}
	}
	return tx.Commit()
}
