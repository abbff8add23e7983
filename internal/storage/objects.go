package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/metrics"
	"github.com/amp-memory/amp/internal/model"
)

// ObjectStore implements C1: the temporal, provenance-tagged object store.
type ObjectStore struct {
	db *DB
}

// NewObjectStore returns an ObjectStore backed by db.
func NewObjectStore(db *DB) *ObjectStore {
	return &ObjectStore{db: db}
}

// payload is the envelope of variant-specific fields persisted as one JSON
// document in the objects.payload column.
type payload struct {
	Tags      []string                `json:"tags,omitempty"`
	Symbol    *model.SymbolPayload    `json:"symbol,omitempty"`
	Decision  *model.DecisionPayload  `json:"decision,omitempty"`
	Changeset *model.ChangesetPayload `json:"changeset,omitempty"`
	Run       *model.RunPayload       `json:"run,omitempty"`
	Filelog   *model.FilelogPayload   `json:"filelog,omitempty"`
	Note      *model.NotePayload      `json:"note,omitempty"`
	Filechunk *model.FilechunkPayload `json:"filechunk,omitempty"`
}

func payloadOf(o *model.Object) payload {
	return payload{
		Tags:      o.Tags,
		Symbol:    o.Symbol,
		Decision:  o.Decision,
		Changeset: o.Changeset,
		Run:       o.Run,
		Filelog:   o.Filelog,
		Note:      o.Note,
		Filechunk: o.Filechunk,
	}
}

func (p payload) applyTo(o *model.Object) {
	o.Tags = p.Tags
	o.Symbol = p.Symbol
	o.Decision = p.Decision
	o.Changeset = p.Changeset
	o.Run = p.Run
	o.Filelog = p.Filelog
	o.Note = p.Note
	o.Filechunk = p.Filechunk
}

// Create inserts a new object. The object's ID, CreatedAt, and UpdatedAt
// must already be populated by the caller.
func (s *ObjectStore) Create(ctx context.Context, o *model.Object) error {
	return s.CreateBatch(ctx, []*model.Object{o})
}

// CreateBatch inserts multiple objects within a single transaction, so a
// partial indexing batch never leaves the store half-written.
func (s *ObjectStore) CreateBatch(ctx context.Context, objs []*model.Object) error {
	if len(objs) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		metrics.StoreOperationDuration.WithLabelValues("create_batch").Observe(time.Since(start).Seconds())
	}()

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	tx, err := s.db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		metrics.StoreOperationErrorsTotal.WithLabelValues("create_batch", "begin_tx").Inc()
		return amperr.Storage("ObjectStore.CreateBatch", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO objects (id, type, tenant_id, project_id, created_at, updated_at, provenance, embedding, payload)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return amperr.Storage("ObjectStore.CreateBatch", err)
	}
	defer stmt.Close()

	for _, o := range objs {
		provBytes, err := json.Marshal(o.Provenance)
		if err != nil {
			return amperr.Storage("ObjectStore.CreateBatch", err)
		}
		payloadBytes, err := json.Marshal(payloadOf(o))
		if err != nil {
			return amperr.Storage("ObjectStore.CreateBatch", err)
		}
		var embBlob []byte
		if o.HasEmbedding {
			embBlob = encodeEmbedding(o.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, o.ID, string(o.Type), o.TenantID, o.ProjectID,
			o.CreatedAt.UTC(), o.UpdatedAt.UTC(), string(provBytes), embBlob, string(payloadBytes)); err != nil {
			metrics.StoreOperationErrorsTotal.WithLabelValues("create_batch", "insert").Inc()
			return amperr.Storage("ObjectStore.CreateBatch", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return amperr.Storage("ObjectStore.CreateBatch", err)
	}

	for _, o := range objs {
		metrics.ObjectsTotal.WithLabelValues(string(o.Type)).Inc()
	}
	return nil
}

const objectColumns = "id, type, tenant_id, project_id, created_at, updated_at, provenance, embedding, payload"

func scanObject(row interface{ Scan(...any) error }) (*model.Object, error) {
	var (
		o          model.Object
		typ        string
		provBytes  string
		payloadStr string
		embBlob    []byte
	)
	if err := row.Scan(&o.ID, &typ, &o.TenantID, &o.ProjectID, &o.CreatedAt, &o.UpdatedAt,
		&provBytes, &embBlob, &payloadStr); err != nil {
		return nil, err
	}
	o.Type = model.ObjectType(typ)
	if err := json.Unmarshal([]byte(provBytes), &o.Provenance); err != nil {
		return nil, fmt.Errorf("unmarshal provenance; %w", err)
	}
	var p payload
	if err := json.Unmarshal([]byte(payloadStr), &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload; %w", err)
	}
	p.applyTo(&o)
	if len(embBlob) > 0 {
		o.Embedding = decodeEmbedding(embBlob)
		o.HasEmbedding = true
	}
	return &o, nil
}

// Get retrieves a single object by ID.
func (s *ObjectStore) Get(ctx context.Context, id string) (*model.Object, error) {
	start := time.Now()
	defer func() {
		metrics.StoreOperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	}()

	row := s.db.sqlDB.QueryRowContext(ctx, "SELECT "+objectColumns+" FROM objects WHERE id = ?", id)
	o, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, amperr.NotFound("ObjectStore.Get", "object "+id+" not found")
	}
	if err != nil {
		metrics.StoreOperationErrorsTotal.WithLabelValues("get", "scan").Inc()
		return nil, amperr.Storage("ObjectStore.Get", err)
	}
	return o, nil
}

// Update replaces an existing object's mutable fields (provenance, embedding,
// payload) and bumps UpdatedAt.
func (s *ObjectStore) Update(ctx context.Context, o *model.Object) error {
	start := time.Now()
	defer func() {
		metrics.StoreOperationDuration.WithLabelValues("update").Observe(time.Since(start).Seconds())
	}()

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	provBytes, err := json.Marshal(o.Provenance)
	if err != nil {
		return amperr.Storage("ObjectStore.Update", err)
	}
	payloadBytes, err := json.Marshal(payloadOf(o))
	if err != nil {
		return amperr.Storage("ObjectStore.Update", err)
	}
	var embBlob []byte
	if o.HasEmbedding {
		embBlob = encodeEmbedding(o.Embedding)
	}
	o.UpdatedAt = o.UpdatedAt.UTC()

	res, err := s.db.sqlDB.ExecContext(ctx, `
UPDATE objects SET updated_at = ?, provenance = ?, embedding = ?, payload = ?
WHERE id = ?`, o.UpdatedAt, string(provBytes), embBlob, string(payloadBytes), o.ID)
	if err != nil {
		metrics.StoreOperationErrorsTotal.WithLabelValues("update", "exec").Inc()
		return amperr.Storage("ObjectStore.Update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return amperr.Storage("ObjectStore.Update", err)
	}
	if n == 0 {
		return amperr.NotFound("ObjectStore.Update", "object "+o.ID+" not found")
	}
	return nil
}

// Delete removes an object by ID. It does not cascade to relationships;
// callers that need edge cleanup should also call RelationshipStore.DeleteEdgesOf.
func (s *ObjectStore) Delete(ctx context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	res, err := s.db.sqlDB.ExecContext(ctx, "DELETE FROM objects WHERE id = ?", id)
	if err != nil {
		metrics.StoreOperationErrorsTotal.WithLabelValues("delete", "exec").Inc()
		return amperr.Storage("ObjectStore.Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return amperr.Storage("ObjectStore.Delete", err)
	}
	if n == 0 {
		return amperr.NotFound("ObjectStore.Delete", "object "+id+" not found")
	}
	return nil
}

// ScanFilter narrows a Scan call.
type ScanFilter struct {
	Type      model.ObjectType
	ProjectID string
	Limit     int
}

// Scan lists objects matching filter, most recently updated first.
func (s *ObjectStore) Scan(ctx context.Context, filter ScanFilter) ([]*model.Object, error) {
	start := time.Now()
	defer func() {
		metrics.StoreOperationDuration.WithLabelValues("scan").Observe(time.Since(start).Seconds())
	}()

	var conds []string
	var args []any
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}

	q := "SELECT " + objectColumns + " FROM objects"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY updated_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.sqlDB.QueryContext(ctx, q, args...)
	if err != nil {
		metrics.StoreOperationErrorsTotal.WithLabelValues("scan", "query").Inc()
		return nil, amperr.Storage("ObjectStore.Scan", err)
	}
	defer rows.Close()

	var out []*model.Object
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, amperr.Storage("ObjectStore.Scan", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, amperr.Storage("ObjectStore.Scan", err)
	}
	return out, nil
}

// TextMatch is a Scan result scored by naive text relevance.
type TextMatch struct {
	Object *model.Object
	Score  float64
}

// TextScan does a case-insensitive substring search over title, description,
// and documentation, used as the text leg of C7's hybrid query. This is a
// pragmatic LIKE-based search, not a full-text index: amp's object volume
// per project is small enough that a table scan stays fast, and it avoids
// pulling in a separate FTS5 virtual-table migration path for v1.
func (s *ObjectStore) TextScan(ctx context.Context, query string, filter ScanFilter) ([]TextMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	objs, err := s.Scan(ctx, ScanFilter{Type: filter.Type, ProjectID: filter.ProjectID, Limit: 2000})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	terms := strings.Fields(needle)

	var matches []TextMatch
	for _, o := range objs {
		haystack := strings.ToLower(o.Title() + " " + o.Description() + " " + o.Documentation())
		if haystack == "" {
			continue
		}
		var hits int
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float64(hits) / float64(len(terms))
		matches = append(matches, TextMatch{Object: o, Score: score})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	sortMatchesDesc(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func sortMatchesDesc(m []TextMatch) {
	for i := 1; i < len(m); i++ {
		for j := i; j > 0 && m[j].Score > m[j-1].Score; j-- {
			m[j], m[j-1] = m[j-1], m[j]
		}
	}
}

// VectorMatch is a Scan result scored by cosine similarity.
type VectorMatch struct {
	Object *model.Object
	Score  float64
}

// VectorScan scores every embedded object against query by cosine
// similarity. SQLite carries no vector index, so this decodes and compares
// in Go; object counts in amp's target deployments (single-project memory
// stores) keep this a linear scan over a few thousand rows at most.
func (s *ObjectStore) VectorScan(ctx context.Context, query []float32, filter ScanFilter) ([]VectorMatch, error) {
	if len(query) == 0 {
		return nil, amperr.EmbeddingDisabled("ObjectStore.VectorScan")
	}

	var conds []string
	var args []any
	conds = append(conds, "embedding IS NOT NULL")
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}

	q := "SELECT " + objectColumns + " FROM objects WHERE " + strings.Join(conds, " AND ")
	rows, err := s.db.sqlDB.QueryContext(ctx, q, args...)
	if err != nil {
		metrics.StoreOperationErrorsTotal.WithLabelValues("vector_scan", "query").Inc()
		return nil, amperr.Storage("ObjectStore.VectorScan", err)
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, amperr.Storage("ObjectStore.VectorScan", err)
		}
		if !o.HasEmbedding {
			continue
		}
		score := CosineSimilarity(query, o.Embedding)
		matches = append(matches, VectorMatch{Object: o, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, amperr.Storage("ObjectStore.VectorScan", err)
	}

	sortVectorMatchesDesc(matches)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func sortVectorMatchesDesc(m []VectorMatch) {
	for i := 1; i < len(m); i++ {
		for j := i; j > 0 && m[j].Score > m[j-1].Score; j-- {
			m[j], m[j-1] = m[j-1], m[j]
		}
	}
}
