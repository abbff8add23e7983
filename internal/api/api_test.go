package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amp-memory/amp/internal/artifact"
	"github.com/amp-memory/amp/internal/cache"
	"github.com/amp-memory/amp/internal/chunker"
	"github.com/amp-memory/amp/internal/config"
	"github.com/amp-memory/amp/internal/embeddings"
	"github.com/amp-memory/amp/internal/filesync"
	"github.com/amp-memory/amp/internal/graphtraversal"
	"github.com/amp-memory/amp/internal/indexer/pipeline"
	"github.com/amp-memory/amp/internal/leases"
	"github.com/amp-memory/amp/internal/retrieval"
	"github.com/amp-memory/amp/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := storage.Open(ctx, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	objects := storage.NewObjectStore(db)
	rels := storage.NewRelationshipStore(db)
	cacheStore := storage.NewCacheStore(db)
	settings := storage.NewSettingsStore(db)

	embedder := embeddings.NewDisabled()
	ch, err := chunker.New(chunker.DefaultConfig())
	require.NoError(t, err)

	traverser := graphtraversal.New(rels)
	cfg := &config.Config{
		Server:    config.ServerConfig{Port: 8105, Bind: "127.0.0.1"},
		Index:     config.IndexConfig{Workers: 2, RespectGitignore: true},
		Retrieval: config.RetrievalConfig{TextWeight: 0.3, VectorWeight: 0.4, GraphWeight: 0.3},
		Cache:     config.CacheConfig{DedupThreshold: 0.92, DefaultTTLMin: 30, FrameStaleAfterM: 5, PackItemLimit: 50},
	}

	deps := Deps{
		Objects:   objects,
		Rels:      rels,
		Settings:  settings,
		Cache:     cache.New(cacheStore, embedder, cfg.Cache, nil),
		Retrieval: retrieval.New(objects, embedder, traverser, cfg.Retrieval),
		Traverser: traverser,
		Artifacts: artifact.New(objects, rels, embedder, nil),
		FileSync:  filesync.New(objects, rels, embedder, ch, nil),
		Pipeline:  pipeline.New(objects, rels, embedder, ch, nil, nil),
		Leases:    leases.NewSQLiteManager(db.SQL()),
		Embedder:  embedder,
		Chunker:   ch,
		Config:    cfg,
	}
	return New(deps, nil)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "amp", resp.Service)
}

func TestObjectCreateGetUpdateDelete(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/objects", map[string]any{
		"type":       "note",
		"project_id": "proj1",
		"note":       map[string]string{"content": "hello", "category": "misc"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created createObjectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = doJSON(t, srv, http.MethodGet, "/v1/objects/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/v1/objects/"+created.ID, map[string]any{
		"tags": []string{"reviewed"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/v1/objects/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/v1/objects/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestObjectBatchPartialFailureReturnsMultiStatus(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/objects/batch", []map[string]any{
		{"type": "note", "note": map[string]string{"content": "a"}},
		{"note": map[string]string{"content": "missing type"}},
	})
	assert.Equal(t, http.StatusMultiStatus, rec.Code)

	var resp createBatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.Succeeded)
	assert.Equal(t, 1, resp.Summary.Failed)
}

func TestRelationshipCreateListDelete(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/relationships", createRelationshipRequest{
		Type: "depends_on", SourceID: "a", TargetID: "b",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/v1/relationships?object_id=a&type=depends_on", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body["relationships"], 1)

	rec = doJSON(t, srv, http.MethodDelete, "/v1/relationships/depends_on/a", map[string]string{"target_id": "b"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLeaseLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/leases/acquire", leaseAcquireRequest{
		Resource: "file:main.go", Holder: "agent-1", TTLSeconds: 30,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var lease leaseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lease))

	rec = doJSON(t, srv, http.MethodPost, "/v1/leases/renew", leaseRenewRequest{
		LeaseID: lease.LeaseID, TTLSeconds: 60,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/v1/leases/release", leaseReleaseRequest{LeaseID: lease.LeaseID})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCacheWriteAndGetPack(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/cache/write", writeItemsRequest{
		ScopeID: "scope-1",
		Items:   []cacheItemRequest{{Kind: "fact", Preview: "uses postgres"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/v1/cache/get_pack", getPackRequest{ScopeID: "scope-1", TokenBudget: 500})
	assert.Equal(t, http.StatusOK, rec.Code)

	var pack cache.Pack
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pack))
	assert.Contains(t, pack.Facts, "uses postgres")
}

func TestQueryWithNoInputsReturnsEmptyResults(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/query", queryRequest{Limit: 10})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.TotalCount)
}

func TestQueryRejectsExcessiveGraphDepth(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/query", queryRequest{GraphSeedID: "x", GraphDepth: 11})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/settings", map[string]string{"index.workers": "8"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/v1/settings?key=index.workers", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "8", body["index.workers"])
}
