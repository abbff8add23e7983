package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amp-memory/amp/internal/config"
	"github.com/amp-memory/amp/internal/embeddings"
	"github.com/amp-memory/amp/internal/graphtraversal"
	"github.com/amp-memory/amp/internal/model"
	"github.com/amp-memory/amp/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, *storage.ObjectStore, *storage.RelationshipStore) {
	t.Helper()
	db, err := storage.Open(context.Background(), "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	objects := storage.NewObjectStore(db)
	rels := storage.NewRelationshipStore(db)
	traverser := graphtraversal.New(rels)

	weights := config.RetrievalConfig{TextWeight: 0.3, VectorWeight: 0.4, GraphWeight: 0.3}
	engine := New(objects, embeddings.NewDisabled(), traverser, weights)
	return engine, objects, rels
}

func mustCreate(t *testing.T, objects *storage.ObjectStore, content string, embedding []float32) *model.Object {
	t.Helper()
	now := time.Now().UTC()
	obj := &model.Object{
		ID: uuid.NewString(), Type: model.ObjectNote, ProjectID: "proj-1",
		CreatedAt: now, UpdatedAt: now,
		Provenance: model.Provenance{Agent: "test"},
		Note:       &model.NotePayload{Content: content},
	}
	if len(embedding) > 0 {
		obj.Embedding = embedding
		obj.HasEmbedding = true
	}
	require.NoError(t, objects.Create(context.Background(), obj))
	return obj
}

func TestQueryTextOnly(t *testing.T) {
	engine, objects, _ := newTestEngine(t)
	obj := mustCreate(t, objects, "the quick brown fox jumps", nil)

	results, err := engine.Query(context.Background(), Request{Text: "quick fox", ProjectID: "proj-1"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, obj.ID, results[0].Object.ID)
	assert.Greater(t, results[0].Score, 0.0)
	assert.Equal(t, 0.0, results[0].VectorScore)
}

func TestQuerySkipsVectorWhenEmbeddingsDisabled(t *testing.T) {
	engine, objects, _ := newTestEngine(t)
	mustCreate(t, objects, "some content", []float32{1, 0, 0})

	results, err := engine.Query(context.Background(), Request{Text: "some content", ProjectID: "proj-1"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, 0.0, r.VectorScore)
	}
}

func TestQueryVectorOnlyUsesSuppliedVectorEvenWithEmbeddingsDisabled(t *testing.T) {
	engine, objects, _ := newTestEngine(t)
	obj := mustCreate(t, objects, "some content", []float32{1, 0, 0})
	mustCreate(t, objects, "unrelated", []float32{0, 1, 0})

	results, err := engine.Query(context.Background(), Request{Vector: []float32{1, 0, 0}, ProjectID: "proj-1"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, obj.ID, results[0].Object.ID)
	assert.Greater(t, results[0].VectorScore, 0.0)
	assert.Equal(t, 0.0, results[0].TextScore)
}

func TestQueryGraphLeg(t *testing.T) {
	engine, objects, rels := newTestEngine(t)
	seed := mustCreate(t, objects, "seed note", nil)
	neighbor := mustCreate(t, objects, "unrelated text entirely", nil)

	require.NoError(t, rels.Relate(context.Background(), model.Relationship{
		SourceID: seed.ID, Type: model.RelDependsOn, TargetID: neighbor.ID, CreatedAt: time.Now(),
	}))

	results, err := engine.Query(context.Background(), Request{GraphSeedID: seed.ID, ProjectID: "proj-1"})
	require.NoError(t, err)

	var found bool
	for _, r := range results {
		if r.Object.ID == neighbor.ID {
			found = true
			assert.Greater(t, r.GraphScore, 0.0)
		}
	}
	assert.True(t, found)
}

func TestQueryEmptyRequestReturnsNoResults(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	results, err := engine.Query(context.Background(), Request{ProjectID: "proj-1"})
	require.NoError(t, err)
	assert.Empty(t, results)
}
