package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestObject(objType model.ObjectType) *model.Object {
	now := time.Now().UTC()
	return &model.Object{
		ID:        uuid.NewString(),
		Type:      objType,
		ProjectID: "proj-1",
		CreatedAt: now,
		UpdatedAt: now,
		Provenance: model.Provenance{
			Agent:   "agent-1",
			Summary: "created during a test run",
		},
		Note: &model.NotePayload{Content: "hello world", Category: "test"},
	}
}

func TestObjectStoreCreateGet(t *testing.T) {
	db := openTestDB(t)
	store := NewObjectStore(db)
	ctx := context.Background()

	obj := newTestObject(model.ObjectNote)
	require.NoError(t, store.Create(ctx, obj))

	got, err := store.Get(ctx, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, obj.ID, got.ID)
	assert.Equal(t, obj.Type, got.Type)
	assert.Equal(t, "hello world", got.Note.Content)
	assert.Equal(t, "agent-1", got.Provenance.Agent)
}

func TestObjectStoreGetNotFound(t *testing.T) {
	db := openTestDB(t)
	store := NewObjectStore(db)

	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, amperr.KindNotFound, amperr.KindOf(err))
}

func TestObjectStoreUpdate(t *testing.T) {
	db := openTestDB(t)
	store := NewObjectStore(db)
	ctx := context.Background()

	obj := newTestObject(model.ObjectNote)
	require.NoError(t, store.Create(ctx, obj))

	obj.Note.Content = "updated content"
	obj.UpdatedAt = time.Now().UTC()
	require.NoError(t, store.Update(ctx, obj))

	got, err := store.Get(ctx, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated content", got.Note.Content)
}

func TestObjectStoreDelete(t *testing.T) {
	db := openTestDB(t)
	store := NewObjectStore(db)
	ctx := context.Background()

	obj := newTestObject(model.ObjectNote)
	require.NoError(t, store.Create(ctx, obj))
	require.NoError(t, store.Delete(ctx, obj.ID))

	_, err := store.Get(ctx, obj.ID)
	assert.Equal(t, amperr.KindNotFound, amperr.KindOf(err))
}

func TestObjectStoreCreateBatchAtomic(t *testing.T) {
	db := openTestDB(t)
	store := NewObjectStore(db)
	ctx := context.Background()

	a := newTestObject(model.ObjectNote)
	b := newTestObject(model.ObjectNote)
	require.NoError(t, store.CreateBatch(ctx, []*model.Object{a, b}))

	objs, err := store.Scan(ctx, ScanFilter{Type: model.ObjectNote, ProjectID: "proj-1"})
	require.NoError(t, err)
	assert.Len(t, objs, 2)
}

func TestObjectStoreVectorScan(t *testing.T) {
	db := openTestDB(t)
	store := NewObjectStore(db)
	ctx := context.Background()

	near := newTestObject(model.ObjectNote)
	near.Embedding = []float32{1, 0, 0}
	near.HasEmbedding = true
	require.NoError(t, store.Create(ctx, near))

	far := newTestObject(model.ObjectNote)
	far.Embedding = []float32{0, 1, 0}
	far.HasEmbedding = true
	require.NoError(t, store.Create(ctx, far))

	matches, err := store.VectorScan(ctx, []float32{1, 0, 0}, ScanFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, near.ID, matches[0].Object.ID)
	assert.InDelta(t, 1.0, matches[0].Score, 0.0001)
}

func TestObjectStoreTextScan(t *testing.T) {
	db := openTestDB(t)
	store := NewObjectStore(db)
	ctx := context.Background()

	obj := newTestObject(model.ObjectNote)
	obj.Note.Content = "the quick brown fox"
	require.NoError(t, store.Create(ctx, obj))

	matches, err := store.TextScan(ctx, "quick fox", ScanFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, obj.ID, matches[0].Object.ID)
}

func TestRelationshipStoreRelateAndNeighbors(t *testing.T) {
	db := openTestDB(t)
	relStore := NewRelationshipStore(db)
	ctx := context.Background()

	a, b := uuid.NewString(), uuid.NewString()
	rel := model.Relationship{SourceID: a, Type: model.RelCalls, TargetID: b, CreatedAt: time.Now()}
	require.NoError(t, relStore.Relate(ctx, rel))
	// re-relating is a no-op, not an error
	require.NoError(t, relStore.Relate(ctx, rel))

	neighbors, err := relStore.Neighbors(ctx, a, model.RelCalls, model.DirectionOut)
	require.NoError(t, err)
	assert.Equal(t, []string{b}, neighbors)

	reverse, err := relStore.Neighbors(ctx, b, model.RelCalls, model.DirectionIn)
	require.NoError(t, err)
	assert.Equal(t, []string{a}, reverse)
}

func TestRelationshipStoreDeleteEdgesOf(t *testing.T) {
	db := openTestDB(t)
	relStore := NewRelationshipStore(db)
	ctx := context.Background()

	a, b, c := uuid.NewString(), uuid.NewString(), uuid.NewString()
	require.NoError(t, relStore.Relate(ctx, model.Relationship{SourceID: a, Type: model.RelCalls, TargetID: b, CreatedAt: time.Now()}))
	require.NoError(t, relStore.Relate(ctx, model.Relationship{SourceID: c, Type: model.RelDependsOn, TargetID: a, CreatedAt: time.Now()}))

	require.NoError(t, relStore.DeleteEdgesOf(ctx, a))

	neighbors, err := relStore.NeighborsAllTypes(ctx, b, model.DirectionAny)
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestCacheStorePutAndExpire(t *testing.T) {
	db := openTestDB(t)
	cacheStore := NewCacheStore(db)
	ctx := context.Background()

	now := time.Now().UTC()
	item := &model.CacheItem{
		ID: uuid.NewString(), ScopeID: "scope-1", Kind: model.CacheItemFact, Preview: "v",
		CreatedAt: now, UpdatedAt: now, TTLExpiresAt: now.Add(-time.Minute),
	}
	require.NoError(t, cacheStore.PutItem(ctx, item))

	reclaimed, err := cacheStore.DeleteExpiredItems(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reclaimed)

	_, err = cacheStore.GetItem(ctx, item.ID)
	assert.Equal(t, amperr.KindNotFound, amperr.KindOf(err))
}

func TestCacheStoreFrames(t *testing.T) {
	db := openTestDB(t)
	cacheStore := NewCacheStore(db)
	ctx := context.Background()

	now := time.Now().UTC()
	item1 := &model.CacheItem{ID: uuid.NewString(), ScopeID: "scope-1", Kind: model.CacheItemFact, Preview: "A", CreatedAt: now, UpdatedAt: now, TTLExpiresAt: now.Add(time.Hour)}
	item2 := &model.CacheItem{ID: uuid.NewString(), ScopeID: "scope-1", Kind: model.CacheItemFact, Preview: "B", CreatedAt: now, UpdatedAt: now, TTLExpiresAt: now.Add(time.Hour)}
	require.NoError(t, cacheStore.PutItem(ctx, item1))
	require.NoError(t, cacheStore.PutItem(ctx, item2))

	frame := &model.CacheFrame{
		ScopeID: "scope-1", Version: 1, Summary: "run frame summary",
		TokenCount: 42, UpdatedAt: now, TTLExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, cacheStore.PutFrame(ctx, frame))

	got, err := cacheStore.GetFrame(ctx, frame.ScopeID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "run frame summary", got.Summary)

	items, err := cacheStore.ItemsByScope(ctx, "scope-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSettingsStore(t *testing.T) {
	db := openTestDB(t)
	settings := NewSettingsStore(db)
	ctx := context.Background()

	_, ok, err := settings.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, settings.Set(ctx, "retrieval.text_weight", "0.5"))
	val, ok, err := settings.Get(ctx, "retrieval.text_weight")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0.5", val)
}
