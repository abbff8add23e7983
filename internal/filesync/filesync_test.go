package filesync

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amp-memory/amp/internal/chunker"
	"github.com/amp-memory/amp/internal/model"
	"github.com/amp-memory/amp/internal/storage"
)

func testService(t *testing.T) (*Service, *storage.ObjectStore, *storage.RelationshipStore) {
	t.Helper()
	db, err := storage.Open(context.Background(), "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	objects := storage.NewObjectStore(db)
	rels := storage.NewRelationshipStore(db)
	ch, err := chunker.New(chunker.DefaultConfig())
	require.NoError(t, err)
	return New(objects, rels, nil, ch, nil), objects, rels
}

func TestSyncCreateIndexesFileAndFilelog(t *testing.T) {
	svc, objects, _ := testService(t)
	ctx := context.Background()

	result, err := svc.Sync(ctx, Request{
		Action: ActionCreate, Path: "pkg/foo.go", Content: "package foo\n\nfunc Foo() {}\n",
		Summary: "initial add",
	})
	require.NoError(t, err)
	assert.Equal(t, "synced", result.Status)
	assert.NotEmpty(t, result.FileID)
	assert.True(t, result.AuditEntryAdded)

	fileObj, err := objects.Get(ctx, result.FileID)
	require.NoError(t, err)
	assert.Equal(t, "pkg/foo.go", fileObj.Symbol.Path)

	filelogs, err := objects.Scan(ctx, storage.ScanFilter{Type: model.ObjectFilelog})
	require.NoError(t, err)
	require.Len(t, filelogs, 1)
	assert.Len(t, filelogs[0].Filelog.RecentChanges, 1)
	assert.Equal(t, "create", filelogs[0].Filelog.RecentChanges[0].Action)
}

func TestSyncEditReplacesChunksAndAppendsAudit(t *testing.T) {
	svc, objects, _ := testService(t)
	ctx := context.Background()

	_, err := svc.Sync(ctx, Request{Action: ActionCreate, Path: "pkg/foo.go", Content: "package foo\n", Summary: "add"})
	require.NoError(t, err)

	result, err := svc.Sync(ctx, Request{Action: ActionEdit, Path: "pkg/foo.go", Content: "package foo\n\nfunc Bar() {}\n", Summary: "add Bar"})
	require.NoError(t, err)
	assert.Equal(t, "synced", result.Status)
	assert.True(t, result.AuditEntryAdded)

	filelogs, err := objects.Scan(ctx, storage.ScanFilter{Type: model.ObjectFilelog})
	require.NoError(t, err)
	require.Len(t, filelogs, 1)
	assert.Len(t, filelogs[0].Filelog.RecentChanges, 2)
	assert.Equal(t, "add Bar", filelogs[0].Filelog.SummaryMarkdown)
}

func TestSyncEditAmbiguousWhenMultipleBasenameMatches(t *testing.T) {
	svc, objects, _ := testService(t)
	ctx := context.Background()

	_, err := svc.Sync(ctx, Request{Action: ActionCreate, Path: "pkg/a/foo.go", Content: "package a\n", Summary: "add"})
	require.NoError(t, err)
	_, err = svc.Sync(ctx, Request{Action: ActionCreate, Path: "pkg/b/foo.go", Content: "package b\n", Summary: "add"})
	require.NoError(t, err)

	result, err := svc.Sync(ctx, Request{Action: ActionEdit, Path: "foo.go", Content: "package x\n", Summary: "ambiguous edit"})
	require.NoError(t, err)
	assert.Equal(t, "ambiguous", result.Status)
	assert.Len(t, result.CandidateIDs, 2)

	filelogs, err := objects.Scan(ctx, storage.ScanFilter{Type: model.ObjectFilelog})
	require.NoError(t, err)
	assert.Len(t, filelogs, 2)
}

func TestSyncDeleteMarksFilelogDeletedButKeepsIt(t *testing.T) {
	svc, objects, _ := testService(t)
	ctx := context.Background()

	created, err := svc.Sync(ctx, Request{Action: ActionCreate, Path: "pkg/foo.go", Content: "package foo\n", Summary: "add"})
	require.NoError(t, err)

	result, err := svc.Sync(ctx, Request{Action: ActionDelete, Path: "pkg/foo.go", Summary: "removed"})
	require.NoError(t, err)
	assert.Equal(t, "synced", result.Status)

	_, err = objects.Get(ctx, created.FileID)
	assert.Error(t, err)

	filelogs, err := objects.Scan(ctx, storage.ScanFilter{Type: model.ObjectFilelog})
	require.NoError(t, err)
	require.Len(t, filelogs, 1)
	assert.Equal(t, "deleted", filelogs[0].Filelog.Status)
	assert.Len(t, filelogs[0].Filelog.RecentChanges, 2)
}
