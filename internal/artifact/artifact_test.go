package artifact

import (
	"context"
	"testing"

	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amp-memory/amp/internal/model"
	"github.com/amp-memory/amp/internal/storage"
)

func testWriter(t *testing.T) (*Writer, *storage.ObjectStore, *storage.RelationshipStore) {
	t.Helper()
	db, err := storage.Open(context.Background(), "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	objects := storage.NewObjectStore(db)
	rels := storage.NewRelationshipStore(db)
	return New(objects, rels, nil, nil), objects, rels
}

func TestWriteDecisionPersistsAndLinksArtifactCore(t *testing.T) {
	writer, objects, _ := testWriter(t)
	ctx := context.Background()

	result, err := writer.Write(ctx, Request{
		Type:  model.ObjectDecision,
		Title: "use postgres",
		Tags:  []string{"storage", "db"},
		Decision: &model.DecisionPayload{
			Context:      "need durable storage",
			Decision:     "adopt postgres",
			Consequences: "ops overhead",
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.True(t, result.LayersUpdated.Temporal)
	assert.True(t, result.LayersUpdated.Graph)
	assert.Equal(t, 1, result.RelationshipsCreated)

	got, err := objects.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, "use postgres", got.Decision.Title)
	assert.Equal(t, []string{"storage", "db"}, got.Tags)
}

func TestWriteLinksToExistingFileAndSkipsArtifactCore(t *testing.T) {
	writer, objects, _ := testWriter(t)
	ctx := context.Background()

	now := time.Now().UTC()
	fileObj := &model.Object{
		ID:        uuid.NewString(),
		Type:      model.ObjectSymbol,
		CreatedAt: now,
		UpdatedAt: now,
		Symbol: &model.SymbolPayload{
			Name: "main.go", Kind: model.SymbolFile, Path: "cmd/main.go",
		},
	}
	require.NoError(t, objects.Create(ctx, fileObj))

	result, err := writer.Write(ctx, Request{
		Type:  model.ObjectChangeset,
		Title: "refactor main",
		Changeset: &model.ChangesetPayload{
			Description: "cleanup", FilesChanged: []string{"cmd/main.go"},
		},
		LinkedFiles: []string{"cmd/main.go"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RelationshipsCreated)
}

func TestWriteLinksDependsOnAndJustifiedBy(t *testing.T) {
	writer, _, rels := testWriter(t)
	ctx := context.Background()

	depID := uuid.NewString()
	decisionID := uuid.NewString()

	result, err := writer.Write(ctx, Request{
		Type:  model.ObjectNote,
		Title: "note",
		Note:  &model.NotePayload{Content: "remember this"},
		LinkedObjects:   []string{depID},
		LinkedDecisions: []string{decisionID},
	})
	require.NoError(t, err)
	// depends_on + justified_by, plus the artifact_core fallback edge since
	// no file was linked
	assert.Equal(t, 3, result.RelationshipsCreated)

	neighbors, err := rels.Neighbors(ctx, result.ID, model.RelDependsOn, model.DirectionOut)
	require.NoError(t, err)
	assert.Equal(t, []string{depID}, neighbors)

	justified, err := rels.Neighbors(ctx, result.ID, model.RelJustifiedBy, model.DirectionOut)
	require.NoError(t, err)
	assert.Equal(t, []string{decisionID}, justified)
}

func TestBuildEmbeddingTextConcatenatesDecisionFields(t *testing.T) {
	obj := &model.Object{
		Decision: &model.DecisionPayload{
			Context: "ctx", Decision: "dec", Consequences: "cons", Alternatives: []string{"alt1"},
		},
	}
	text := buildEmbeddingText("title", []string{"tag1"}, obj)
	assert.Contains(t, text, "title")
	assert.Contains(t, text, "tag1")
	assert.Contains(t, text, "ctx")
	assert.Contains(t, text, "alt1")
}
