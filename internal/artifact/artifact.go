// Package artifact implements C8: the single write entry-point agents use
// to record decisions, changesets, notes, filelogs, and runs. Writer.Write
// assigns identity, builds the embedding text, persists the object, and
// wires the relationship edges the object type implies.
package artifact

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amp-memory/amp/internal/embeddings"
	"github.com/amp-memory/amp/internal/model"
	"github.com/amp-memory/amp/internal/storage"
)

// Writer implements C8's artifact write path.
type Writer struct {
	objects *storage.ObjectStore
	rels    *storage.RelationshipStore
	embedder embeddings.Provider
	log     *slog.Logger

	mu              sync.Mutex
	artifactCoreID  string
}

// New builds a Writer. log may be nil, in which case a discard logger is used.
func New(objects *storage.ObjectStore, rels *storage.RelationshipStore, embedder embeddings.Provider, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Writer{objects: objects, rels: rels, embedder: embedder, log: log}
}

// Request is C8's polymorphic artifact write input.
type Request struct {
	Type      model.ObjectType
	Title     string
	ProjectID string
	AgentID   string
	RunID     string
	Tags      []string

	Decision  *model.DecisionPayload
	Changeset *model.ChangesetPayload
	Note      *model.NotePayload
	Filelog   *model.FilelogPayload
	Run       *model.RunPayload

	LinkedObjects   []string
	LinkedDecisions []string
	LinkedFiles     []string
}

// LayersUpdated reports which storage layers a write actually touched.
type LayersUpdated struct {
	Graph    bool
	Vector   bool
	Temporal bool
}

// Result is C8's return shape.
type Result struct {
	ID                   string
	CreatedAt            time.Time
	LayersUpdated        LayersUpdated
	RelationshipsCreated int
}

// Write executes the six-step artifact write process.
func (w *Writer) Write(ctx context.Context, req Request) (Result, error) {
	now := time.Now().UTC()
	obj := &model.Object{
		ID:        uuid.NewString(),
		Type:      req.Type,
		ProjectID: req.ProjectID,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      req.Tags,
		Provenance: model.Provenance{
			Agent: req.AgentID,
		},
		Decision:  req.Decision,
		Changeset: req.Changeset,
		Note:      req.Note,
		Filelog:   req.Filelog,
		Run:       req.Run,
	}
	if req.Title != "" {
		switch {
		case obj.Decision != nil:
			obj.Decision.Title = req.Title
		case obj.Changeset != nil:
			obj.Changeset.Title = req.Title
		}
	}

	embeddingText := buildEmbeddingText(req.Title, req.Tags, obj)

	var layers LayersUpdated
	layers.Temporal = true

	if w.embedder != nil && w.embedder.Enabled() && strings.TrimSpace(embeddingText) != "" {
		vecs, err := w.embedder.Embed(ctx, []string{embeddingText})
		if err != nil {
			w.log.Warn("artifact embedding failed, writing without a vector", "error", err, "type", req.Type)
		} else if len(vecs) == 1 {
			obj.Embedding = vecs[0]
			obj.HasEmbedding = true
			layers.Vector = true
		}
	}

	if err := w.objects.Create(ctx, obj); err != nil {
		return Result{}, err
	}

	created := w.createEdges(ctx, obj, req)
	if created > 0 {
		layers.Graph = true
	}

	return Result{
		ID:                   obj.ID,
		CreatedAt:            obj.CreatedAt,
		LayersUpdated:        layers,
		RelationshipsCreated: created,
	}, nil
}

// buildEmbeddingText concatenates title, tags, and the type-specific
// high-signal fields that best represent the artifact for semantic search.
func buildEmbeddingText(title string, tags []string, obj *model.Object) string {
	parts := []string{title}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}

	switch {
	case obj.Decision != nil:
		d := obj.Decision
		parts = append(parts, d.Context, d.Decision, d.Consequences, strings.Join(d.Alternatives, " "))
	case obj.Filelog != nil:
		f := obj.Filelog
		parts = append(parts, f.FilePath, f.SummaryMarkdown, strings.Join(f.KeySymbols, " "))
	case obj.Note != nil:
		n := obj.Note
		parts = append(parts, n.Content, n.Category)
	case obj.Changeset != nil:
		c := obj.Changeset
		parts = append(parts, c.Description, c.Diff, strings.Join(c.FilesChanged, " "))
	}

	return strings.TrimSpace(strings.Join(nonEmpty(parts), " "))
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// createEdges wires every relationship C8's edge-creation rules imply.
// Individual edge failures are logged and skipped rather than failing the
// write, since the object is already durably persisted.
func (w *Writer) createEdges(ctx context.Context, obj *model.Object, req Request) int {
	var created int
	relate := func(source string, relType model.RelationType, target string) {
		if source == "" || target == "" {
			return
		}
		if err := w.rels.Relate(ctx, model.Relationship{
			SourceID: source, Type: relType, TargetID: target, CreatedAt: time.Now().UTC(),
		}); err != nil {
			w.log.Warn("artifact edge creation failed", "error", err, "source", source, "type", relType, "target", target)
			return
		}
		created++
	}

	fileLinked := false

	if req.ProjectID != "" {
		if projectSymbolID, err := w.resolveProjectSymbol(ctx, req.ProjectID); err == nil && projectSymbolID != "" {
			relate(obj.ID, model.RelDefinedIn, projectSymbolID)
		}
	}

	if req.RunID != "" {
		relate(req.RunID, model.RelProduced, obj.ID)
	}

	for _, linked := range req.LinkedObjects {
		relate(obj.ID, model.RelDependsOn, linked)
	}
	for _, decision := range req.LinkedDecisions {
		relate(obj.ID, model.RelJustifiedBy, decision)
	}

	for _, path := range req.LinkedFiles {
		fileID, err := w.resolveFilePath(ctx, path)
		if err != nil || fileID == "" {
			continue
		}
		relate(obj.ID, model.RelModifies, fileID)
		fileLinked = true
		if obj.Filelog != nil && obj.Filelog.FilePath != "" {
			relate(obj.ID, model.RelDefinedIn, fileID)
		}
	}

	if !fileLinked {
		coreID, err := w.ensureArtifactCore(ctx)
		if err == nil && coreID != "" {
			relate(obj.ID, model.RelDefinedIn, coreID)
		}
	}

	return created
}

// resolveProjectSymbol finds the project symbol object matching projectID,
// amp's convention being that project symbols are keyed by project_id.
func (w *Writer) resolveProjectSymbol(ctx context.Context, projectID string) (string, error) {
	objs, err := w.objects.Scan(ctx, storage.ScanFilter{Type: model.ObjectSymbol, ProjectID: projectID, Limit: 50})
	if err != nil {
		return "", err
	}
	for _, o := range objs {
		if o.Symbol != nil && o.Symbol.Kind == model.SymbolProject {
			return o.ID, nil
		}
	}
	return "", nil
}

// resolveFilePath finds a file symbol by exact path, then normalized
// (forward-slash) path, then basename. Ambiguity (multiple basename
// matches) is resolved by taking the first match; callers needing strict
// ambiguity detection should use internal/filesync's resolver instead.
func (w *Writer) resolveFilePath(ctx context.Context, path string) (string, error) {
	objs, err := w.objects.Scan(ctx, storage.ScanFilter{Type: model.ObjectSymbol, Limit: 5000})
	if err != nil {
		return "", err
	}

	normalized := strings.ReplaceAll(path, "\\", "/")
	base := normalized
	if idx := strings.LastIndex(normalized, "/"); idx >= 0 {
		base = normalized[idx+1:]
	}

	var exact, byNormalized, byBasename string
	for _, o := range objs {
		if o.Symbol == nil || o.Symbol.Kind != model.SymbolFile {
			continue
		}
		if o.Symbol.Path == path {
			exact = o.ID
			break
		}
		candidateNormalized := strings.ReplaceAll(o.Symbol.Path, "\\", "/")
		if candidateNormalized == normalized && byNormalized == "" {
			byNormalized = o.ID
		}
		candidateBase := candidateNormalized
		if idx := strings.LastIndex(candidateNormalized, "/"); idx >= 0 {
			candidateBase = candidateNormalized[idx+1:]
		}
		if candidateBase == base && byBasename == "" {
			byBasename = o.ID
		}
	}

	switch {
	case exact != "":
		return exact, nil
	case byNormalized != "":
		return byNormalized, nil
	default:
		return byBasename, nil
	}
}

// ensureArtifactCore returns the singleton artifact_core object id,
// creating it on first use.
func (w *Writer) ensureArtifactCore(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.artifactCoreID != "" {
		return w.artifactCoreID, nil
	}

	objs, err := w.objects.Scan(ctx, storage.ScanFilter{Type: model.ObjectArtifactCore, Limit: 1})
	if err != nil {
		return "", err
	}
	if len(objs) > 0 {
		w.artifactCoreID = objs[0].ID
		return w.artifactCoreID, nil
	}

	now := time.Now().UTC()
	core := &model.Object{
		ID:        uuid.NewString(),
		Type:      model.ObjectArtifactCore,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.objects.Create(ctx, core); err != nil {
		return "", err
	}
	w.artifactCoreID = core.ID
	return w.artifactCoreID, nil
}
