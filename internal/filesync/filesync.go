// Package filesync implements C9: reconciling index state for a single file
// when an agent creates, edits, or deletes it, without requiring a full
// re-index pass.
package filesync

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/chunker"
	"github.com/amp-memory/amp/internal/embeddings"
	"github.com/amp-memory/amp/internal/fsutil"
	"github.com/amp-memory/amp/internal/model"
	"github.com/amp-memory/amp/internal/storage"
	"github.com/amp-memory/amp/internal/symbols"
)

// Action is the file-sync operation requested.
type Action string

const (
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Request is C9's input.
type Request struct {
	Action  Action
	Path    string
	Content string
	Summary string
	RunID   string
	AgentID string
}

// LayersUpdated reports which layers a sync touched.
type LayersUpdated struct {
	Graph    bool
	Vector   bool
	Temporal bool
}

// Result is C9's return shape.
type Result struct {
	Status               string // "synced" or "ambiguous"
	FileID                string
	CandidateIDs          []string
	LayersUpdated         LayersUpdated
	AuditEntryAdded       bool
	ChunksReplaced        int
	RelationshipsUpdated int
}

// Service implements C9.
type Service struct {
	objects  *storage.ObjectStore
	rels     *storage.RelationshipStore
	embedder embeddings.Provider
	chunker  *chunker.Chunker
	log      *slog.Logger
}

// New builds a file-sync Service.
func New(objects *storage.ObjectStore, rels *storage.RelationshipStore, embedder embeddings.Provider, ch *chunker.Chunker, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{objects: objects, rels: rels, embedder: embedder, chunker: ch, log: log}
}

// Sync reconciles index state for req.
func (s *Service) Sync(ctx context.Context, req Request) (Result, error) {
	switch req.Action {
	case ActionCreate:
		return s.create(ctx, req)
	case ActionEdit:
		return s.edit(ctx, req)
	case ActionDelete:
		return s.delete(ctx, req)
	default:
		return Result{}, amperr.InvalidInput("filesync.Sync", "unknown action "+string(req.Action))
	}
}

func (s *Service) create(ctx context.Context, req Request) (Result, error) {
	now := time.Now().UTC()
	language := fsutil.DetectLanguage(req.Path)
	contentHash := fsutil.HashBytes([]byte(req.Content))

	fileObj := &model.Object{
		ID: uuid.NewString(), Type: model.ObjectSymbol, CreatedAt: now, UpdatedAt: now,
		Symbol: &model.SymbolPayload{
			Name: basename(req.Path), Kind: model.SymbolFile, Path: req.Path,
			Language: language, ContentHash: contentHash, FileSize: int64(len(req.Content)),
			LineCount: strings.Count(req.Content, "\n") + 1,
		},
	}
	if err := s.objects.Create(ctx, fileObj); err != nil {
		return Result{}, err
	}

	chunksReplaced, chunkIDs, vectorUsed, err := s.reindexChunks(ctx, fileObj.ID, req.Path, req.Content, language)
	if err != nil {
		return Result{}, err
	}

	var relsUpdated int
	for _, chunkID := range chunkIDs {
		if err := s.rels.Relate(ctx, model.Relationship{SourceID: chunkID, Type: model.RelDefinedIn, TargetID: fileObj.ID, CreatedAt: now}); err == nil {
			relsUpdated++
		}
	}

	audit := model.FilelogAuditEntry{Action: string(ActionCreate), Summary: req.Summary, AgentID: req.AgentID, RunID: req.RunID, Timestamp: now}
	filelog := &model.Object{
		ID: uuid.NewString(), Type: model.ObjectFilelog, CreatedAt: now, UpdatedAt: now,
		Filelog: &model.FilelogPayload{
			FilePath: req.Path, SummaryMarkdown: req.Summary, ContentHash: contentHash,
			RecentChanges: []model.FilelogAuditEntry{audit},
		},
	}
	if err := s.objects.Create(ctx, filelog); err != nil {
		return Result{}, err
	}
	if err := s.rels.Relate(ctx, model.Relationship{SourceID: filelog.ID, Type: model.RelDefinedIn, TargetID: fileObj.ID, CreatedAt: now}); err == nil {
		relsUpdated++
	}

	return Result{
		Status: "synced", FileID: fileObj.ID,
		LayersUpdated:         LayersUpdated{Graph: true, Vector: vectorUsed, Temporal: true},
		AuditEntryAdded:       true,
		ChunksReplaced:        chunksReplaced,
		RelationshipsUpdated: relsUpdated,
	}, nil
}

func (s *Service) edit(ctx context.Context, req Request) (Result, error) {
	candidates, err := s.resolveCandidates(ctx, req.Path)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) == 0 {
		return s.create(ctx, req)
	}
	if len(candidates) > 1 {
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		return Result{Status: "ambiguous", CandidateIDs: ids}, nil
	}

	fileObj := candidates[0]
	now := time.Now().UTC()
	language := fsutil.DetectLanguage(req.Path)
	contentHash := fsutil.HashBytes([]byte(req.Content))

	if err := s.rels.DeleteEdgesOf(ctx, fileObj.ID); err != nil {
		s.log.Warn("filesync edit: clearing prior edges failed", "error", err, "file_id", fileObj.ID)
	}
	if err := s.deleteChunksForFile(ctx, fileObj.ID); err != nil {
		return Result{}, err
	}

	fileObj.Symbol.ContentHash = contentHash
	fileObj.Symbol.Language = language
	fileObj.Symbol.FileSize = int64(len(req.Content))
	fileObj.Symbol.LineCount = strings.Count(req.Content, "\n") + 1
	fileObj.UpdatedAt = now
	if err := s.objects.Update(ctx, fileObj); err != nil {
		return Result{}, err
	}

	chunksReplaced, chunkIDs, vectorUsed, err := s.reindexChunks(ctx, fileObj.ID, req.Path, req.Content, language)
	if err != nil {
		return Result{}, err
	}

	var relsUpdated int
	for _, chunkID := range chunkIDs {
		if err := s.rels.Relate(ctx, model.Relationship{SourceID: chunkID, Type: model.RelDefinedIn, TargetID: fileObj.ID, CreatedAt: now}); err == nil {
			relsUpdated++
		}
	}

	filelogObj, err := s.findFilelog(ctx, req.Path)
	auditAdded := false
	if err == nil && filelogObj != nil {
		audit := model.FilelogAuditEntry{Action: string(ActionEdit), Summary: req.Summary, AgentID: req.AgentID, RunID: req.RunID, Timestamp: now}
		filelogObj.Filelog.SummaryMarkdown = req.Summary
		filelogObj.Filelog.ContentHash = contentHash
		filelogObj.Filelog.RecentChanges = append(filelogObj.Filelog.RecentChanges, audit)
		filelogObj.UpdatedAt = now
		if err := s.objects.Update(ctx, filelogObj); err == nil {
			auditAdded = true
		}
	}

	return Result{
		Status: "synced", FileID: fileObj.ID,
		LayersUpdated:         LayersUpdated{Graph: true, Vector: vectorUsed, Temporal: true},
		AuditEntryAdded:       auditAdded,
		ChunksReplaced:        chunksReplaced,
		RelationshipsUpdated: relsUpdated,
	}, nil
}

func (s *Service) delete(ctx context.Context, req Request) (Result, error) {
	candidates, err := s.resolveCandidates(ctx, req.Path)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) == 0 {
		return Result{}, amperr.NotFound("filesync.delete", "no file symbol found for "+req.Path)
	}
	if len(candidates) > 1 {
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		return Result{Status: "ambiguous", CandidateIDs: ids}, nil
	}

	fileObj := candidates[0]
	now := time.Now().UTC()

	if err := s.rels.DeleteEdgesOf(ctx, fileObj.ID); err != nil {
		s.log.Warn("filesync delete: clearing edges failed", "error", err, "file_id", fileObj.ID)
	}
	chunksReplaced, err := countChunksForFile(ctx, s.objects, fileObj.ID)
	if err != nil {
		return Result{}, err
	}
	if err := s.deleteChunksForFile(ctx, fileObj.ID); err != nil {
		return Result{}, err
	}
	if err := s.objects.Delete(ctx, fileObj.ID); err != nil {
		return Result{}, err
	}

	auditAdded := false
	filelogObj, ferr := s.findFilelog(ctx, req.Path)
	if ferr == nil && filelogObj != nil {
		audit := model.FilelogAuditEntry{Action: string(ActionDelete), Summary: req.Summary, AgentID: req.AgentID, RunID: req.RunID, Timestamp: now}
		filelogObj.Filelog.Status = "deleted"
		filelogObj.Filelog.RecentChanges = append(filelogObj.Filelog.RecentChanges, audit)
		filelogObj.UpdatedAt = now
		if err := s.objects.Update(ctx, filelogObj); err == nil {
			auditAdded = true
		}
	}

	return Result{
		Status: "synced", FileID: fileObj.ID,
		LayersUpdated:         LayersUpdated{Graph: true, Temporal: true},
		AuditEntryAdded:       auditAdded,
		ChunksReplaced:        chunksReplaced,
		RelationshipsUpdated: 0,
	}, nil
}

// resolveCandidates finds file symbols matching path by exact path, then
// normalized (forward-slash) path, then basename, returning every match at
// the first tier that produces one or more hits.
func (s *Service) resolveCandidates(ctx context.Context, path string) ([]*model.Object, error) {
	objs, err := s.objects.Scan(ctx, storage.ScanFilter{Type: model.ObjectSymbol, Limit: 5000})
	if err != nil {
		return nil, err
	}

	normalized := strings.ReplaceAll(path, "\\", "/")
	base := normalized
	if idx := strings.LastIndex(normalized, "/"); idx >= 0 {
		base = normalized[idx+1:]
	}

	var exact, byNormalized, byBasename []*model.Object
	for _, o := range objs {
		if o.Symbol == nil || o.Symbol.Kind != model.SymbolFile {
			continue
		}
		if o.Symbol.Path == path {
			exact = append(exact, o)
			continue
		}
		candidateNormalized := strings.ReplaceAll(o.Symbol.Path, "\\", "/")
		if candidateNormalized == normalized {
			byNormalized = append(byNormalized, o)
			continue
		}
		candidateBase := candidateNormalized
		if idx := strings.LastIndex(candidateNormalized, "/"); idx >= 0 {
			candidateBase = candidateNormalized[idx+1:]
		}
		if candidateBase == base {
			byBasename = append(byBasename, o)
		}
	}

	switch {
	case len(exact) > 0:
		return exact, nil
	case len(byNormalized) > 0:
		return byNormalized, nil
	default:
		return byBasename, nil
	}
}

func (s *Service) findFilelog(ctx context.Context, path string) (*model.Object, error) {
	objs, err := s.objects.Scan(ctx, storage.ScanFilter{Type: model.ObjectFilelog, Limit: 5000})
	if err != nil {
		return nil, err
	}
	for _, o := range objs {
		if o.Filelog != nil && o.Filelog.FilePath == path {
			return o, nil
		}
	}
	return nil, amperr.NotFound("filesync.findFilelog", "no filelog for "+path)
}

// reindexChunks re-chunks content and embeds each chunk, returning the
// number of chunks written, their object ids, and whether embedding
// actually ran.
func (s *Service) reindexChunks(ctx context.Context, fileID, path, content, language string) (int, []string, bool, error) {
	if s.chunker == nil || content == "" {
		return 0, nil, false, nil
	}

	chunks := s.chunker.Chunk(content)
	now := time.Now().UTC()
	vectorUsed := false

	var texts []string
	for _, c := range chunks {
		texts = append(texts, c.Content)
	}

	var vectors [][]float32
	if s.embedder != nil && s.embedder.Enabled() && len(texts) > 0 {
		vecs, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			s.log.Warn("filesync: chunk embedding failed, indexing without vectors", "error", err, "path", path)
		} else {
			vectors = vecs
			vectorUsed = true
		}
	}

	ids := make([]string, 0, len(chunks))
	var objs []*model.Object
	for i, c := range chunks {
		obj := &model.Object{
			ID: uuid.NewString(), Type: model.ObjectFilechunk, CreatedAt: now, UpdatedAt: now,
			Filechunk: &model.FilechunkPayload{
				FileID: fileID, ChunkIndex: c.Index, StartLine: c.StartLine, EndLine: c.EndLine,
				TokenCount: c.TokenCount, Content: c.Content, ContentHash: c.ContentHash, Language: language,
			},
		}
		if i < len(vectors) {
			obj.Embedding = vectors[i]
			obj.HasEmbedding = true
		}
		objs = append(objs, obj)
		ids = append(ids, obj.ID)
	}

	if len(objs) > 0 {
		if err := s.objects.CreateBatch(ctx, objs); err != nil {
			return 0, nil, false, err
		}
	}
	return len(objs), ids, vectorUsed, nil
}

func (s *Service) deleteChunksForFile(ctx context.Context, fileID string) error {
	objs, err := s.objects.Scan(ctx, storage.ScanFilter{Type: model.ObjectFilechunk, Limit: 50000})
	if err != nil {
		return err
	}
	for _, o := range objs {
		if o.Filechunk != nil && o.Filechunk.FileID == fileID {
			if err := s.objects.Delete(ctx, o.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func countChunksForFile(ctx context.Context, objects *storage.ObjectStore, fileID string) (int, error) {
	objs, err := objects.Scan(ctx, storage.ScanFilter{Type: model.ObjectFilechunk, Limit: 50000})
	if err != nil {
		return 0, err
	}
	var n int
	for _, o := range objs {
		if o.Filechunk != nil && o.Filechunk.FileID == fileID {
			n++
		}
	}
	return n, nil
}

func basename(path string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	if idx := strings.LastIndex(normalized, "/"); idx >= 0 {
		return normalized[idx+1:]
	}
	return normalized
}
