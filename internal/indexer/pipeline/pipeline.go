// Package pipeline implements C11: end-to-end directory indexing with
// bounded worker concurrency, producing project/directory/file/symbol
// objects, filechunks, filelogs, and the graph edges that connect them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/chunker"
	"github.com/amp-memory/amp/internal/embeddings"
	"github.com/amp-memory/amp/internal/events"
	"github.com/amp-memory/amp/internal/fsutil"
	"github.com/amp-memory/amp/internal/indexer/classify"
	"github.com/amp-memory/amp/internal/indexer/walk"
	"github.com/amp-memory/amp/internal/metrics"
	"github.com/amp-memory/amp/internal/model"
	"github.com/amp-memory/amp/internal/storage"
	"github.com/amp-memory/amp/internal/symbols"
)

// Config controls a single Run.
type Config struct {
	Root             string
	Workers          int
	RespectGitignore bool
	ExtraExcludes    []string
	AIEnabled        bool
}

// Report accumulates the outcome of a Run.
type Report struct {
	TotalFiles         int
	SupportedFiles     int
	ProcessedFiles     int
	CreatedDirectories int
	CreatedSymbols     int
	Errors             []string
	Warnings           []string
}

// Pipeline implements C11 over a shared object/relationship store.
type Pipeline struct {
	objects  *storage.ObjectStore
	rels     *storage.RelationshipStore
	embedder embeddings.Provider
	chunker  *chunker.Chunker
	bus      events.Bus
	log      *slog.Logger
}

// New builds a Pipeline. bus and log may be nil.
func New(objects *storage.ObjectStore, rels *storage.RelationshipStore, embedder embeddings.Provider, ch *chunker.Chunker, bus events.Bus, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{objects: objects, rels: rels, embedder: embedder, chunker: ch, bus: bus, log: log}
}

// Run executes the full nine-step indexing process over cfg.Root.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (Report, error) {
	start := time.Now()
	var report Report

	// Step 1: preflight.
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return report, amperr.InvalidInput("pipeline.Run", "cannot resolve root: "+err.Error())
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return report, amperr.InvalidInput("pipeline.Run", "root "+root+" is not a directory")
	}

	p.publish(events.NewEvent(events.IndexStarted, root))
	defer func() {
		metrics.IndexDuration.Observe(time.Since(start).Seconds())
	}()

	if err := checkCancelled(ctx); err != nil {
		return report, p.cancelled(err)
	}

	// Step 2: project node.
	projectName := detectProjectName(root)
	projectID := slugify(projectName)
	projectObj, err := p.ensureProjectSymbol(ctx, projectID, projectName, root)
	if err != nil {
		return report, err
	}
	report.CreatedSymbols++

	if err := checkCancelled(ctx); err != nil {
		return report, p.cancelled(err)
	}

	// Step 3: walk.
	entries, err := walk.Walk(root, walk.Options{RespectGitignore: cfg.RespectGitignore, Exclude: cfg.ExtraExcludes})
	if err != nil {
		return report, amperr.Storage("pipeline.Run", err)
	}

	if err := checkCancelled(ctx); err != nil {
		return report, p.cancelled(err)
	}

	// Step 4: directory chain, memoized by normalized relative path.
	dirIDs := map[string]string{"": projectObj.ID}
	var dirPaths []string
	for _, e := range entries {
		if e.IsDir {
			dirPaths = append(dirPaths, e.RelPath)
		}
	}
	for _, relPath := range dirPaths {
		if err := checkCancelled(ctx); err != nil {
			return report, p.cancelled(err)
		}
		if _, ok := dirIDs[relPath]; ok {
			continue
		}
		dirID, err := p.ensureDirectorySymbol(ctx, relPath, dirIDs)
		if err != nil {
			report.Warnings = append(report.Warnings, "directory "+relPath+": "+err.Error())
			continue
		}
		dirIDs[relPath] = dirID
		report.CreatedDirectories++
		report.CreatedSymbols++
	}

	if err := checkCancelled(ctx); err != nil {
		return report, p.cancelled(err)
	}

	// Step 5: file classification.
	type candidate struct {
		entry   walk.Entry
		content []byte
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		report.TotalFiles++
		content, err := os.ReadFile(e.AbsPath)
		if err != nil {
			report.Warnings = append(report.Warnings, "read "+e.RelPath+": "+err.Error())
			continue
		}
		if !classify.IsText(e.AbsPath, content) {
			continue
		}
		report.SupportedFiles++
		candidates = append(candidates, candidate{entry: e, content: content})
	}
	metrics.IndexFilesDiscovered.Add(float64(report.TotalFiles))

	if err := checkCancelled(ctx); err != nil {
		return report, p.cancelled(err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > 32 {
		workers = 32
	}

	// Step 6: file nodes, bounded by a worker semaphore.
	fileIndex := make(map[string]string, len(candidates))
	var fileIndexMu sync.Mutex
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var reportMu sync.Mutex

	for _, c := range candidates {
		c := c
		select {
		case <-ctx.Done():
			wg.Wait()
			return report, p.cancelled(ctx.Err())
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			metrics.IndexWorkerActive.Inc()
			defer metrics.IndexWorkerActive.Dec()

			parentID := projectObj.ID
			if dir := filepath.ToSlash(filepath.Dir(c.entry.RelPath)); dir != "." {
				if id, ok := dirIDs[dir]; ok {
					parentID = id
				}
			}

			fileID, err := p.ensureFileSymbol(ctx, c.entry, c.content, parentID)
			if err != nil {
				reportMu.Lock()
				report.Errors = append(report.Errors, c.entry.RelPath+": "+err.Error())
				reportMu.Unlock()
				return
			}

			fileIndexMu.Lock()
			fileIndex[c.entry.RelPath] = fileID
			fileIndexMu.Unlock()

			reportMu.Lock()
			report.CreatedSymbols++
			reportMu.Unlock()
		}()
	}
	wg.Wait()

	if err := checkCancelled(ctx); err != nil {
		return report, p.cancelled(err)
	}

	// Step 7: parsing + chunking + filelog, same worker budget.
	type fileResult struct {
		relPath string
		imports []string
		symbols int
	}
	resultsCh := make(chan fileResult, len(candidates))

	for _, c := range candidates {
		c := c
		fileIndexMu.Lock()
		fileID, ok := fileIndex[c.entry.RelPath]
		fileIndexMu.Unlock()
		if !ok {
			continue
		}

		select {
		case <-ctx.Done():
			wg.Wait()
			return report, p.cancelled(ctx.Err())
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			metrics.IndexWorkerActive.Inc()
			defer metrics.IndexWorkerActive.Dec()

			imports, symbolCount, err := p.processFile(ctx, fileID, c.entry, c.content, cfg.AIEnabled)
			if err != nil {
				reportMu.Lock()
				report.Errors = append(report.Errors, c.entry.RelPath+": "+err.Error())
				reportMu.Unlock()
				metrics.IndexFilesProcessed.WithLabelValues("error").Inc()
				p.publish(events.NewEvent(events.IndexFileFailed, events.IndexProgressPayload{Path: c.entry.RelPath, Error: err.Error()}))
				return
			}
			reportMu.Lock()
			report.ProcessedFiles++
			report.CreatedSymbols += symbolCount
			reportMu.Unlock()
			metrics.IndexFilesProcessed.WithLabelValues("ok").Inc()
			p.publish(events.NewEvent(events.IndexFileProcessed, events.IndexProgressPayload{Path: c.entry.RelPath}))
			resultsCh <- fileResult{relPath: c.entry.RelPath, imports: imports}
		}()
	}
	wg.Wait()
	close(resultsCh)

	if err := checkCancelled(ctx); err != nil {
		return report, p.cancelled(err)
	}

	// Step 8: dependency edges.
	for res := range resultsCh {
		sourceID := fileIndex[res.relPath]
		for _, imp := range res.imports {
			targetPath, targetID, ok := resolveImportPath(res.relPath, imp, fileIndex)
			if !ok {
				continue
			}
			if err := p.rels.Relate(ctx, model.Relationship{SourceID: sourceID, Type: model.RelDependsOn, TargetID: targetID, CreatedAt: time.Now().UTC()}); err != nil {
				p.log.Warn("pipeline: dependency edge failed", "error", err, "source", res.relPath, "target", targetPath)
			}
		}
	}

	// Step 9: directory/project AI logs (template-based; see DESIGN.md).
	if cfg.AIEnabled {
		p.writeProjectLog(ctx, projectObj.ID, projectName, report)
	}

	p.publish(events.NewEvent(events.IndexCompleted, report))
	return report, nil
}

func (p *Pipeline) publish(evt events.Event) {
	if p.bus == nil {
		return
	}
	_ = p.bus.Publish(context.Background(), evt)
}

func (p *Pipeline) cancelled(err error) error {
	p.publish(events.NewEvent(events.IndexCancelled, err.Error()))
	return amperr.Cancelled("pipeline.Run", err)
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// projectConfigFiles is the priority order C11 step 2 checks for a project
// name before falling back to the directory name.
var projectConfigFiles = []string{"package.json", "Cargo.toml", "pyproject.toml", "composer.json"}

func detectProjectName(root string) string {
	for _, f := range projectConfigFiles {
		if name := nameFromConfigFile(filepath.Join(root, f)); name != "" {
			return name
		}
	}
	return filepath.Base(root)
}

var nameFieldPattern = regexp.MustCompile(`(?m)^\s*name\s*=\s*"([^"]+)"|"name"\s*:\s*"([^"]+)"`)

func nameFromConfigFile(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	m := nameFieldPattern.FindStringSubmatch(string(content))
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

func slugify(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	for _, r := range lower {
		if r == ' ' {
			b.WriteRune('-')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (p *Pipeline) ensureProjectSymbol(ctx context.Context, projectID, name, root string) (*model.Object, error) {
	objs, err := p.objects.Scan(ctx, storage.ScanFilter{Type: model.ObjectSymbol, ProjectID: projectID, Limit: 50})
	if err != nil {
		return nil, err
	}
	for _, o := range objs {
		if o.Symbol != nil && o.Symbol.Kind == model.SymbolProject {
			return o, nil
		}
	}

	now := time.Now().UTC()
	obj := &model.Object{
		ID: uuid.NewString(), Type: model.ObjectSymbol, ProjectID: projectID, CreatedAt: now, UpdatedAt: now,
		Symbol: &model.SymbolPayload{Name: name, Kind: model.SymbolProject, Path: root},
	}
	if err := p.objects.Create(ctx, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (p *Pipeline) ensureDirectorySymbol(ctx context.Context, relPath string, dirIDs map[string]string) (string, error) {
	now := time.Now().UTC()
	obj := &model.Object{
		ID: uuid.NewString(), Type: model.ObjectSymbol, CreatedAt: now, UpdatedAt: now,
		Symbol: &model.SymbolPayload{Name: filepath.Base(relPath), Kind: model.SymbolDirectory, Path: relPath},
	}
	if err := p.objects.Create(ctx, obj); err != nil {
		return "", err
	}

	parent := filepath.ToSlash(filepath.Dir(relPath))
	if parent == "." {
		parent = ""
	}
	parentID, ok := dirIDs[parent]
	if ok {
		if err := p.rels.Relate(ctx, model.Relationship{SourceID: obj.ID, Type: model.RelDefinedIn, TargetID: parentID, CreatedAt: now}); err != nil {
			p.log.Warn("pipeline: directory edge failed", "error", err, "path", relPath)
		}
	}
	return obj.ID, nil
}

func (p *Pipeline) ensureFileSymbol(ctx context.Context, entry walk.Entry, content []byte, parentID string) (string, error) {
	now := time.Now().UTC()
	language := fsutil.DetectLanguage(entry.AbsPath)
	obj := &model.Object{
		ID: uuid.NewString(), Type: model.ObjectSymbol, CreatedAt: now, UpdatedAt: now,
		Symbol: &model.SymbolPayload{
			Name: filepath.Base(entry.RelPath), Kind: model.SymbolFile, Path: entry.RelPath,
			Language: language, FileSize: int64(len(content)), LineCount: strings.Count(string(content), "\n") + 1,
		},
	}
	if err := p.objects.Create(ctx, obj); err != nil {
		return "", err
	}
	if err := p.rels.Relate(ctx, model.Relationship{SourceID: obj.ID, Type: model.RelDefinedIn, TargetID: parentID, CreatedAt: now}); err != nil {
		p.log.Warn("pipeline: file edge failed", "error", err, "path", entry.RelPath)
	}
	return obj.ID, nil
}

// processFile runs C5 extraction, C4 chunking, and filelog creation for a
// single file, returning the raw import strings step 8 will resolve and the
// number of code symbols persisted.
func (p *Pipeline) processFile(ctx context.Context, fileID string, entry walk.Entry, content []byte, aiEnabled bool) ([]string, int, error) {
	language := fsutil.DetectLanguage(entry.AbsPath)
	now := time.Now().UTC()

	syms, err := symbols.Extract(ctx, language, content)
	if err != nil {
		return nil, 0, err
	}

	var symbolNames []string
	for _, sym := range syms {
		symObj := &model.Object{
			ID: uuid.NewString(), Type: model.ObjectSymbol, CreatedAt: now, UpdatedAt: now,
			Symbol: &model.SymbolPayload{
				Name: sym.Name, Kind: sym.Kind, Language: language,
				Signature: sym.Signature, Documentation: sym.Documentation,
			},
		}
		if err := p.objects.Create(ctx, symObj); err != nil {
			p.log.Warn("pipeline: symbol create failed", "error", err, "path", entry.RelPath, "symbol", sym.Name)
			continue
		}
		if err := p.rels.Relate(ctx, model.Relationship{SourceID: fileID, Type: model.RelDefinedIn, TargetID: symObj.ID, CreatedAt: now}); err != nil {
			p.log.Warn("pipeline: symbol edge failed", "error", err, "path", entry.RelPath, "symbol", sym.Name)
		}
		symbolNames = append(symbolNames, sym.Name)
	}

	if p.chunker != nil && len(content) > 0 {
		chunks := p.chunker.Chunk(string(content))
		var texts []string
		for _, c := range chunks {
			texts = append(texts, c.Content)
		}
		var vectors [][]float32
		if p.embedder != nil && p.embedder.Enabled() && len(texts) > 0 {
			if vecs, err := p.embedder.Embed(ctx, texts); err == nil {
				vectors = vecs
			}
		}

		var chunkObjs []*model.Object
		for i, c := range chunks {
			chunkObj := &model.Object{
				ID: uuid.NewString(), Type: model.ObjectFilechunk, CreatedAt: now, UpdatedAt: now,
				Filechunk: &model.FilechunkPayload{
					FileID: fileID, ChunkIndex: c.Index, StartLine: c.StartLine, EndLine: c.EndLine,
					TokenCount: c.TokenCount, Content: c.Content, ContentHash: c.ContentHash, Language: language,
				},
			}
			if i < len(vectors) {
				chunkObj.Embedding = vectors[i]
				chunkObj.HasEmbedding = true
			}
			chunkObjs = append(chunkObjs, chunkObj)
		}
		if len(chunkObjs) > 0 {
			if err := p.objects.CreateBatch(ctx, chunkObjs); err != nil {
				p.log.Warn("pipeline: chunk batch create failed", "error", err, "path", entry.RelPath)
			} else {
				for _, chunkObj := range chunkObjs {
					if err := p.rels.Relate(ctx, model.Relationship{SourceID: chunkObj.ID, Type: model.RelDefinedIn, TargetID: fileID, CreatedAt: now}); err != nil {
						p.log.Warn("pipeline: chunk edge failed", "error", err, "path", entry.RelPath)
					}
				}
			}
		}
	}

	summary := templateSummary(entry.RelPath, symbolNames)
	filelog := &model.Object{
		ID: uuid.NewString(), Type: model.ObjectFilelog, CreatedAt: now, UpdatedAt: now,
		Filelog: &model.FilelogPayload{
			FilePath: entry.RelPath, SummaryMarkdown: summary, KeySymbols: symbolNames,
			ContentHash: fsutil.HashBytes(content),
		},
	}
	if err := p.objects.Create(ctx, filelog); err != nil {
		return nil, 0, err
	}
	if err := p.rels.Relate(ctx, model.Relationship{SourceID: filelog.ID, Type: model.RelDefinedIn, TargetID: fileID, CreatedAt: now}); err != nil {
		p.log.Warn("pipeline: filelog edge failed", "error", err, "path", entry.RelPath)
	}

	return ExtractImports(language, content), len(symbolNames), nil
}

func templateSummary(relPath string, symbolNames []string) string {
	if len(symbolNames) == 0 {
		return fmt.Sprintf("%s has no extracted symbols.", relPath)
	}
	return fmt.Sprintf("%s defines: %s", relPath, strings.Join(symbolNames, ", "))
}

var (
	goImportPattern = regexp.MustCompile(`(?m)^\s*(?:_|\w+\s+)?"([^"]+)"`)
	pyImportPattern = regexp.MustCompile(`(?m)^\s*(?:from\s+(\S+)\s+import|import\s+(\S+))`)
	jsImportPattern = regexp.MustCompile(`(?m)(?:import\s+.*?from\s+|require\()\s*['"]([^'"]+)['"]`)
)

// ExtractImports is a lightweight, regex-based import scanner covering the
// corpus's four common languages; it is intentionally not a full parser —
// step 8 only needs enough signal to resolve same-project dependencies.
func ExtractImports(language string, content []byte) []string {
	text := string(content)
	var raw []string
	switch language {
	case "go":
		for _, m := range goImportPattern.FindAllStringSubmatch(text, -1) {
			raw = append(raw, m[1])
		}
	case "python":
		for _, m := range pyImportPattern.FindAllStringSubmatch(text, -1) {
			if m[1] != "" {
				raw = append(raw, m[1])
			} else if m[2] != "" {
				raw = append(raw, m[2])
			}
		}
	case "javascript", "typescript":
		for _, m := range jsImportPattern.FindAllStringSubmatch(text, -1) {
			raw = append(raw, m[1])
		}
	}
	return raw
}

// resolveImportPath resolves a raw import string relative to the importing
// file against fileIndex's keyspace, trying the bare path first and then
// common source extensions (imports often omit them). Returns the matched
// relative path, its file id, and whether a match was found.
func resolveImportPath(fromRelPath, imp string, fileIndex map[string]string) (string, string, bool) {
	if !strings.HasPrefix(imp, ".") && !strings.HasPrefix(imp, "/") {
		return "", "", false // external module reference, not a same-project file
	}

	dir := filepath.ToSlash(filepath.Dir(fromRelPath))
	candidateBase := filepath.ToSlash(filepath.Clean(filepath.Join(dir, imp)))

	extensions := []string{"", ".go", ".py", ".js", ".jsx", ".ts", ".tsx"}
	for _, ext := range extensions {
		candidate := candidateBase + ext
		if id, ok := fileIndex[candidate]; ok {
			return candidate, id, true
		}
	}
	return "", "", false
}

func (p *Pipeline) writeProjectLog(ctx context.Context, projectID, projectName string, report Report) {
	now := time.Now().UTC()
	summary := fmt.Sprintf("%s: indexed %d of %d discovered files (%d symbols created).",
		projectName, report.ProcessedFiles, report.TotalFiles, report.CreatedSymbols)
	filelog := &model.Object{
		ID: uuid.NewString(), Type: model.ObjectFilelog, CreatedAt: now, UpdatedAt: now,
		Filelog: &model.FilelogPayload{FilePath: projectName, SummaryMarkdown: summary},
	}
	if err := p.objects.Create(ctx, filelog); err != nil {
		p.log.Warn("pipeline: project log create failed", "error", err)
		return
	}
	if err := p.rels.Relate(ctx, model.Relationship{SourceID: filelog.ID, Type: model.RelDefinedIn, TargetID: projectID, CreatedAt: now}); err != nil {
		p.log.Warn("pipeline: project log edge failed", "error", err)
	}
}
