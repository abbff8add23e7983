package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amp-memory/amp/internal/fsutil"
	"github.com/amp-memory/amp/internal/indexer/pipeline"
	"github.com/amp-memory/amp/internal/model"
	"github.com/amp-memory/amp/internal/storage"
	"github.com/amp-memory/amp/internal/symbols"
)

type parseFileRequest struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

type dependencies struct {
	Imports []string `json:"imports"`
	Exports []string `json:"exports"`
}

type parseFileResponse struct {
	Symbols      []symbols.Symbol `json:"symbols"`
	Dependencies dependencies     `json:"dependencies"`
	Language     string           `json:"language"`
	ContentHash  string           `json:"content_hash"`
}

// handleParseFile implements C5 as a standalone call, never touching the
// stores: POST /codebase/parse-file.
func (s *Server) handleParseFile(w http.ResponseWriter, r *http.Request) {
	var req parseFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeJSONError(w, http.StatusBadRequest, "path is required")
		return
	}

	language := req.Language
	if language == "" {
		language = fsutil.DetectLanguage(req.Path)
	}
	content := []byte(req.Content)

	syms, err := symbols.Extract(r.Context(), language, content)
	if err != nil {
		writeError(w, "api.ParseFile", err)
		return
	}

	writeJSON(w, http.StatusOK, parseFileResponse{
		Symbols:      syms,
		Dependencies: dependencies{Imports: pipeline.ExtractImports(language, content)},
		Language:     language,
		ContentHash:  fsutil.HashBytes(content),
	})
}

type parseRequest struct {
	Root             string   `json:"root"`
	Workers          int      `json:"workers"`
	RespectGitignore *bool    `json:"respect_gitignore"`
	ExtraExcludes    []string `json:"extra_excludes"`
	AIEnabled        bool     `json:"ai_enabled"`
}

// handleParse implements C11's full directory index: POST /codebase/parse.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Root == "" {
		writeJSONError(w, http.StatusBadRequest, "root is required")
		return
	}

	idxCfg := s.deps.Config.Index
	workers := req.Workers
	if workers <= 0 {
		workers = idxCfg.Workers
	}
	respectGitignore := idxCfg.RespectGitignore
	if req.RespectGitignore != nil {
		respectGitignore = *req.RespectGitignore
	}
	excludes := idxCfg.ExtraExcludes
	if len(req.ExtraExcludes) > 0 {
		excludes = req.ExtraExcludes
	}

	report, err := s.deps.Pipeline.Run(r.Context(), pipeline.Config{
		Root:             req.Root,
		Workers:          workers,
		RespectGitignore: respectGitignore,
		ExtraExcludes:    excludes,
		AIEnabled:        req.AIEnabled,
	})
	if err != nil {
		writeError(w, "api.Parse", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleFileLog implements C9's read-side companion: GET
// /codebase/file-logs/{path}, a thin wrapper resolving the filelog object
// for a file path rather than a separate store.
func (s *Server) handleFileLog(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")
	if path == "" {
		writeJSONError(w, http.StatusBadRequest, "path is required")
		return
	}

	objs, err := s.deps.Objects.Scan(r.Context(), storage.ScanFilter{Type: model.ObjectFilelog, Limit: 5000})
	if err != nil {
		writeError(w, "api.FileLog", err)
		return
	}
	for _, o := range objs {
		if o.Filelog != nil && o.Filelog.FilePath == path {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}
	writeJSONError(w, http.StatusNotFound, "no filelog found for path "+path)
}
