// Package api implements amp's HTTP/JSON surface: a chi-routed server
// exposing the object store, relationship store, hybrid retrieval, artifact
// writer, file-sync, indexing, episodic cache, and lease primitives to
// agents over a single `/v1` prefix.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/artifact"
	"github.com/amp-memory/amp/internal/cache"
	"github.com/amp-memory/amp/internal/chunker"
	"github.com/amp-memory/amp/internal/config"
	"github.com/amp-memory/amp/internal/embeddings"
	"github.com/amp-memory/amp/internal/filesync"
	"github.com/amp-memory/amp/internal/graphtraversal"
	"github.com/amp-memory/amp/internal/indexer/pipeline"
	"github.com/amp-memory/amp/internal/leases"
	"github.com/amp-memory/amp/internal/metrics"
	"github.com/amp-memory/amp/internal/retrieval"
	"github.com/amp-memory/amp/internal/storage"
	"github.com/amp-memory/amp/internal/version"
)

// Deps bundles every component the HTTP API dispatches into. All fields
// are required; the caller chooses the Leases implementation (Redis-backed,
// or SQLite-backed when Redis isn't configured or reachable).
type Deps struct {
	Objects   *storage.ObjectStore
	Rels      *storage.RelationshipStore
	Settings  *storage.SettingsStore
	Cache     *cache.Service
	Retrieval *retrieval.Engine
	Traverser *graphtraversal.Traverser
	Artifacts *artifact.Writer
	FileSync  *filesync.Service
	Pipeline  *pipeline.Pipeline
	Leases    leases.Manager
	Embedder  embeddings.Provider
	Chunker   *chunker.Chunker
	Config    *config.Config
}

// Server is the HTTP server for amp's `/v1` API.
type Server struct {
	mu     sync.RWMutex
	deps   Deps
	router *chi.Mux
	server *http.Server
	log    *slog.Logger
}

// New builds a Server with routes already mounted.
func New(deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{deps: deps, router: chi.NewRouter(), log: log}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(instrument)

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/objects", s.handleCreateObject)
		r.Post("/objects/batch", s.handleCreateObjectBatch)
		r.Get("/objects/{id}", s.handleGetObject)
		r.Put("/objects/{id}", s.handleUpdateObject)
		r.Delete("/objects/{id}", s.handleDeleteObject)

		r.Post("/query", s.handleQuery)

		r.Post("/relationships", s.handleCreateRelationship)
		r.Get("/relationships", s.handleListRelationships)
		r.Delete("/relationships/{type}/{id}", s.handleDeleteRelationship)

		r.Post("/leases/acquire", s.handleLeaseAcquire)
		r.Post("/leases/renew", s.handleLeaseRenew)
		r.Post("/leases/release", s.handleLeaseRelease)

		r.Post("/artifacts", s.handleCreateArtifact)
		r.Get("/artifacts", s.handleListArtifacts)

		r.Post("/file-sync", s.handleFileSync)

		r.Post("/codebase/parse-file", s.handleParseFile)
		r.Post("/codebase/parse", s.handleParse)
		r.Get("/codebase/file-logs/{path:.*}", s.handleFileLog)

		r.Post("/cache/get_pack", s.handleCacheGetPack)
		r.Post("/cache/write", s.handleCacheWrite)
		r.Post("/cache/compact", s.handleCacheCompact)
		r.Post("/cache/search", s.handleCacheSearch)

		r.Get("/analytics", s.handleAnalytics)

		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handlePostSettings)
	})
}

// instrument records request duration per route/method/status.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.HTTPRequestDuration.WithLabelValues(route, r.Method, fmt.Sprintf("%d", ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

// Handler returns the HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.router
}

// Start starts the HTTP server and blocks until it stops or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.deps.Config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)

	s.mu.Lock()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	server := s.server
	s.mu.Unlock()

	s.log.Info("http server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error; %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	server := s.server
	s.mu.RUnlock()
	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server; %w", err)
	}
	return nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Service: "amp",
		Version: version.Get().Version,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeJSON writes v as the JSON body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a plain {error} body at status.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError maps err's amperr.Kind to an HTTP status per §7's propagation
// policy and writes the corresponding JSON error body.
func writeError(w http.ResponseWriter, op string, err error) {
	kind := amperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case amperr.KindNotFound:
		status = http.StatusNotFound
	case amperr.KindInvalidInput:
		status = http.StatusBadRequest
	case amperr.KindConflict:
		status = http.StatusConflict
	case amperr.KindTimeout, amperr.KindCancelled:
		status = http.StatusGatewayTimeout
	case amperr.KindGraphUnreachable:
		status = http.StatusNotFound
	case amperr.KindEmbeddingDisabled, amperr.KindEmbeddingError:
		status = http.StatusUnprocessableEntity
	case amperr.KindStorageError:
		status = http.StatusInternalServerError
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: string(kind)})
}
