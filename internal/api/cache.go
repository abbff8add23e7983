package api

import (
	"encoding/json"
	"net/http"

	"github.com/amp-memory/amp/internal/cache"
	"github.com/amp-memory/amp/internal/model"
)

type getPackRequest struct {
	ScopeID     string `json:"scope_id"`
	TokenBudget int    `json:"token_budget"`
	Query       string `json:"query"`
}

// handleCacheGetPack implements C10.get_pack: POST /cache/get_pack.
func (s *Server) handleCacheGetPack(w http.ResponseWriter, r *http.Request) {
	var req getPackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ScopeID == "" {
		writeJSONError(w, http.StatusBadRequest, "scope_id is required")
		return
	}

	pack, err := s.deps.Cache.GetPack(r.Context(), req.ScopeID, req.TokenBudget, req.Query)
	if err != nil {
		writeError(w, "api.CacheGetPack", err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}

type cacheItemRequest struct {
	Kind       string           `json:"kind"`
	Preview    string           `json:"preview"`
	Facts      []string         `json:"facts"`
	ArtifactID string           `json:"artifact_id"`
	Importance float64          `json:"importance"`
	Provenance model.Provenance `json:"provenance"`
}

type writeItemsRequest struct {
	ScopeID string             `json:"scope_id"`
	Items   []cacheItemRequest `json:"items"`
}

// handleCacheWrite implements C10.write_items: POST /cache/write.
func (s *Server) handleCacheWrite(w http.ResponseWriter, r *http.Request) {
	var req writeItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ScopeID == "" {
		writeJSONError(w, http.StatusBadRequest, "scope_id is required")
		return
	}

	items := make([]cache.NewItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, cache.NewItem{
			Kind: model.CacheItemKind(it.Kind), Preview: it.Preview, Facts: it.Facts,
			ArtifactID: it.ArtifactID, Importance: it.Importance, Provenance: it.Provenance,
		})
	}

	result, err := s.deps.Cache.WriteItems(r.Context(), req.ScopeID, items)
	if err != nil {
		writeError(w, "api.CacheWrite", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type scopeRequest struct {
	ScopeID string `json:"scope_id"`
}

// handleCacheCompact implements C10.compact: POST /cache/compact.
func (s *Server) handleCacheCompact(w http.ResponseWriter, r *http.Request) {
	var req scopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ScopeID == "" {
		writeJSONError(w, http.StatusBadRequest, "scope_id is required")
		return
	}
	if err := s.deps.Cache.Compact(r.Context(), req.ScopeID); err != nil {
		writeError(w, "api.CacheCompact", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cacheSearchRequest struct {
	Frames []*model.CacheFrame `json:"frames"`
	Query  string              `json:"query"`
}

// handleCacheSearch implements C10.search: POST /cache/search.
func (s *Server) handleCacheSearch(w http.ResponseWriter, r *http.Request) {
	var req cacheSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	matches := s.deps.Cache.Search(r.Context(), req.Frames, req.Query)
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}
