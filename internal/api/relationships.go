package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amp-memory/amp/internal/model"
)

type createRelationshipRequest struct {
	Type     string `json:"type"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// handleCreateRelationship implements C2.relate: POST /relationships.
func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req createRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" || req.SourceID == "" || req.TargetID == "" {
		writeJSONError(w, http.StatusBadRequest, "type, source_id, and target_id are required")
		return
	}

	rel := model.Relationship{
		SourceID: req.SourceID, Type: model.RelationType(req.Type), TargetID: req.TargetID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.deps.Rels.Relate(r.Context(), rel); err != nil {
		writeError(w, "api.CreateRelationship", err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

// handleListRelationships implements C2.edges_of/neighbors:
// GET /relationships?object_id=…&type=…&direction=….
func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	objectID := r.URL.Query().Get("object_id")
	relType := r.URL.Query().Get("type")
	if objectID == "" || relType == "" {
		writeJSONError(w, http.StatusBadRequest, "object_id and type query parameters are required")
		return
	}
	dir := model.Direction(r.URL.Query().Get("direction"))
	if dir == "" {
		dir = model.DirectionAny
	}

	edges, err := s.deps.Rels.EdgesOf(r.Context(), model.RelationType(relType), objectID, dir)
	if err != nil {
		writeError(w, "api.ListRelationships", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"relationships": edges})
}

// handleDeleteRelationship implements C2 edge removal:
// DELETE /relationships/{type}/{id}, where {id} is the source_id and the
// target is carried in the body to keep the path RESTful for a compound key.
func (s *Server) handleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	relType := chi.URLParam(r, "type")
	sourceID := chi.URLParam(r, "id")

	var body struct {
		TargetID string `json:"target_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TargetID == "" {
		writeJSONError(w, http.StatusBadRequest, "target_id is required in the request body")
		return
	}

	if err := s.deps.Rels.Unrelate(r.Context(), model.RelationType(relType), sourceID, body.TargetID); err != nil {
		writeError(w, "api.DeleteRelationship", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
