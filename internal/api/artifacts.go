package api

import (
	"encoding/json"
	"net/http"

	"github.com/amp-memory/amp/internal/artifact"
	"github.com/amp-memory/amp/internal/model"
	"github.com/amp-memory/amp/internal/storage"
)

type createArtifactRequest struct {
	Type      string   `json:"type"`
	Title     string   `json:"title"`
	ProjectID string   `json:"project_id"`
	AgentID   string   `json:"agent_id"`
	RunID     string   `json:"run_id"`
	Tags      []string `json:"tags"`

	Decision  *model.DecisionPayload  `json:"decision"`
	Changeset *model.ChangesetPayload `json:"changeset"`
	Note      *model.NotePayload      `json:"note"`
	Filelog   *model.FilelogPayload   `json:"filelog"`
	Run       *model.RunPayload       `json:"run"`

	LinkedObjects   []string `json:"linked_objects"`
	LinkedDecisions []string `json:"linked_decisions"`
	LinkedFiles     []string `json:"linked_files"`
}

// handleCreateArtifact implements C8's unified write path: POST /artifacts.
func (s *Server) handleCreateArtifact(w http.ResponseWriter, r *http.Request) {
	var req createArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		writeJSONError(w, http.StatusBadRequest, "type is required")
		return
	}

	result, err := s.deps.Artifacts.Write(r.Context(), artifact.Request{
		Type:            model.ObjectType(req.Type),
		Title:           req.Title,
		ProjectID:       req.ProjectID,
		AgentID:         req.AgentID,
		RunID:           req.RunID,
		Tags:            req.Tags,
		Decision:        req.Decision,
		Changeset:       req.Changeset,
		Note:            req.Note,
		Filelog:         req.Filelog,
		Run:             req.Run,
		LinkedObjects:   req.LinkedObjects,
		LinkedDecisions: req.LinkedDecisions,
		LinkedFiles:     req.LinkedFiles,
	})
	if err != nil {
		writeError(w, "api.CreateArtifact", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleListArtifacts implements a listing view over artifact-shaped objects:
// GET /artifacts?type=…&project_id=….
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	filter := storage.ScanFilter{
		Type:      model.ObjectType(r.URL.Query().Get("type")),
		ProjectID: r.URL.Query().Get("project_id"),
		Limit:     100,
	}
	objs, err := s.deps.Objects.Scan(r.Context(), filter)
	if err != nil {
		writeError(w, "api.ListArtifacts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": objs})
}
