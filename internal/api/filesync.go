package api

import (
	"encoding/json"
	"net/http"

	"github.com/amp-memory/amp/internal/filesync"
)

type fileSyncRequest struct {
	Action  string `json:"action"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Summary string `json:"summary"`
	RunID   string `json:"run_id"`
	AgentID string `json:"agent_id"`
}

// handleFileSync implements C9: POST /file-sync.
func (s *Server) handleFileSync(w http.ResponseWriter, r *http.Request) {
	var req fileSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeJSONError(w, http.StatusBadRequest, "path is required")
		return
	}

	result, err := s.deps.FileSync.Sync(r.Context(), filesync.Request{
		Action:  filesync.Action(req.Action),
		Path:    req.Path,
		Content: req.Content,
		Summary: req.Summary,
		RunID:   req.RunID,
		AgentID: req.AgentID,
	})
	if err != nil {
		writeError(w, "api.FileSync", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
