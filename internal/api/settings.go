package api

import (
	"encoding/json"
	"net/http"
)

// handleGetSettings implements settings read: GET /settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if key := r.URL.Query().Get("key"); key != "" {
		value, ok, err := s.deps.Settings.Get(r.Context(), key)
		if err != nil {
			writeError(w, "api.GetSettings", err)
			return
		}
		if !ok {
			writeJSONError(w, http.StatusNotFound, "setting "+key+" not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{key: value})
		return
	}

	all, err := s.deps.Settings.All(r.Context())
	if err != nil {
		writeError(w, "api.GetSettings", err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// handlePostSettings implements settings write: POST /settings.
func (s *Server) handlePostSettings(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for key, value := range body {
		if err := s.deps.Settings.Set(r.Context(), key, value); err != nil {
			writeError(w, "api.PostSettings", err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
