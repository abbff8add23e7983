package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/model"
)

type createObjectResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// handleCreateObject implements C1.create: POST /objects.
func (s *Server) handleCreateObject(w http.ResponseWriter, r *http.Request) {
	var obj model.Object
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if obj.Type == "" {
		writeJSONError(w, http.StatusBadRequest, "type is required")
		return
	}
	if obj.ID == "" {
		obj.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	obj.CreatedAt, obj.UpdatedAt = now, now

	if err := s.deps.Objects.Create(r.Context(), &obj); err != nil {
		writeError(w, "api.CreateObject", err)
		return
	}
	writeJSON(w, http.StatusCreated, createObjectResponse{ID: obj.ID, CreatedAt: obj.CreatedAt})
}

type batchItemResult struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type batchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type createBatchResponse struct {
	Items   []batchItemResult `json:"items"`
	Summary batchSummary      `json:"summary"`
}

// handleCreateObjectBatch implements C1.create_batch: POST /objects/batch.
// Each object is created independently (rather than in CreateBatch's single
// transaction) so one bad item in the batch can't sink the rest.
func (s *Server) handleCreateObjectBatch(w http.ResponseWriter, r *http.Request) {
	var objs []*model.Object
	if err := json.NewDecoder(r.Body).Decode(&objs); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary := batchSummary{Total: len(objs)}
	items := make([]batchItemResult, 0, len(objs))

	for _, obj := range objs {
		if obj.Type == "" {
			items = append(items, batchItemResult{Status: "failed", Error: "type is required"})
			summary.Failed++
			continue
		}
		if obj.ID == "" {
			obj.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		obj.CreatedAt, obj.UpdatedAt = now, now

		if err := s.deps.Objects.Create(r.Context(), obj); err != nil {
			items = append(items, batchItemResult{ID: obj.ID, Status: "failed", Error: err.Error()})
			summary.Failed++
			continue
		}
		items = append(items, batchItemResult{ID: obj.ID, Status: "created"})
		summary.Succeeded++
	}

	status := http.StatusCreated
	switch {
	case summary.Total == 0:
		status = http.StatusCreated
	case summary.Failed == summary.Total:
		status = http.StatusInternalServerError
	case summary.Failed > 0:
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, createBatchResponse{Items: items, Summary: summary})
}

// handleGetObject implements C1.get: GET /objects/{id}.
func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	obj, err := s.deps.Objects.Get(r.Context(), id)
	if err != nil {
		writeError(w, "api.GetObject", err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// handleUpdateObject implements C1.update: PUT /objects/{id}, merging the
// request body's fields onto the stored object rather than replacing it.
func (s *Server) handleUpdateObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.deps.Objects.Get(r.Context(), id)
	if err != nil {
		writeError(w, "api.UpdateObject", err)
		return
	}

	existingBytes, err := json.Marshal(existing)
	if err != nil {
		writeError(w, "api.UpdateObject", amperr.Storage("api.UpdateObject", err))
		return
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(existingBytes, &merged); err != nil {
		writeError(w, "api.UpdateObject", amperr.Storage("api.UpdateObject", err))
		return
	}

	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for k, v := range patch {
		if k == "id" || k == "created_at" {
			continue
		}
		merged[k] = v
	}

	mergedBytes, err := json.Marshal(merged)
	if err != nil {
		writeError(w, "api.UpdateObject", amperr.Storage("api.UpdateObject", err))
		return
	}
	var updated model.Object
	if err := json.Unmarshal(mergedBytes, &updated); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid patch fields")
		return
	}
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	if err := s.deps.Objects.Update(r.Context(), &updated); err != nil {
		writeError(w, "api.UpdateObject", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteObject implements C1.delete: DELETE /objects/{id}, cascading
// to every relationship touching id.
func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.deps.Objects.Delete(r.Context(), id); err != nil {
		writeError(w, "api.DeleteObject", err)
		return
	}
	if err := s.deps.Rels.DeleteEdgesOf(r.Context(), id); err != nil {
		s.log.Warn("failed to cascade-delete relationships", "error", err, "object_id", id)
	}
	w.WriteHeader(http.StatusNoContent)
}
