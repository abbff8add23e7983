package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/amp-memory/amp/internal/model"
	"github.com/amp-memory/amp/internal/retrieval"
)

type queryRequest struct {
	Text        string          `json:"text"`
	Vector      []float32       `json:"vector"`
	ProjectID   string          `json:"project_id"`
	Type        string          `json:"type"`
	GraphSeedID string          `json:"graph_seed_id"`
	GraphDepth  int             `json:"graph_depth"`
	Limit       int             `json:"limit"`
	TimeoutMS   int             `json:"timeout_ms"`
	Weights     *weightsRequest `json:"weights"`
}

type weightsRequest struct {
	Text   float64 `json:"text"`
	Vector float64 `json:"vector"`
	Graph  float64 `json:"graph"`
}

type queryResult struct {
	Object      *model.Object `json:"object"`
	Score       float64       `json:"score"`
	TextScore   float64       `json:"text_score"`
	VectorScore float64       `json:"vector_score"`
	GraphScore  float64       `json:"graph_score"`
}

type queryResponse struct {
	Results           []queryResult `json:"results"`
	TraceID           string        `json:"trace_id"`
	TotalCount        int           `json:"total_count"`
	ExecutionTimeMS   int64         `json:"execution_time_ms"`
	TextResultsCount  int           `json:"text_results_count"`
	VectorResultsCount int          `json:"vector_results_count"`
	GraphResultsCount int           `json:"graph_results_count"`
}

// handleQuery implements C7's hybrid query: POST /query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GraphDepth > 10 {
		writeJSONError(w, http.StatusBadRequest, "graph_depth must not exceed 10")
		return
	}

	engine := s.deps.Retrieval
	if req.Weights != nil {
		// A per-request weight override builds a one-off engine sharing the
		// same store/embedder/traverser, so the default engine's weights
		// stay untouched for other callers.
		engine = retrieval.New(s.deps.Objects, s.deps.Embedder, s.deps.Traverser, toRetrievalWeights(*req.Weights))
	}

	start := time.Now()
	results, err := engine.Query(r.Context(), retrieval.Request{
		Text:        req.Text,
		Vector:      req.Vector,
		ProjectID:   req.ProjectID,
		Type:        model.ObjectType(req.Type),
		GraphSeedID: req.GraphSeedID,
		GraphDepth:  req.GraphDepth,
		Limit:       req.Limit,
		Timeout:     time.Duration(req.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		writeError(w, "api.Query", err)
		return
	}

	resp := queryResponse{
		TraceID:         genTraceID(),
		TotalCount:      len(results),
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}
	for _, rr := range results {
		resp.Results = append(resp.Results, queryResult{
			Object: rr.Object, Score: rr.Score,
			TextScore: rr.TextScore, VectorScore: rr.VectorScore, GraphScore: rr.GraphScore,
		})
		if rr.TextScore > 0 {
			resp.TextResultsCount++
		}
		if rr.VectorScore > 0 {
			resp.VectorResultsCount++
		}
		if rr.GraphScore > 0 {
			resp.GraphResultsCount++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
