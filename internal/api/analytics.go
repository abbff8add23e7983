package api

import (
	"net/http"

	"github.com/amp-memory/amp/internal/model"
	"github.com/amp-memory/amp/internal/storage"
)

type analyticsResponse struct {
	CountsByType   map[model.ObjectType]int `json:"counts_by_type"`
	RecentActivity []*model.Object          `json:"recent_activity"`
}

// handleAnalytics implements the aggregate-counts + recent-activity view:
// GET /analytics.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	counts := make(map[model.ObjectType]int)
	for _, t := range []model.ObjectType{
		model.ObjectSymbol, model.ObjectDecision, model.ObjectChangeset, model.ObjectRun,
		model.ObjectFilelog, model.ObjectNote, model.ObjectArtifactCore,
		model.ObjectAgentConnection, model.ObjectFilechunk,
	} {
		objs, err := s.deps.Objects.Scan(r.Context(), storage.ScanFilter{Type: t, Limit: 100000})
		if err != nil {
			writeError(w, "api.Analytics", err)
			return
		}
		counts[t] = len(objs)
	}

	recent, err := s.deps.Objects.Scan(r.Context(), storage.ScanFilter{Limit: 20})
	if err != nil {
		writeError(w, "api.Analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, analyticsResponse{CountsByType: counts, RecentActivity: recent})
}
