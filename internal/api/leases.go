package api

import (
	"encoding/json"
	"net/http"
	"time"
)

type leaseAcquireRequest struct {
	Resource   string `json:"resource"`
	Holder     string `json:"holder"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type leaseResponse struct {
	LeaseID   string    `json:"lease_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleLeaseAcquire implements §5's lease acquire: POST /leases/acquire.
func (s *Server) handleLeaseAcquire(w http.ResponseWriter, r *http.Request) {
	var req leaseAcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Resource == "" || req.Holder == "" || req.TTLSeconds <= 0 {
		writeJSONError(w, http.StatusBadRequest, "resource, holder, and a positive ttl_seconds are required")
		return
	}

	leaseID, expiresAt, err := s.deps.Leases.Acquire(r.Context(), req.Resource, req.Holder, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		writeError(w, "api.LeaseAcquire", err)
		return
	}
	writeJSON(w, http.StatusOK, leaseResponse{LeaseID: leaseID, ExpiresAt: expiresAt})
}

type leaseRenewRequest struct {
	LeaseID    string `json:"lease_id"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// handleLeaseRenew implements §5's lease renew: POST /leases/renew.
func (s *Server) handleLeaseRenew(w http.ResponseWriter, r *http.Request) {
	var req leaseRenewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LeaseID == "" || req.TTLSeconds <= 0 {
		writeJSONError(w, http.StatusBadRequest, "lease_id and a positive ttl_seconds are required")
		return
	}

	expiresAt, err := s.deps.Leases.Renew(r.Context(), req.LeaseID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		writeError(w, "api.LeaseRenew", err)
		return
	}
	writeJSON(w, http.StatusOK, leaseResponse{LeaseID: req.LeaseID, ExpiresAt: expiresAt})
}

type leaseReleaseRequest struct {
	LeaseID string `json:"lease_id"`
}

// handleLeaseRelease implements §5's lease release: POST /leases/release.
func (s *Server) handleLeaseRelease(w http.ResponseWriter, r *http.Request) {
	var req leaseReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LeaseID == "" {
		writeJSONError(w, http.StatusBadRequest, "lease_id is required")
		return
	}

	if err := s.deps.Leases.Release(r.Context(), req.LeaseID); err != nil {
		writeError(w, "api.LeaseRelease", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
