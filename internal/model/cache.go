package model

import "time"

// CacheItemKind enumerates the kinds of episodic cache items.
type CacheItemKind string

const (
	CacheItemFact     CacheItemKind = "fact"
	CacheItemDecision CacheItemKind = "decision"
	CacheItemSnippet  CacheItemKind = "snippet"
	CacheItemWarning  CacheItemKind = "warning"
)

// CacheItem is a single episodic-cache entry scoped to an agent/run/project
// key: a fact, decision pointer, snippet, or warning an agent has already
// paid the cost to produce, kept around for reuse within the scope's TTL.
type CacheItem struct {
	ID           string        `json:"id"`
	ScopeID      string        `json:"scope_id"`
	ArtifactID   string        `json:"artifact_id,omitempty"`
	Kind         CacheItemKind `json:"kind"`
	Preview      string        `json:"preview"`
	Facts        []string      `json:"facts,omitempty"`
	Embedding    []float32     `json:"embedding,omitempty"`
	HasEmbedding bool          `json:"has_embedding"`
	Importance   float64       `json:"importance"`
	AccessCount  int           `json:"access_count"`
	Provenance   Provenance    `json:"provenance"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	TTLExpiresAt time.Time     `json:"ttl_expires_at"`
}

// CacheFrame is the rolling per-scope summary that get_pack assembles
// around its item set. compact() advances Version and resets the summary;
// write_items keeps UpdatedAt current so staleness can be judged against
// CacheConfig.FrameStaleAfterM.
type CacheFrame struct {
	ScopeID      string    `json:"scope_id"`
	Version      int       `json:"version"`
	Summary      string    `json:"summary"`
	TokenCount   int       `json:"token_count"`
	UpdatedAt    time.Time `json:"updated_at"`
	TTLExpiresAt time.Time `json:"ttl_expires_at"`
}

// AgentConnection records a connected agent's identity and liveness. It is
// persisted by storage.AgentStore; no HTTP handler reads or writes it.
type AgentConnection struct {
	ConnectionID string    `json:"connection_id"`
	AgentID      string    `json:"agent_id"`
	AgentName    string    `json:"agent_name"`
	RunID        string    `json:"run_id,omitempty"`
	ProjectID    string    `json:"project_id,omitempty"`
	Status       string    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	ConnectedAt  time.Time `json:"connected_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}
