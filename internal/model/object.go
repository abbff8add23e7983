// Package model defines the data types shared across amp's storage, graph,
// retrieval, and artifact components: objects, relationships, provenance,
// and the episodic cache's items/frames.
package model

import "time"

// ObjectType is the tag identifying a polymorphic object variant.
type ObjectType string

const (
	ObjectSymbol          ObjectType = "symbol"
	ObjectDecision        ObjectType = "decision"
	ObjectChangeset       ObjectType = "changeset"
	ObjectRun             ObjectType = "run"
	ObjectFilelog         ObjectType = "filelog"
	ObjectNote            ObjectType = "note"
	ObjectArtifactCore    ObjectType = "artifact_core"
	ObjectAgentConnection ObjectType = "agent_connection"
	ObjectFilechunk       ObjectType = "filechunk"
)

// SymbolKind enumerates the kinds of code/structure symbols.
type SymbolKind string

const (
	SymbolProject   SymbolKind = "project"
	SymbolDirectory SymbolKind = "directory"
	SymbolFile      SymbolKind = "file"
	SymbolModule    SymbolKind = "module"
	SymbolClass     SymbolKind = "class"
	SymbolFunction  SymbolKind = "function"
	SymbolVariable  SymbolKind = "variable"
	SymbolType      SymbolKind = "type"
)

// RunStatus enumerates the lifecycle states of a run object.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Provenance records who/what produced an object.
type Provenance struct {
	Agent   string   `json:"agent"`
	Model   string   `json:"model,omitempty"`
	Tools   []string `json:"tools,omitempty"`
	Summary string   `json:"summary,omitempty"`
}

// Object is the common envelope for every stored record. Variant-specific
// fields are carried in the typed payload pointer fields below (Symbol,
// Decision, Changeset, …) and stored together as one JSON document in the
// objects.payload column at the storage boundary.
type Object struct {
	ID          string     `json:"id"`
	Type        ObjectType `json:"type"`
	TenantID    string     `json:"tenant_id,omitempty"`
	ProjectID   string     `json:"project_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Provenance  Provenance `json:"provenance"`
	Tags        []string   `json:"tags,omitempty"`
	Embedding   []float32  `json:"embedding,omitempty"`
	HasEmbedding bool      `json:"has_embedding"`

	Symbol    *SymbolPayload    `json:"symbol,omitempty"`
	Decision  *DecisionPayload  `json:"decision,omitempty"`
	Changeset *ChangesetPayload `json:"changeset,omitempty"`
	Run       *RunPayload       `json:"run,omitempty"`
	Filelog   *FilelogPayload   `json:"filelog,omitempty"`
	Note      *NotePayload      `json:"note,omitempty"`
	Filechunk *FilechunkPayload `json:"filechunk,omitempty"`
}

// SymbolPayload holds fields specific to symbol objects (project, directory,
// file, module, class, function, variable, type).
type SymbolPayload struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Path          string     `json:"path"`
	Language      string     `json:"language,omitempty"`
	Signature     string     `json:"signature,omitempty"`
	Documentation string     `json:"documentation,omitempty"`
	ContentHash   string     `json:"content_hash,omitempty"`
	FileSize      int64      `json:"file_size,omitempty"`
	LineCount     int        `json:"line_count,omitempty"`
}

// FilelogAuditEntry records a single file-sync action in recent_changes.
type FilelogAuditEntry struct {
	Action    string    `json:"action"`
	Summary   string    `json:"summary"`
	AgentID   string    `json:"agent_id,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FilelogPayload holds fields specific to filelog objects.
type FilelogPayload struct {
	FilePath        string              `json:"file_path"`
	SummaryMarkdown string              `json:"summary_markdown"`
	Purpose         string              `json:"purpose,omitempty"`
	KeySymbols      []string            `json:"key_symbols,omitempty"`
	Dependencies    []string            `json:"dependencies,omitempty"`
	RecentChanges   []FilelogAuditEntry `json:"recent_changes,omitempty"`
	LinkedDecisions []string            `json:"linked_decisions,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	Status          string              `json:"status,omitempty"` // "" (active) or "deleted"
	ContentHash     string              `json:"content_hash,omitempty"`
}

// DecisionPayload holds fields specific to decision objects.
type DecisionPayload struct {
	Title         string   `json:"title"`
	Context       string   `json:"context"`
	Decision      string   `json:"decision"`
	Consequences  string   `json:"consequences"`
	Alternatives  []string `json:"alternatives,omitempty"`
	Status        string   `json:"status"`
}

// ChangesetPayload holds fields specific to changeset objects.
type ChangesetPayload struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Diff         string   `json:"diff"`
	FilesChanged []string `json:"files_changed,omitempty"`
	Status       string   `json:"status"`
}

// RunPayload holds fields specific to run objects.
type RunPayload struct {
	InputSummary string    `json:"input_summary"`
	Status       RunStatus `json:"status"`
	Outputs      []string  `json:"outputs,omitempty"`
	Focus        string    `json:"focus,omitempty"`
}

// NotePayload holds fields specific to note objects.
type NotePayload struct {
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

// FilechunkPayload holds fields specific to filechunk objects (C4 output
// persisted as C1 objects).
type FilechunkPayload struct {
	FileID      string `json:"file_id"`
	ChunkIndex  int    `json:"chunk_index"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	TokenCount  int    `json:"token_count"`
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
	Language    string `json:"language,omitempty"`
}

// Title returns a human-readable label used by text search/hybrid fusion,
// derived from whichever payload is populated.
func (o *Object) Title() string {
	switch {
	case o.Symbol != nil:
		return o.Symbol.Name
	case o.Decision != nil:
		return o.Decision.Title
	case o.Changeset != nil:
		return o.Changeset.Title
	case o.Filelog != nil:
		return o.Filelog.FilePath
	case o.Note != nil:
		return o.Note.Category
	case o.Run != nil:
		return o.Run.InputSummary
	}
	return ""
}

// Description returns the long-form body text used by text search.
func (o *Object) Description() string {
	switch {
	case o.Decision != nil:
		return o.Decision.Context
	case o.Changeset != nil:
		return o.Changeset.Description
	case o.Note != nil:
		return o.Note.Content
	case o.Filelog != nil:
		return o.Filelog.SummaryMarkdown
	}
	return ""
}

// Documentation returns the documentation text used by text search (symbols only).
func (o *Object) Documentation() string {
	if o.Symbol != nil {
		return o.Symbol.Documentation
	}
	return ""
}
