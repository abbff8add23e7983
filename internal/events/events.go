// Package events provides an in-process pub/sub bus used by the indexing
// pipeline to announce progress to observers (metrics
// collectors, log sinks, test harnesses) without coupling producers to them.
package events

import "time"

// EventType identifies the type of event being published.
type EventType string

const (
	// IndexStarted is published when a directory index run begins.
	IndexStarted EventType = "index.started"

	// IndexFileProcessed is published after a single file's symbols/chunks
	// have been created.
	IndexFileProcessed EventType = "index.file_processed"

	// IndexFileFailed is published when processing a single file errors.
	IndexFileFailed EventType = "index.file_failed"

	// IndexCompleted is published when a directory index run finishes.
	IndexCompleted EventType = "index.completed"

	// IndexCancelled is published when a run is aborted cooperatively.
	IndexCancelled EventType = "index.cancelled"

	// FileSynced is published when file-sync reconciles a single file.
	FileSynced EventType = "filesync.synced"

	// ArtifactWritten is published when the artifact writer persists an object.
	ArtifactWritten EventType = "artifact.written"

	// CacheCompacted is published when a cache scope's frame is rolled over.
	CacheCompacted EventType = "cache.compacted"
)

// Event represents a published event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

// NewEvent creates a new event with the given type and payload.
func NewEvent(eventType EventType, payload any) Event {
	return Event{Type: eventType, Timestamp: time.Now(), Payload: payload}
}

// IndexProgressPayload accompanies IndexFileProcessed/IndexFileFailed events.
type IndexProgressPayload struct {
	Path  string
	Error string
}

// FileSyncPayload accompanies FileSynced events.
type FileSyncPayload struct {
	Path   string
	Action string
	Status string
}
