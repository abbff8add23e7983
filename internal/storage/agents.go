package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/model"
)

// AgentStore persists connected-agent records (model.AgentConnection).
type AgentStore struct {
	db *DB
}

// NewAgentStore returns an AgentStore backed by db.
func NewAgentStore(db *DB) *AgentStore {
	return &AgentStore{db: db}
}

const agentColumns = "connection_id, agent_id, agent_name, run_id, project_id, status, last_heartbeat, connected_at, expires_at"

// Upsert records or refreshes an agent connection.
func (s *AgentStore) Upsert(ctx context.Context, a *model.AgentConnection) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	_, err := s.db.sqlDB.ExecContext(ctx, `
INSERT INTO agent_connections (connection_id, agent_id, agent_name, run_id, project_id, status, last_heartbeat, connected_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(connection_id) DO UPDATE SET
	agent_name = excluded.agent_name, run_id = excluded.run_id, project_id = excluded.project_id,
	status = excluded.status, last_heartbeat = excluded.last_heartbeat, expires_at = excluded.expires_at`,
		a.ConnectionID, a.AgentID, a.AgentName, a.RunID, a.ProjectID, a.Status,
		a.LastHeartbeat.UTC(), a.ConnectedAt.UTC(), a.ExpiresAt.UTC())
	if err != nil {
		return amperr.Storage("AgentStore.Upsert", err)
	}
	return nil
}

func scanAgent(row interface{ Scan(...any) error }) (*model.AgentConnection, error) {
	var a model.AgentConnection
	if err := row.Scan(&a.ConnectionID, &a.AgentID, &a.AgentName, &a.RunID, &a.ProjectID,
		&a.Status, &a.LastHeartbeat, &a.ConnectedAt, &a.ExpiresAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Get retrieves an agent connection by ID.
func (s *AgentStore) Get(ctx context.Context, connectionID string) (*model.AgentConnection, error) {
	row := s.db.sqlDB.QueryRowContext(ctx, "SELECT "+agentColumns+" FROM agent_connections WHERE connection_id = ?", connectionID)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, amperr.NotFound("AgentStore.Get", "agent connection "+connectionID+" not found")
	}
	if err != nil {
		return nil, amperr.Storage("AgentStore.Get", err)
	}
	return a, nil
}

// List returns every known agent connection.
func (s *AgentStore) List(ctx context.Context) ([]*model.AgentConnection, error) {
	rows, err := s.db.sqlDB.QueryContext(ctx, "SELECT "+agentColumns+" FROM agent_connections ORDER BY last_heartbeat DESC")
	if err != nil {
		return nil, amperr.Storage("AgentStore.List", err)
	}
	defer rows.Close()

	var out []*model.AgentConnection
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, amperr.Storage("AgentStore.List", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteExpired removes agent connections whose expires_at has passed.
func (s *AgentStore) DeleteExpired(ctx context.Context, now time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, err := s.db.sqlDB.ExecContext(ctx, "DELETE FROM agent_connections WHERE expires_at < ?", now.UTC()); err != nil {
		return amperr.Storage("AgentStore.DeleteExpired", err)
	}
	return nil
}
