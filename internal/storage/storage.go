// Package storage implements the coupled object and relationship stores
// (C1, C2) on top of a single SQLite database, plus the supporting tables
// for the episodic cache, agent connections, and runtime settings.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	_ "modernc.org/sqlite"
)

// DB wraps a *sql.DB opened against the amp SQLite schema.
type DB struct {
	sqlDB *sql.DB

	mu sync.Mutex // serializes writes; SQLite allows one writer at a time
}

// Open opens (and creates if absent) the SQLite database at dsn and runs
// any pending migrations. dsn is a file path, or ":memory:"/"file::memory:"
// for an in-process ephemeral store.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" || dsn == "memory" {
		dsn = "file::memory:?cache=shared"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q; %w", dsn, err)
	}

	// SQLite serializes writers internally; cap the pool so database/sql
	// does not fan out concurrent write attempts that would just block.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite database %q; %w", dsn, err)
	}

	if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys; %w", err)
	}

	db := &DB{sqlDB: sqlDB}

	if err := db.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations; %w", err)
	}

	return db, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.sqlDB.Close()
}

// SQL exposes the underlying *sql.DB for packages (such as internal/leases'
// SQLite fallback) that need to share amp's database file without taking a
// dependency on this package's higher-level stores.
func (db *DB) SQL() *sql.DB {
	return db.sqlDB
}

// Migration is a single forward-only schema change.
type Migration struct {
	Version     int
	Description string
	Up          string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "create objects table",
		Up: `
CREATE TABLE IF NOT EXISTS objects (
	id            TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	tenant_id     TEXT NOT NULL DEFAULT '',
	project_id    TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL,
	provenance    TEXT NOT NULL DEFAULT '{}',
	embedding     BLOB,
	payload       TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_objects_type ON objects(type);
CREATE INDEX IF NOT EXISTS idx_objects_project ON objects(project_id);
`,
	},
	{
		Version:     2,
		Description: "create relationship edge tables",
		Up: `
CREATE TABLE IF NOT EXISTS rel_depends_on (
	source_id TEXT NOT NULL, target_id TEXT NOT NULL, created_at DATETIME NOT NULL,
	PRIMARY KEY (source_id, target_id)
);
CREATE TABLE IF NOT EXISTS rel_defined_in (
	source_id TEXT NOT NULL, target_id TEXT NOT NULL, created_at DATETIME NOT NULL,
	PRIMARY KEY (source_id, target_id)
);
CREATE TABLE IF NOT EXISTS rel_calls (
	source_id TEXT NOT NULL, target_id TEXT NOT NULL, created_at DATETIME NOT NULL,
	PRIMARY KEY (source_id, target_id)
);
CREATE TABLE IF NOT EXISTS rel_justified_by (
	source_id TEXT NOT NULL, target_id TEXT NOT NULL, created_at DATETIME NOT NULL,
	PRIMARY KEY (source_id, target_id)
);
CREATE TABLE IF NOT EXISTS rel_modifies (
	source_id TEXT NOT NULL, target_id TEXT NOT NULL, created_at DATETIME NOT NULL,
	PRIMARY KEY (source_id, target_id)
);
CREATE TABLE IF NOT EXISTS rel_implements (
	source_id TEXT NOT NULL, target_id TEXT NOT NULL, created_at DATETIME NOT NULL,
	PRIMARY KEY (source_id, target_id)
);
CREATE TABLE IF NOT EXISTS rel_produced (
	source_id TEXT NOT NULL, target_id TEXT NOT NULL, created_at DATETIME NOT NULL,
	PRIMARY KEY (source_id, target_id)
);
CREATE INDEX IF NOT EXISTS idx_rel_depends_on_target ON rel_depends_on(target_id);
CREATE INDEX IF NOT EXISTS idx_rel_defined_in_target ON rel_defined_in(target_id);
CREATE INDEX IF NOT EXISTS idx_rel_calls_target ON rel_calls(target_id);
CREATE INDEX IF NOT EXISTS idx_rel_justified_by_target ON rel_justified_by(target_id);
CREATE INDEX IF NOT EXISTS idx_rel_modifies_target ON rel_modifies(target_id);
CREATE INDEX IF NOT EXISTS idx_rel_implements_target ON rel_implements(target_id);
CREATE INDEX IF NOT EXISTS idx_rel_produced_target ON rel_produced(target_id);
`,
	},
	{
		Version:     3,
		Description: "create episodic cache tables",
		Up: `
CREATE TABLE IF NOT EXISTS cache_items (
	id              TEXT PRIMARY KEY,
	scope_id        TEXT NOT NULL,
	artifact_id     TEXT NOT NULL DEFAULT '',
	kind            TEXT NOT NULL,
	preview         TEXT NOT NULL,
	facts           TEXT NOT NULL DEFAULT '[]',
	embedding       BLOB,
	importance      REAL NOT NULL DEFAULT 0,
	access_count    INTEGER NOT NULL DEFAULT 0,
	provenance      TEXT NOT NULL DEFAULT '{}',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	ttl_expires_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_items_scope ON cache_items(scope_id);
CREATE INDEX IF NOT EXISTS idx_cache_items_ttl ON cache_items(ttl_expires_at);

CREATE TABLE IF NOT EXISTS cache_frames (
	scope_id     TEXT PRIMARY KEY,
	version      INTEGER NOT NULL DEFAULT 1,
	summary      TEXT NOT NULL DEFAULT '',
	token_count  INTEGER NOT NULL DEFAULT 0,
	updated_at   DATETIME NOT NULL,
	ttl_expires_at DATETIME NOT NULL
);
`,
	},
	{
		Version:     4,
		Description: "create agent connections and settings tables",
		Up: `
CREATE TABLE IF NOT EXISTS agent_connections (
	connection_id    TEXT PRIMARY KEY,
	agent_id         TEXT NOT NULL,
	agent_name       TEXT NOT NULL,
	run_id           TEXT NOT NULL DEFAULT '',
	project_id       TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'connected',
	last_heartbeat   DATETIME NOT NULL,
	connected_at     DATETIME NOT NULL,
	expires_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
	},
	{
		Version:     5,
		Description: "create leases table for in-process fallback",
		Up: `
CREATE TABLE IF NOT EXISTS leases (
	resource    TEXT PRIMARY KEY,
	holder      TEXT NOT NULL,
	acquired_at DATETIME NOT NULL,
	expires_at  DATETIME NOT NULL
);
`,
	},
}

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.sqlDB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`); err != nil {
		return fmt.Errorf("create schema_migrations table; %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.sqlDB.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("query applied migrations; %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration version; %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	pending := make([]Migration, 0, len(migrations))
	for _, m := range migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, m := range pending {
		if err := db.runMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s); %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func (db *DB) runMigration(ctx context.Context, m Migration) error {
	tx, err := db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction; %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		return fmt.Errorf("apply schema; %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		m.Version, m.Description); err != nil {
		return fmt.Errorf("record migration; %w", err)
	}
	return tx.Commit()
}

// relTable maps a relation type to its backing table name. Callers pass
// only types from model.RelationTypes, so the lookup always succeeds.
func relTable(t string) string {
	return "rel_" + t
}
