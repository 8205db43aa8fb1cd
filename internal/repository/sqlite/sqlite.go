// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// The gateway treats its user store as a simple document collection keyed by
// email. SQLite fits that shape well for a single service: an embedded,
// zero-infrastructure database with a real UNIQUE constraint, which is what
// the provisioning race-safety guarantee hangs on. We use modernc.org/sqlite
// (a pure-Go translation) so builds need no C toolchain and cross-compile
// cleanly.
//
// List-valued and map-valued user fields (roles, scopes, metadata, issued
// token ids) are stored as JSON text columns. They are opaque to every query
// the gateway runs — lookups are by email only — so there is no reason to
// normalize them into side tables.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements repository.UserRepository.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath (":memory:" for tests), verifies
// connectivity, and runs migrations.
//
// The Ping doubles as the startup connectivity probe: if the store is not
// usable the constructor fails and the process does not start.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads during a write — callbacks for different
	// users must not serialize on each other.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	// Concurrent callbacks may write simultaneously; wait on the lock
	// instead of surfacing SQLITE_BUSY to a login request.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Callers defer this right after New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the users table.
//
// email is UNIQUE — that constraint, not any in-process lock, is what makes
// CreateIfAbsent safe against concurrent first logins, including across
// multiple gateway processes sharing one database file.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			provider        TEXT NOT NULL DEFAULT '',
			email           TEXT NOT NULL UNIQUE,
			hashed_password TEXT NOT NULL DEFAULT '',
			first_name      TEXT NOT NULL DEFAULT '',
			last_name       TEXT NOT NULL DEFAULT '',
			roles           TEXT NOT NULL DEFAULT '["user"]',
			scopes          TEXT NOT NULL DEFAULT '[]',
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_login_at   DATETIME,
			deleted_at      DATETIME,
			is_active       INTEGER NOT NULL DEFAULT 1,
			is_verified     INTEGER NOT NULL DEFAULT 0,
			mfa_enabled     INTEGER NOT NULL DEFAULT 0,
			picture         TEXT NOT NULL DEFAULT '',
			locale          TEXT NOT NULL DEFAULT 'en',
			timezone        TEXT NOT NULL DEFAULT 'UTC',
			metadata        TEXT NOT NULL DEFAULT '{}',
			token_ids       TEXT NOT NULL DEFAULT '[]'
		);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	return nil
}
