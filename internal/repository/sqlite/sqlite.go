// Package sqlite implements the repository interfaces on SQLite.
//
// SQLite keeps the whole store in one file inside the binary's reach — no
// database server to run, and ":memory:" gives tests a throwaway instance.
// We use the pure-Go driver (modernc.org/sqlite) so builds need no CGo and
// cross-compile cleanly.
//
// STORAGE LAYOUT:
// Two collections, exactly as the app's data model describes them:
//
//	users     — credential records, one row per account (relational columns)
//	user_data — profile documents, one row per account, the document itself
//	            stored as a JSON blob plus a version counter
//
// The document-as-JSON design is deliberate: the profile document is a
// free-form aggregate the server mostly passes through, so decomposing it
// into columns would buy nothing and break every time the frontend adds a
// field. The version column is the one piece SQL needs to see — it drives
// the conditional update that detects write races.
package sqlite

import (
	"database/sql"
	"fmt"

	// Blank import: the driver registers itself with database/sql under the
	// name "sqlite" in its init().
	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB pool and implements both repository interfaces.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Pass ":memory:" for an in-memory instance.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force a real connection now so a bad path fails at boot, not on the
	// first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — important for a
	// web server. Foreign keys are off by default in SQLite; we rely on
	// them for the users → user_data cascade.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Always defer this next to New — it
// flushes the WAL and releases the file lock.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	// google_id is nullable: password-only accounts have none, and UNIQUE
	// in SQLite ignores NULLs, so any number of them can coexist.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			google_id     TEXT UNIQUE,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_data (
			user_id    TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			document   TEXT NOT NULL DEFAULT '{}',
			version    INTEGER NOT NULL DEFAULT 1,
			last_saved DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating user_data table: %w", err)
	}

	return nil
}
