// Package sqlite is the non-volatile storage backend for the oven's
// persisted settings block and fault log: a SQLite file standing in for
// the original firmware's EEPROM/flash region. Grounded on the teacher's
// internal/repository/db connection setup.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

const schemaSettingsBlock = `
CREATE TABLE IF NOT EXISTS settings_block (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	bytes BLOB NOT NULL
);
`

const schemaFaultLog = `
CREATE TABLE IF NOT EXISTS fault_log (
	id          TEXT PRIMARY KEY,
	occurred_at TIMESTAMP NOT NULL,
	zone        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	detail      TEXT
);
`

// Open opens/creates the SQLite-backed non-volatile store at path and
// ensures its schema exists. Like the physical EEPROM it replaces, only
// one writer is ever active at a time, so the connection pool is capped
// to a single connection.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set journal_mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range []string{schemaSettingsBlock, schemaFaultLog} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite: apply schema statement %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}
