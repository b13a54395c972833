package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const blockRowID = 1

// SettingsStore persists the raw encoded settings block as a single-row
// BLOB, preserving the "offset 0, packed" contract of the original block
// layout while riding on the teacher's SQL repository idiom instead of a
// raw byte-addressed device.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore { return &SettingsStore{db: db} }

// ReadBlock returns the stored bytes, or (nil, nil) if nothing has ever
// been written — the SQLite analogue of blank/unformatted flash.
func (s *SettingsStore) ReadBlock(ctx context.Context) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT bytes FROM settings_block WHERE id = ?`, blockRowID)
	var buf []byte
	if err := row.Scan(&buf); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: read settings block: %w", err)
	}
	return buf, nil
}

// WriteBlock overwrites the stored block, the sole write path exercised
// by the persistence manager's commit routine.
func (s *SettingsStore) WriteBlock(ctx context.Context, buf []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings_block (id, bytes) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET bytes = excluded.bytes
	`, blockRowID, buf)
	if err != nil {
		return fmt.Errorf("sqlite: write settings block: %w", err)
	}
	return nil
}
