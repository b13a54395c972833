package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	elpico "github.com/naco-design/el-pico"
)

// FaultLog is the append-only audit trail of fault and state-transition
// events, supplementing the live in-RAM error bitset the way the
// teacher's furnace_events table supplements furnace_state. Unlike the
// settings block it never feeds back into control; the firmware reads it
// only through Recent, to list the latest entries at boot.
type FaultLog struct {
	db *sql.DB
}

func NewFaultLog(db *sql.DB) *FaultLog { return &FaultLog{db: db} }

// Append records one fault or transition event, assigning an ID if the
// caller left it blank.
func (f *FaultLog) Append(ctx context.Context, ev elpico.FaultEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO fault_log (id, occurred_at, zone, kind, detail)
		VALUES (?, ?, ?, ?, ?)
	`, ev.ID, ev.OccurredAt.UTC().Format("2006-01-02 15:04:05"), ev.Zone.String(), string(ev.Kind), ev.Detail)
	if err != nil {
		return fmt.Errorf("sqlite: append fault log entry: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent entries, newest first, for a
// maintenance/diagnostics surface.
func (f *FaultLog) Recent(ctx context.Context, limit int) ([]elpico.FaultEvent, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT id, occurred_at, zone, kind, detail FROM fault_log
		ORDER BY occurred_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query fault log: %w", err)
	}
	defer rows.Close()

	out := make([]elpico.FaultEvent, 0, limit)
	for rows.Next() {
		var ev elpico.FaultEvent
		var zone, kind string
		if err := rows.Scan(&ev.ID, &ev.OccurredAt, &zone, &kind, &ev.Detail); err != nil {
			return nil, fmt.Errorf("sqlite: scan fault log row: %w", err)
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		ev.Kind = elpico.EventKind(kind)
		switch zone {
		case "upper":
			ev.Zone = elpico.ZoneUpper
		case "lower":
			ev.Zone = elpico.ZoneLower
		default:
			ev.Zone = elpico.ZoneNone
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
