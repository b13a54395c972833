// Package persistence implements PersistenceManager: wear-leveled
// write-back of the settings block, urgent-flush on fault, and
// schema-magic validation at boot. See SPEC_FULL.md §4.4.
package persistence

import (
	"context"
	"math"
	"time"

	elpico "github.com/naco-design/el-pico"
	"github.com/naco-design/el-pico/internal/config"
	"github.com/naco-design/el-pico/internal/obslog"
)

// NonVolatileStore is the raw byte-addressed backing store; the SQLite
// implementation under internal/persistence/sqlite satisfies it by
// keeping the whole block as a single-row BLOB.
type NonVolatileStore interface {
	ReadBlock(ctx context.Context) ([]byte, error)
	WriteBlock(ctx context.Context, buf []byte) error
}

// Manager owns the RAM shadow of the last-persisted block and the
// current mutable settings that the supervisor and input router edit
// in place via Current().
type Manager struct {
	store NonVolatileStore
	log   *obslog.Logger

	persistIdle        time.Duration
	wearDirtyThreshold float64

	current elpico.Settings
	shadow  elpico.Settings

	dirty         bool
	lastDirtyAt   time.Time
	haveLastDirty bool

	lastSavedUpperWear float64
	lastSavedLowerWear float64
}

// New constructs a Manager, taking its idle-flush horizon and wear-dirty
// threshold from hw so tests can tighten both without recompiling (see
// SPEC_FULL.md §4.8). Call Boot before using Current.
func New(store NonVolatileStore, hw config.Hardware, log *obslog.Logger) *Manager {
	return &Manager{
		store:              store,
		log:                log,
		persistIdle:        hw.PersistIdle,
		wearDirtyThreshold: hw.WearSaveThresholdC,
	}
}

// Boot loads the persisted block. A missing block or a schema-magic
// mismatch is treated as first-boot: a default block is written
// immediately and returned, matching S1 in the testable scenarios.
func (m *Manager) Boot(ctx context.Context, now time.Time) (elpico.Settings, error) {
	buf, err := m.store.ReadBlock(ctx)
	if err != nil {
		return elpico.Settings{}, err
	}

	s, valid := elpico.Settings{}, false
	if buf != nil {
		if dec, derr := elpico.DecodeSettings(buf); derr == nil && dec.Magic == elpico.SchemaMagic {
			s, valid = dec, true
		}
	}
	if !valid {
		s = elpico.DefaultSettings()
		if err := m.commit(ctx, s); err != nil {
			return s, err
		}
	}

	m.current = s
	m.shadow = s
	m.lastSavedUpperWear = s.UpperWear
	m.lastSavedLowerWear = s.LowerWear
	return s, nil
}

// Current returns a pointer into the manager's live settings, so callers
// (recipe/limit selection, auto-tune completion, factory reset, wear
// decay) mutate it directly rather than round-tripping copies.
func (m *Manager) Current() *elpico.Settings { return &m.current }

// MarkDirty records that Current has changed and should eventually be
// committed. now seeds the idle-flush timer.
func (m *Manager) MarkDirty(now time.Time) {
	m.dirty = true
	m.lastDirtyAt = now
	m.haveLastDirty = true
}

// MarkWearDirty is the wear-decay dirty path: it only marks dirty once
// either zone's wear has drifted by at least a full point since the last
// save, protecting flash endurance against every 0.002-per-tick decay
// step triggering a write. The reference point resets here, at mark time
// (mirroring the original's lastSavedUpHealth reset), not in SaveNow —
// otherwise sustained decay keeps the drift over threshold on every
// subsequent tick, re-stamping lastDirtyAt forever and starving the
// idle-flush horizon in Tick.
func (m *Manager) MarkWearDirty(now time.Time) {
	if math.Abs(m.current.UpperWear-m.lastSavedUpperWear) >= m.wearDirtyThreshold ||
		math.Abs(m.current.LowerWear-m.lastSavedLowerWear) >= m.wearDirtyThreshold {
		m.lastSavedUpperWear = m.current.UpperWear
		m.lastSavedLowerWear = m.current.LowerWear
		m.MarkDirty(now)
	}
}

// Tick commits Current to non-volatile storage iff dirty AND either the
// oven is in a state where data loss would be unacceptable (Shutdown,
// Error) or the idle-flush horizon has elapsed. Failures are logged and
// swallowed: persistence is advisory to safety, never blocking on it.
func (m *Manager) Tick(ctx context.Context, now time.Time, state elpico.OvenState) {
	if !m.dirty {
		return
	}
	urgent := state == elpico.Shutdown || state == elpico.Error
	idle := m.haveLastDirty && now.Sub(m.lastDirtyAt) > m.persistIdle
	if urgent || idle {
		m.SaveNow(ctx)
	}
}

// SaveNow forces an immediate commit attempt, used for urgent-flush on
// fault and for factory reset. A no-op if Current already equals the
// shadow byte-for-byte.
func (m *Manager) SaveNow(ctx context.Context) {
	if m.current.Equal(m.shadow) {
		m.dirty = false
		return
	}
	if err := m.commit(ctx, m.current); err != nil {
		m.log.Errorw("settings commit failed", "err", err)
		return
	}
	m.shadow = m.current
	m.lastSavedUpperWear = m.current.UpperWear
	m.lastSavedLowerWear = m.current.LowerWear
	m.dirty = false
}

func (m *Manager) commit(ctx context.Context, s elpico.Settings) error {
	return m.store.WriteBlock(ctx, s.Encode())
}
