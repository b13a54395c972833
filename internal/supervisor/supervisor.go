// Package supervisor implements OvenSupervisor: the oven-level state
// machine sequencing pre-heat, bake, rest, cool, shutdown, error
// latching, and auto-tune staging. See SPEC_FULL.md §4.3.
package supervisor

import (
	"context"
	"math"
	"time"

	elpico "github.com/naco-design/el-pico"
	"github.com/naco-design/el-pico/internal/config"
	"github.com/naco-design/el-pico/internal/obslog"
	"github.com/naco-design/el-pico/internal/persistence"
	"github.com/naco-design/el-pico/internal/power"
	"github.com/naco-design/el-pico/internal/zone"
)

// Contactor is the mains-isolating relay: Set(true) energizes it.
type Contactor interface {
	Set(energized bool)
}

// FaultRecorder appends to, and reads back, the durable fault/transition
// audit trail. Append failures are logged and swallowed by the
// supervisor — persistence of the audit trail is advisory, never a
// safety dependency; Recent backs the maintenance diagnostics surface.
type FaultRecorder interface {
	Append(ctx context.Context, ev elpico.FaultEvent) error
	Recent(ctx context.Context, limit int) ([]elpico.FaultEvent, error)
}

// Supervisor is the process-wide owning context for oven state,
// mirroring the original firmware's global mutable state as a single
// struct passed through the control-tick call graph rather than package
// globals (see SPEC_FULL.md §9's design note on that source pattern).
type Supervisor struct {
	upper, lower *zone.Controller
	persist      *persistence.Manager
	contactor    Contactor
	faults       FaultRecorder
	log          *obslog.Logger
	hw           config.Hardware

	state   elpico.OvenState
	baking  bool
	confirm elpico.Confirmation

	tuneStage uint8

	bakeStart, bakeDoneAt, boostStart, restStart, lastActivity time.Time
	haveBakeStart, haveRestStart, haveLastActivity             bool
	curBakeSeconds                                             int

	coolStableStart time.Time
	haveCoolStable  bool

	temporaryMsg    string
	temporaryMsgEnd time.Time

	targetUpperDuty, targetLowerDuty uint8

	recipeCache elpico.Recipe
}

// New constructs a Supervisor in Idle. Call SyncRecipeCache once the
// persisted settings are loaded.
func New(upper, lower *zone.Controller, persist *persistence.Manager, contactor Contactor, faults FaultRecorder, hw config.Hardware, log *obslog.Logger) *Supervisor {
	s := &Supervisor{
		upper:     upper,
		lower:     lower,
		persist:   persist,
		contactor: contactor,
		faults:    faults,
		hw:        hw,
		log:       log,
		state:     elpico.Idle,
	}
	s.SyncRecipeCache()
	return s
}

// SyncRecipeCache refreshes the cached active recipe from persisted
// settings; called after any recipe-index change and at boot/reset.
func (s *Supervisor) SyncRecipeCache() {
	s.recipeCache = elpico.RecipeAt(s.persist.Current().RecipeIdx)
}

func (s *Supervisor) settings() *elpico.Settings { return s.persist.Current() }

// State, Confirmation, Baking, TuneStage expose read-only state for the
// input router, display renderer, and telemetry encoder.
func (s *Supervisor) State() elpico.OvenState          { return s.state }
func (s *Supervisor) Confirmation() elpico.Confirmation { return s.confirm }
func (s *Supervisor) Baking() bool                     { return s.baking }
func (s *Supervisor) TuneStage() uint8                 { return s.tuneStage }
func (s *Supervisor) Recipe() elpico.Recipe            { return s.recipeCache }
func (s *Supervisor) Limit() elpico.PowerLimit         { return elpico.PowerLimitAt(s.settings().LimitIdx) }
func (s *Supervisor) TargetUpperDuty() uint8           { return s.targetUpperDuty }
func (s *Supervisor) TargetLowerDuty() uint8           { return s.targetLowerDuty }

// MarkActivity records user interaction for the rest-timeout timer.
func (s *Supervisor) MarkActivity(now time.Time) {
	s.lastActivity = now
	s.haveLastActivity = true
}

// TemporaryMessage returns the currently active banner text, or "" once
// its display window has elapsed.
func (s *Supervisor) TemporaryMessage(now time.Time) string {
	if s.temporaryMsg == "" || now.After(s.temporaryMsgEnd) {
		return ""
	}
	return s.temporaryMsg
}

func (s *Supervisor) setTemporaryMessage(now time.Time, msg string, d time.Duration) {
	s.temporaryMsg = msg
	s.temporaryMsgEnd = now.Add(d)
}

// Maintenance reports whether either zone's wear has crossed the
// critical threshold; this never alters control, only display.
func (s *Supervisor) Maintenance() bool {
	set := s.settings()
	return set.UpperWear < s.hw.WearCriticalThreshold || set.LowerWear < s.hw.WearCriticalThreshold
}

// BakeRemaining returns the time left in the current bake, floored at 0.
func (s *Supervisor) BakeRemaining(now time.Time) time.Duration {
	if !s.baking || !s.haveBakeStart {
		return 0
	}
	elapsed := now.Sub(s.bakeStart)
	total := time.Duration(s.curBakeSeconds) * time.Second
	if elapsed >= total {
		return 0
	}
	return total - elapsed
}

// Snapshot projects everything the display renderer and telemetry
// encoder need in a single read-only value.
func (s *Supervisor) Snapshot(now time.Time) elpico.OvenSnapshot {
	set := s.settings()
	return elpico.OvenSnapshot{
		State:        s.state,
		Baking:       s.baking,
		Confirm:      s.confirm,
		Recipe:       s.recipeCache,
		Limit:        s.Limit(),
		Upper:        s.upper.View(set.UpperWear),
		Lower:        s.lower.View(set.LowerWear),
		TuneStage:    s.tuneStage,
		BakeRemainS:  int(s.BakeRemaining(now) / time.Second),
		Maintenance:  s.Maintenance(),
		TemporaryMsg: s.TemporaryMessage(now),
	}
}

// Tick runs one control cycle. The caller (internal/loop) is responsible
// for the 1 Hz gate; Tick itself always executes the full state-machine
// step when called.
func (s *Supervisor) Tick(ctx context.Context, now time.Time) {
	if s.state == elpico.Tuning {
		s.tickTuning(ctx, now)
		return
	}

	if s.state == elpico.Idle && !s.confirm.Active() {
		s.state = elpico.Preheat
		s.upper.Reset(now)
		s.lower.Reset(now)
	}

	isHeating := s.state != elpico.Rest && s.state != elpico.Cooling &&
		s.state != elpico.Shutdown && s.state != elpico.Error && !s.confirm.Active()

	set := s.settings()
	upTarget, loTarget := 0.0, 0.0
	if isHeating {
		upTarget, loTarget = s.recipeCache.UpperC, s.recipeCache.LowerC
	}
	hUp := s.upper.Tick(now, upTarget, &set.UpperWear)
	hLo := s.lower.Tick(now, loTarget, &set.LowerWear)
	if hUp || hLo {
		s.persist.MarkWearDirty(now)
	}

	ready := math.Abs(s.upper.PlateC()-s.recipeCache.UpperC) < 5 &&
		math.Abs(s.lower.PlateC()-s.recipeCache.LowerC) < 5 &&
		math.Min(s.upper.Soak(), s.lower.Soak()) > 95

	if !s.baking && (s.state == elpico.Preheat || s.state == elpico.Ready) {
		wasReady := s.state == elpico.Ready
		if ready {
			s.state = elpico.Ready
		} else {
			s.state = elpico.Preheat
		}
		if wasReady && s.lower.Trend() < -2.0 {
			s.startBake(now)
		}
		if s.haveLastActivity && now.Sub(s.lastActivity) > s.hw.RestTimeout {
			s.state = elpico.Rest
			s.restStart = now
			s.haveRestStart = true
		}
	}

	if s.baking && now.Sub(s.bakeStart) >= time.Duration(s.curBakeSeconds)*time.Second {
		s.baking = false
		s.state = elpico.BakeDone
		s.bakeDoneAt = now
	}
	if s.state == elpico.BakeDone && now.Sub(s.bakeDoneAt) > s.hw.BakeDoneMsgTime {
		s.state = elpico.Preheat
	}

	s.tickCooling(now)

	if s.zoneFaulted() {
		s.enterError(ctx, now)
		return
	}

	s.calculatePower(now)
}

// tickCooling implements the two-step cool-stable debounce and the
// Rest→Cooling→Shutdown chain.
func (s *Supervisor) tickCooling(now time.Time) {
	cooledNow := s.upper.PlateC() < s.hw.CoolCompleteC && s.lower.PlateC() < s.hw.CoolCompleteC
	if !cooledNow {
		s.haveCoolStable = false
	} else if !s.haveCoolStable {
		s.coolStableStart = now
		s.haveCoolStable = true
	}
	cooledConfirmed := s.haveCoolStable && now.Sub(s.coolStableStart) > s.hw.CoolStableHold

	switch {
	case s.state == elpico.Rest && (s.haveRestStart && now.Sub(s.restStart) > s.hw.RestTimeout || cooledConfirmed):
		s.state = elpico.Cooling
		s.bakeDoneAt = now
	case s.state == elpico.Cooling:
		if cooledConfirmed {
			if now.Sub(s.bakeDoneAt) > s.hw.CoolShutdownHold {
				s.state = elpico.Shutdown
				s.upper.Reset(now)
				s.lower.Reset(now)
				s.haveCoolStable = false
				s.persist.MarkDirty(now)
			}
		} else {
			s.bakeDoneAt = now
		}
	}
}

func (s *Supervisor) startBake(now time.Time) {
	s.baking = true
	s.curBakeSeconds = s.recipeCache.BakeSeconds
	s.bakeStart, s.boostStart, s.lastActivity = now, now, now
	s.haveBakeStart, s.haveLastActivity = true, true
	s.state = elpico.Baking
}

func (s *Supervisor) zoneFaulted() bool {
	return s.upper.ErrorBits() != 0 || s.lower.ErrorBits() != 0
}

// enterError transitions to Error: reset both zones, zero duties,
// de-energize the contactor, and urgent-flush persistence, per the
// propagation rule in SPEC_FULL.md §7.
func (s *Supervisor) enterError(ctx context.Context, now time.Time) {
	s.recordFaults(ctx, now, elpico.ZoneUpper, s.upper.ErrorBits())
	s.recordFaults(ctx, now, elpico.ZoneLower, s.lower.ErrorBits())

	s.state = elpico.Error
	if s.tuneStage != 0 {
		s.upper.StopTune()
		s.lower.StopTune()
		s.tuneStage = 0
	}
	s.upper.Reset(now)
	s.lower.Reset(now)
	s.targetUpperDuty, s.targetLowerDuty = 0, 0
	s.contactor.Set(false)
	s.persist.MarkDirty(now)
	s.persist.SaveNow(ctx)
}

// RecentFaults returns up to limit most recent audit-trail entries,
// newest first, for a maintenance/diagnostics surface (e.g. printed at
// boot or surfaced through a future field-service tool). A nil recorder
// (tests that don't care about the audit trail) reports no history.
func (s *Supervisor) RecentFaults(ctx context.Context, limit int) ([]elpico.FaultEvent, error) {
	if s.faults == nil {
		return nil, nil
	}
	return s.faults.Recent(ctx, limit)
}

func (s *Supervisor) recordFaults(ctx context.Context, now time.Time, z elpico.Zone, bits uint8) {
	if s.faults == nil || bits == 0 {
		return
	}
	type faultBit struct {
		bit  uint8
		kind elpico.EventKind
	}
	for _, fb := range []faultBit{
		{elpico.FaultSensor, elpico.EventSensorFault},
		{elpico.FaultRunaway, elpico.EventRunaway},
		{elpico.FaultOverheat, elpico.EventOverheat},
	} {
		if bits&fb.bit == 0 {
			continue
		}
		if err := s.faults.Append(ctx, elpico.FaultEvent{OccurredAt: now, Zone: z, Kind: fb.kind}); err != nil {
			s.log.Errorw("fault log append failed", "err", err)
		}
	}
}

// calculatePower converts each zone's raw PID output into a wall-power-
// capped duty pair, cached for the driver layer to apply every loop
// iteration until the next 1 Hz tick recomputes it.
func (s *Supervisor) calculatePower(now time.Time) {
	set := s.settings()
	limit := elpico.PowerLimitAt(set.LimitIdx)
	boosting := s.baking && now.Sub(s.boostStart) < s.hw.BoostDuration
	ratings := power.Ratings{UpperW: elpico.RatedUpperW, LowerW: elpico.RatedLowerW}

	upDuty, loDuty := power.Allocate(
		uint8(s.upper.PIDOutput()), uint8(s.lower.PIDOutput()),
		limit.Watts, boosting, ratings, s.state, s.upper.ErrorBits(), s.lower.ErrorBits(),
	)
	s.targetUpperDuty, s.targetLowerDuty = upDuty, loDuty
}

// tickTuning sequences the four-stage auto-tune run: upper tune (stage
// 1), then lower tune (stage 3), advancing tuneStage as each session
// completes, and aborting to Error on any safety fault exactly as the
// heating path does.
func (s *Supervisor) tickTuning(ctx context.Context, now time.Time) {
	set := s.settings()
	switch {
	case s.tuneStage == 0:
		s.upper.StartTune()
		s.tuneStage = 1
	case s.tuneStage == 1 && !s.upper.IsTuning():
		t := s.upper.Tunings()
		set.Upper.Kp, set.Upper.Ki, set.Upper.Kd = t.Kp, t.Ki, t.Kd
		s.persist.MarkDirty(now)
		s.tuneStage = 2
	case s.tuneStage == 2:
		s.lower.StartTune()
		s.tuneStage = 3
	case s.tuneStage == 3 && !s.lower.IsTuning():
		t := s.lower.Tunings()
		set.Lower.Kp, set.Lower.Ki, set.Lower.Kd = t.Kp, t.Ki, t.Kd
		s.persist.MarkDirty(now)
		s.state = elpico.Shutdown
		s.tuneStage = 0
	}

	if s.tuneStage == 1 {
		s.upper.Tick(now, s.hw.TuneTargetC, &set.UpperWear)
		s.lower.Tick(now, 0, &set.LowerWear)
	}
	if s.tuneStage == 3 {
		s.lower.Tick(now, s.hw.TuneTargetC, &set.LowerWear)
		s.upper.Tick(now, 0, &set.UpperWear)
	}

	if s.zoneFaulted() {
		s.enterError(ctx, now)
	}
}

// --- InputRouter-facing actions ---

// ToggleConfirmChoice flips the active confirmation prompt's yes/no
// selection; a no-op if no prompt is active.
func (s *Supervisor) ToggleConfirmChoice() {
	if s.confirm.Active() {
		s.confirm.Yes = !s.confirm.Yes
	}
}

// CycleRecipe advances the recipe index by dir (±1, wrapped), refreshes
// the cache, and marks persistence dirty.
func (s *Supervisor) CycleRecipe(dir int, now time.Time) {
	set := s.settings()
	n := len(elpico.Recipes)
	next := (int(set.RecipeIdx) + dir + n) % n
	set.RecipeIdx = uint8(next)
	s.SyncRecipeCache()
	s.persist.MarkDirty(now)
}

// CycleLimit advances the power-limit index modulo the table size.
func (s *Supervisor) CycleLimit(now time.Time) {
	set := s.settings()
	set.LimitIdx = uint8((int(set.LimitIdx) + 1) % len(elpico.PowerLimits))
	s.persist.MarkDirty(now)
}

// CanEditSelection reports whether recipe/limit cycling and rotate/press
// input are allowed in the current state (never during Error or Tuning).
func (s *Supervisor) CanEditSelection() bool {
	return s.state != elpico.Error && s.state != elpico.Tuning
}

func (s *Supervisor) OpenCancelTunePrompt() {
	s.confirm = elpico.Confirmation{Kind: elpico.ConfirmCancelTune, Yes: false}
}

func (s *Supervisor) OpenStartTunePrompt() {
	s.confirm = elpico.Confirmation{Kind: elpico.ConfirmStartTune, Yes: false}
}

func (s *Supervisor) OpenFactoryResetPrompt() {
	s.confirm = elpico.Confirmation{Kind: elpico.ConfirmFactoryReset, Yes: false}
}

func (s *Supervisor) DismissConfirmation() { s.confirm = elpico.Confirmation{} }

// DispatchConfirmation runs the action for the active prompt's kind only
// if the selection is "yes", then clears the prompt either way, mirroring
// handleInput's `if (confirmationYes) { ... } askConfirmation = NONE;`.
func (s *Supervisor) DispatchConfirmation(ctx context.Context, now time.Time) {
	if s.confirm.Yes {
		switch s.confirm.Kind {
		case elpico.ConfirmCancelTune:
			s.confirmCancelTune(now)
		case elpico.ConfirmStartTune:
			s.confirmStartTune(now)
		case elpico.ConfirmFactoryReset:
			s.confirmFactoryReset(ctx, now)
		}
	}
	s.DismissConfirmation()
}

func (s *Supervisor) confirmCancelTune(now time.Time) {
	s.upper.StopTune()
	s.lower.StopTune()
	s.upper.Reset(now)
	s.lower.Reset(now)
	s.state = elpico.Shutdown
	s.tuneStage = 0
	s.setTemporaryMessage(now, "Canceled", 2*time.Second)
	s.persist.MarkDirty(now)
}

func (s *Supervisor) confirmStartTune(now time.Time) {
	s.upper.Reset(now)
	s.lower.Reset(now)
	s.state = elpico.Tuning
	s.tuneStage = 0
	s.setTemporaryMessage(now, "Tuning Start", 2*time.Second)
}

func (s *Supervisor) confirmFactoryReset(ctx context.Context, now time.Time) {
	*s.settings() = elpico.DefaultSettings()
	s.persist.SaveNow(ctx)
	s.upper.SetTunings(s.settings().Upper.Kp, s.settings().Upper.Ki, s.settings().Upper.Kd)
	s.lower.SetTunings(s.settings().Lower.Kp, s.settings().Lower.Ki, s.settings().Lower.Kd)
	s.SyncRecipeCache()
	s.upper.Reset(now)
	s.lower.Reset(now)
	s.state = elpico.Shutdown
	s.setTemporaryMessage(now, "Factory Reset", 2*time.Second)
}

// LongPressLeaveError re-energizes the contactor and returns to Idle;
// the sole recovery path out of a latched fault.
func (s *Supervisor) LongPressLeaveError(now time.Time) {
	if s.state != elpico.Error {
		return
	}
	s.state = elpico.Idle
	s.contactor.Set(true)
	s.setTemporaryMessage(now, "System Reset", 1*time.Second)
}
