// Package loop implements the Clock + Scheduler: the single cooperative
// main loop pacing the 1 Hz control tick, sub-second output driving, and
// watchdog pet. See SPEC_FULL.md §4.6 / spec.md §5.
package loop

import (
	"context"
	"time"

	elpico "github.com/naco-design/el-pico"
	"github.com/naco-design/el-pico/internal/obslog"
	"github.com/naco-design/el-pico/internal/persistence"
	"github.com/naco-design/el-pico/internal/supervisor"
	"github.com/naco-design/el-pico/internal/telemetry"
	"github.com/naco-design/el-pico/internal/zone"
)

// Watchdog is the hardware watchdog collaborator; Pet must be called at
// least once every watchdog period or the platform resets.
type Watchdog interface {
	Pet()
}

// DisplaySink renders a read-only oven snapshot; failures are advisory
// and never observed by the loop.
type DisplaySink interface {
	Render(snap elpico.OvenSnapshot)
}

// TelemetrySink emits one pre-encoded telemetry line.
type TelemetrySink interface {
	Emit(line string)
}

// InputEventKind identifies which debounced input event fired.
type InputEventKind uint8

const (
	InputNone InputEventKind = iota
	InputRotate
	InputShortPress
	InputLongPress
)

// InputEvent is one already-debounced event from the rotary input
// device. Dir is only meaningful for InputRotate (+1/-1).
type InputEvent struct {
	Kind InputEventKind
	Dir  int
}

// InputSource yields the input events that arrived since the previous
// iteration; the rotary device's own debounce horizons (50 ms) are
// implemented by that out-of-scope collaborator, not here.
type InputSource interface {
	Poll(now time.Time) []InputEvent
}

// InputDispatcher is the narrow surface Loop needs from input.Router.
type InputDispatcher interface {
	Rotate(now time.Time, dir int)
	ShortPress(ctx context.Context, now time.Time)
	LongPress(now time.Time)
}

// Loop is the single cooperative scheduler tying every component
// together. One Step call is one main-loop iteration; there is no
// internal goroutine, so tests can drive it with synthetic timestamps.
type Loop struct {
	watchdog  Watchdog
	input     InputSource
	dispatch  InputDispatcher
	sup       *supervisor.Supervisor
	upper     *zone.Controller
	lower     *zone.Controller
	persist   *persistence.Manager
	display   DisplaySink
	telemetry TelemetrySink
	log       *obslog.Logger

	haveLastTick  bool
	lastTick      time.Time
	haveLastDisp  bool
	lastDispAt    time.Time
	lastDispState elpico.OvenState
	haveLastTele  bool
	lastTeleAt    time.Time
}

func New(
	watchdog Watchdog,
	input InputSource,
	dispatch InputDispatcher,
	sup *supervisor.Supervisor,
	upper, lower *zone.Controller,
	persist *persistence.Manager,
	display DisplaySink,
	telemetrySink TelemetrySink,
	log *obslog.Logger,
) *Loop {
	return &Loop{
		watchdog:  watchdog,
		input:     input,
		dispatch:  dispatch,
		sup:       sup,
		upper:     upper,
		lower:     lower,
		persist:   persist,
		display:   display,
		telemetry: telemetrySink,
		log:       log,
	}
}

// Step runs exactly one main-loop iteration in the order spec.md §5
// mandates: pet the watchdog, poll input, run the gated 1 Hz control
// tick, drive outputs unconditionally, update the display, trigger a
// persistence commit if eligible, emit telemetry.
func (l *Loop) Step(ctx context.Context, now time.Time) {
	l.watchdog.Pet()

	for _, ev := range l.input.Poll(now) {
		switch ev.Kind {
		case InputRotate:
			l.dispatch.Rotate(now, ev.Dir)
		case InputShortPress:
			l.dispatch.ShortPress(ctx, now)
		case InputLongPress:
			l.dispatch.LongPress(now)
		}
	}

	if !l.haveLastTick || now.Sub(l.lastTick) >= time.Second {
		l.lastTick = now
		l.haveLastTick = true
		l.sup.Tick(ctx, now)
	}

	l.driveOutputs(now)
	l.updateDisplay(now)
	l.persist.Tick(ctx, now, l.sup.State())
	l.emitTelemetry(now)
}

// driveOutputs applies the most recently computed duty pair every
// iteration, independent of the 1 Hz tick, so the time-proportional PWM
// keeps its resolution. Error forces both to 0. In Tuning the allocator
// is bypassed entirely (supervisor.calculatePower is never called), so
// the active zone is driven straight from its own controller's raw PID
// output rather than the supervisor's stale cached targets; the idle
// zone is zeroed at this driver layer.
func (l *Loop) driveOutputs(now time.Time) {
	var upDuty, loDuty uint8
	switch {
	case l.sup.State() == elpico.Error:
		upDuty, loDuty = 0, 0
	case l.sup.State() == elpico.Tuning && l.sup.TuneStage() == 1:
		upDuty, loDuty = l.upper.Duty(), 0
	case l.sup.State() == elpico.Tuning && l.sup.TuneStage() == 3:
		upDuty, loDuty = 0, l.lower.Duty()
	case l.sup.State() == elpico.Tuning:
		upDuty, loDuty = 0, 0
	default:
		upDuty, loDuty = l.sup.TargetUpperDuty(), l.sup.TargetLowerDuty()
	}
	l.upper.Drive(now, upDuty)
	l.lower.Drive(now, loDuty)
}

func (l *Loop) updateDisplay(now time.Time) {
	changed := !l.haveLastDisp || l.lastDispState != l.sup.State()
	due := !l.haveLastDisp || now.Sub(l.lastDispAt) >= time.Second
	if !changed && !due {
		return
	}
	l.display.Render(l.sup.Snapshot(now))
	l.lastDispState = l.sup.State()
	l.lastDispAt = now
	l.haveLastDisp = true
}

func (l *Loop) emitTelemetry(now time.Time) {
	if l.haveLastTele && now.Sub(l.lastTeleAt) < time.Second {
		return
	}
	l.lastTeleAt = now
	l.haveLastTele = true
	l.telemetry.Emit(telemetry.Encode(l.sup.Snapshot(now)))
}
