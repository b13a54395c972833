// Package input implements InputRouter: translating already-debounced
// rotate/short-press/long-press events from the out-of-scope rotary
// input device into oven commands and confirmation-prompt interactions.
// See SPEC_FULL.md §4.5.
package input

import (
	"context"
	"time"

	elpico "github.com/naco-design/el-pico"
	"github.com/naco-design/el-pico/internal/obslog"
)

// OvenActions is the narrow slice of Supervisor the router depends on —
// accept an interface, not a concrete supervisor type, so the router can
// be tested against a fake.
type OvenActions interface {
	State() elpico.OvenState
	Confirmation() elpico.Confirmation
	ToggleConfirmChoice()
	DispatchConfirmation(ctx context.Context, now time.Time)
	DismissConfirmation()
	CanEditSelection() bool
	CycleRecipe(dir int, now time.Time)
	CycleLimit(now time.Time)
	MarkActivity(now time.Time)
	OpenCancelTunePrompt()
	OpenFactoryResetPrompt()
	OpenStartTunePrompt()
	LongPressLeaveError(now time.Time)
}

// Router dispatches debounced input events onto an OvenActions.
type Router struct {
	oven OvenActions
	log  *obslog.Logger
}

func New(oven OvenActions, log *obslog.Logger) *Router {
	return &Router{oven: oven, log: log}
}

// Rotate handles a ±1 encoder step: toggles the active confirmation
// choice, or otherwise cycles the recipe index when selection editing is
// allowed.
func (r *Router) Rotate(now time.Time, dir int) {
	r.oven.MarkActivity(now)
	if r.oven.Confirmation().Active() {
		r.oven.ToggleConfirmChoice()
		return
	}
	if r.oven.CanEditSelection() {
		r.oven.CycleRecipe(dir, now)
	}
}

// ShortPress dispatches the active confirmation prompt's action, or
// otherwise advances the power-limit index.
func (r *Router) ShortPress(ctx context.Context, now time.Time) {
	r.oven.MarkActivity(now)
	if r.oven.Confirmation().Active() {
		r.oven.DispatchConfirmation(ctx, now)
		return
	}
	if r.oven.CanEditSelection() {
		r.oven.CycleLimit(now)
	}
}

// LongPress dispatches a state-specific context action: cancel-tune
// prompt while Tuning, error recovery while Error, factory-reset prompt
// while Idle. Any other state ignores a long press.
func (r *Router) LongPress(now time.Time) {
	r.oven.MarkActivity(now)
	switch r.oven.State() {
	case elpico.Tuning:
		r.oven.OpenCancelTunePrompt()
	case elpico.Error:
		r.oven.LongPressLeaveError(now)
	case elpico.Idle:
		r.oven.OpenFactoryResetPrompt()
	}
}

// BootHint opens the StartTune prompt if the press switch is held at
// power-on; the caller is responsible for the button-release wait loop
// before entering the main loop.
func (r *Router) BootHint(held bool) {
	if held {
		r.oven.OpenStartTunePrompt()
	}
}
