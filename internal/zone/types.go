// Package zone implements ZoneController: per-zone probe filtering, PID
// control, auto-tune, runaway/over-temperature detection, filament wear
// accumulation, and the time-proportional SSR driver. See SPEC_FULL.md
// §4.1. Two independent instances exist, one per heating zone; neither
// imports the other or the supervisor.
package zone

import "time"

// ProbeReader is the out-of-scope thermocouple driver collaborator: a
// blocking read returning degrees Celsius, or math.NaN() as the sentinel
// for "no valid reading this tick" (open circuit, CRC failure, etc).
type ProbeReader interface {
	ReadCelsius() float64
}

// SSR is the zero-cross solid-state relay this zone's time-proportional
// driver switches. Set(true) energizes the element.
type SSR interface {
	Set(on bool)
}

// Params are the physical constants and safety ceilings for one zone,
// loaded once at boot from internal/config and never mutated.
type Params struct {
	StoneThicknessMM float64
	PlateMaxC        float64
	HeaterLimitC     float64
	RunawayTimeout   time.Duration
}

// Tunings is one zone's PID gains.
type Tunings struct {
	Kp, Ki, Kd float64
}
