// Package simhw provides software stand-ins for the hardware
// collaborators spec.md §1 declares out of scope: the thermocouple
// driver, the SSR/contactor outputs, the watchdog, the display renderer,
// and the rotary input device. It exists so cmd/el-pico-fw can boot and
// run the control core without a physical oven attached, in the same
// spirit as the teacher's SimulatorService driving furnace state without
// real sensors.
package simhw

import (
	"fmt"
	"time"

	elpico "github.com/naco-design/el-pico"
	"github.com/naco-design/el-pico/internal/loop"
	"github.com/naco-design/el-pico/internal/obslog"
)

const (
	ambientC       = 22.0
	rampUpHeaterC  = 6.0
	rampDownC      = 2.0
	plateFollowC   = 3.0
	plateCoolDownC = 1.0
)

// Zone is a linear-ramp thermal model: the heater rises at a fixed rate
// while the SSR is closed, with no upper bound, and falls toward ambient
// otherwise; the plate follows the heater at a slower fixed rate and
// cools toward ambient once it is at or above the heater.
type Zone struct {
	plateC, heaterC float64
	ssrOn           bool
	lastAdvance     time.Time
	haveLast        bool
}

func NewZone() *Zone {
	return &Zone{plateC: ambientC, heaterC: ambientC}
}

func (z *Zone) advance(now time.Time) {
	if !z.haveLast {
		z.lastAdvance = now
		z.haveLast = true
		return
	}
	elapsed := now.Sub(z.lastAdvance).Seconds()
	z.lastAdvance = now
	if elapsed <= 0 {
		return
	}
	if z.ssrOn {
		z.heaterC += rampUpHeaterC * elapsed
	} else {
		z.heaterC -= rampDownC * elapsed
		if z.heaterC < ambientC {
			z.heaterC = ambientC
		}
	}
	if z.plateC < z.heaterC {
		z.plateC += plateFollowC * elapsed
		if z.plateC > z.heaterC {
			z.plateC = z.heaterC
		}
	} else if z.plateC > ambientC {
		z.plateC -= plateCoolDownC * elapsed
		if z.plateC < ambientC {
			z.plateC = ambientC
		}
	}
}

// PlateProbe returns the zone.ProbeReader for the stone-side sensor.
func (z *Zone) PlateProbe() *plateProbe { return &plateProbe{z: z} }

// HeaterProbe returns the zone.ProbeReader for the filament sensor.
func (z *Zone) HeaterProbe() *heaterProbe { return &heaterProbe{z: z} }

// SSR returns the zone.SSR this thermal model responds to.
func (z *Zone) SSR() *ssrOutput { return &ssrOutput{z: z} }

type plateProbe struct{ z *Zone }

func (p *plateProbe) ReadCelsius() float64 {
	p.z.advance(time.Now())
	return p.z.plateC
}

type heaterProbe struct{ z *Zone }

func (p *heaterProbe) ReadCelsius() float64 {
	p.z.advance(time.Now())
	return p.z.heaterC
}

type ssrOutput struct{ z *Zone }

func (s *ssrOutput) Set(on bool) { s.z.ssrOn = on }

// Contactor is a software stand-in for the mains-isolating relay.
type Contactor struct {
	Energized bool
}

func (c *Contactor) Set(energized bool) { c.Energized = energized }

// Watchdog is a no-op stand-in; the real hardware watchdog backstop has
// no software counterpart to simulate meaningfully.
type Watchdog struct{}

func (Watchdog) Pet() {}

// ConsoleDisplay renders snapshots through structured logging rather
// than a real character display.
type ConsoleDisplay struct {
	log *obslog.Logger
}

func NewConsoleDisplay(log *obslog.Logger) *ConsoleDisplay { return &ConsoleDisplay{log: log} }

func (d *ConsoleDisplay) Render(snap elpico.OvenSnapshot) {
	d.log.Infow("display",
		"state", snap.State.String(),
		"recipe", snap.Recipe.Name,
		"limit", snap.Limit.Label,
		"upPlate", snap.Upper.PlateC,
		"loPlate", snap.Lower.PlateC,
		"msg", snap.TemporaryMsg,
	)
}

// StdoutTelemetry writes each pre-encoded telemetry line to stdout, the
// software analogue of the 115200-baud serial line.
type StdoutTelemetry struct{}

func (StdoutTelemetry) Emit(line string) { fmt.Println(line) }

// NoInput is an InputSource that never produces events; a real deployment
// replaces it with a driver for the rotary control.
type NoInput struct{}

func (NoInput) Poll(now time.Time) []loop.InputEvent { return nil }
