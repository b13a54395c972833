package zone

import (
	"math"
	"time"

	elpico "github.com/naco-design/el-pico"
	"github.com/naco-design/el-pico/internal/obslog"
)

// heaterSensorSlackC is the headroom above the heater's rated limit that a
// heater reading may reach before it is rejected as invalid. The plate
// reading is checked against PlateMaxC itself, with no headroom.
const heaterSensorSlackC = 100.0

// Controller is one zone's ZoneController: probe filtering, PID or
// auto-tune output, runaway/over-temperature latching, wear accrual, and
// the time-proportional SSR driver. Two independent instances exist, one
// per zone; state is not shared between them.
type Controller struct {
	name   string
	plate  ProbeReader
	heater ProbeReader
	ssr    SSR
	params Params
	tune   Tunings
	log    *obslog.Logger

	plateC, heaterC, trend, soak float64
	duty                         uint8
	errorBits                    uint8

	first     bool
	lastInput float64
	iTerm     float64
	rawOutput float64
	target    float64

	runawayRef     time.Time
	haveRunawayRef bool

	winStart  time.Time
	haveWin   bool
	onTime    time.Duration
	lastDrive int // -1 sentinel, matches the original's out-of-range cache seed

	tuning bool
	tuner  *AutoTuner
}

// New constructs a ZoneController. name is used only for log tagging
// ("upper"/"lower").
func New(name string, plate, heater ProbeReader, ssr SSR, params Params, tune Tunings, log *obslog.Logger) *Controller {
	return &Controller{
		name:      name,
		plate:     plate,
		heater:    heater,
		ssr:       ssr,
		params:    params,
		tune:      tune,
		log:       log.ForZone(name),
		first:     true,
		lastDrive: -1,
	}
}

// Tick runs one control cycle: sensor validation, EWMA filtering, soak
// accumulation, PID or auto-tune output, runaway detection, and wear
// accrual. wear is the zone's persisted filament-health value in [0,100];
// Tick decrements it in place and returns true the cycle it detects new
// heater damage.
func (c *Controller) Tick(now time.Time, target float64, wear *float64) bool {
	c.target = target
	rp := c.plate.ReadCelsius()
	rh := c.heater.ReadCelsius()

	if invalidReading(rp, c.params.PlateMaxC) || invalidReading(rh, c.params.HeaterLimitC+heaterSensorSlackC) {
		c.errorBits |= elpico.FaultSensor
		c.duty = 0
		c.rawOutput = 0
		c.ssr.Set(false)
		return false
	}
	c.errorBits &^= elpico.FaultSensor
	c.heaterC = rh

	if c.first {
		c.plateC = rp
		c.first = false
		c.runawayRef = now
		c.haveRunawayRef = true
		c.lastInput = c.plateC
	}

	prev := c.plateC
	c.plateC = 0.8*c.plateC + 0.2*rp
	c.trend = 0.9*c.trend + 0.1*(c.plateC-prev)

	step := 1.0 / c.params.StoneThicknessMM
	if target > 50 && math.Abs(target-c.plateC) < 5 {
		c.soak = math.Min(100, c.soak+step)
	} else {
		c.soak = math.Max(0, c.soak-step*0.5)
	}

	if c.tuning {
		out, done := c.tuner.Update(c.plateC)
		c.rawOutput = out
		if done {
			c.tune.Kp, c.tune.Ki, c.tune.Kd = c.tuner.Kp(), c.tuner.Ki(), c.tuner.Kd()
			c.log.Infow("auto-tune converged", "kp", c.tune.Kp, "ki", c.tune.Ki, "kd", c.tune.Kd)
			c.stopTuneLocked()
		}
	} else {
		c.rawOutput = c.pid(target)
	}
	c.duty = uint8(c.rawOutput)

	c.checkRunaway(now)

	damaged := c.accrueWear(wear)

	if c.plateC > c.params.PlateMaxC {
		c.errorBits |= elpico.FaultOverheat
	}
	return damaged
}

func invalidReading(v, ceiling float64) bool {
	return math.IsNaN(v) || v < 0 || v > ceiling
}

// pid computes derivative-on-measurement PID output with integrator
// clamping to [0,255], matching the original's fixed-point-free formula.
func (c *Controller) pid(target float64) float64 {
	errv := target - c.plateC
	c.iTerm += c.tune.Ki * errv
	if c.iTerm > 255 {
		c.iTerm = 255
	} else if c.iTerm < 0 {
		c.iTerm = 0
	}

	dInput := c.plateC - c.lastInput
	out := c.tune.Kp*errv + c.iTerm - c.tune.Kd*dInput
	if out > 255 {
		out = 255
	} else if out < 0 {
		out = 0
	}
	c.lastInput = c.plateC
	return out
}

// checkRunaway latches FaultRunaway when duty has been zero while the
// plate keeps climbing for longer than RunawayTimeout — the signature of
// a shorted or welded SSR still delivering power with the drive off.
func (c *Controller) checkRunaway(now time.Time) {
	if c.duty == 0 && c.trend > 1.5 {
		if !c.haveRunawayRef {
			c.runawayRef = now
			c.haveRunawayRef = true
		}
		if now.Sub(c.runawayRef) > c.params.RunawayTimeout {
			c.errorBits |= elpico.FaultRunaway
		}
	} else {
		c.runawayRef = now
		c.haveRunawayRef = true
	}
}

// accrueWear decays the filament health estimate whenever the heater
// element itself runs hot enough to be shortening its own life,
// independent of whether the plate ever reaches target.
func (c *Controller) accrueWear(wear *float64) bool {
	limit := c.params.HeaterLimitC
	damaged := false
	switch {
	case c.heaterC > limit+40:
		*wear = math.Max(0, *wear-0.01)
		damaged = true
	case c.heaterC > limit+20:
		*wear = math.Max(0, *wear-0.002)
		damaged = true
	}
	return damaged
}

// Drive applies time-proportional control: out/255 of each rolling
// one-second window the SSR is held closed. Called every scheduler tick,
// independent of Tick's 1 Hz cadence, so the duty cycle looks smooth to
// the element.
func (c *Controller) Drive(now time.Time, out uint8) {
	if int(out) != c.lastDrive {
		c.onTime = time.Duration(out) * time.Second / 255
		c.lastDrive = int(out)
	}
	if !c.haveWin {
		c.winStart = now
		c.haveWin = true
	} else {
		for now.Sub(c.winStart) >= time.Second {
			c.winStart = c.winStart.Add(time.Second)
		}
	}
	c.ssr.Set(now.Sub(c.winStart) < c.onTime)
}

// Reset clears fault latches and filter state, used on state-machine
// transitions back to an idle/preheat cycle after an error or a bake.
func (c *Controller) Reset(now time.Time) {
	c.errorBits = 0
	c.duty = 0
	c.rawOutput = 0
	c.soak = 0
	c.trend = 0
	c.first = true
	c.plateC = 0
	c.heaterC = 0
	c.runawayRef = now
	c.haveRunawayRef = true
	c.winStart = now
	c.haveWin = true
	c.iTerm = 0
	c.lastInput = 0
	c.ssr.Set(false)
}

// StartTune begins an auto-tune session with the original firmware's
// relay parameters: noise band 2°C, output step 255, 12-sample lookback.
func (c *Controller) StartTune() {
	c.tuner = NewAutoTuner(2, 255, 12)
	c.tuning = true
}

func (c *Controller) StopTune() { c.stopTuneLocked() }

func (c *Controller) stopTuneLocked() {
	c.tuning = false
	c.tuner = nil
}

func (c *Controller) IsTuning() bool { return c.tuning }

func (c *Controller) SetTunings(kp, ki, kd float64) {
	c.tune = Tunings{Kp: kp, Ki: ki, Kd: kd}
}

func (c *Controller) Tunings() Tunings { return c.tune }

func (c *Controller) PIDOutput() float64 { return c.rawOutput }
func (c *Controller) Duty() uint8        { return c.duty }
func (c *Controller) ErrorBits() uint8   { return c.errorBits }
func (c *Controller) PlateC() float64    { return c.plateC }
func (c *Controller) HeaterC() float64   { return c.heaterC }
func (c *Controller) Trend() float64     { return c.trend }
func (c *Controller) Soak() float64      { return c.soak }

// View projects the zone's runtime state for telemetry and display, given
// the persisted wear value the supervisor owns.
func (c *Controller) View(wear float64) elpico.ZoneView {
	return elpico.ZoneView{
		PlateC:   c.plateC,
		HeaterC:  c.heaterC,
		Trend:    c.trend,
		Soak:     c.soak,
		Duty:     c.duty,
		ErrorBit: c.errorBits,
		Tuning:   c.tuning,
		Wear:     wear,
	}
}
