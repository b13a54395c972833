// Package config loads the tunable knobs the original firmware bakes in
// as compile-time constants. It plays the same role here: values are
// fixed for the life of a process, read once at boot, and never mutated —
// but they can be overridden from a YAML file on disk so the same core
// binary can be exercised by tests with tightened timing (see
// SPEC_FULL.md §4.8) without recompiling.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Hardware is the set of physical/safety constants from spec.md §3–§7.
type Hardware struct {
	RatedUpperW      int
	RatedLowerW      int
	StoneThicknessMM float64
	PlateMaxC        float64
	HeaterLimitC     float64
	CoolCompleteC    float64

	RunawayTimeout  time.Duration
	RestTimeout     time.Duration
	PersistIdle     time.Duration
	BoostDuration   time.Duration
	BakeDoneMsgTime time.Duration
	CoolStableHold  time.Duration
	CoolShutdownHold time.Duration
	TuneTargetC     float64
	WatchdogPeriod  time.Duration

	RotateDebounce time.Duration
	PressDebounce  time.Duration
	LongPressHold  time.Duration

	WearCriticalThreshold float64
	WearSaveThresholdC    float64
}

// Defaults matches spec.md's constexpr values exactly.
func Defaults() Hardware {
	return Hardware{
		RatedUpperW:      850,
		RatedLowerW:      570,
		StoneThicknessMM: 4.0,
		PlateMaxC:        650,
		HeaterLimitC:     820,
		CoolCompleteC:    100,

		RunawayTimeout:   30 * time.Second,
		RestTimeout:      30 * time.Minute,
		PersistIdle:      30 * time.Second,
		BoostDuration:    30 * time.Second,
		BakeDoneMsgTime:  3 * time.Second,
		CoolStableHold:   2 * time.Second,
		CoolShutdownHold: 3 * time.Second,
		TuneTargetC:      350,
		WatchdogPeriod:   8 * time.Second,

		RotateDebounce: 50 * time.Millisecond,
		PressDebounce:  50 * time.Millisecond,
		LongPressHold:  2 * time.Second,

		WearCriticalThreshold: 20,
		WearSaveThresholdC:    1.0,
	}
}

// Load reads an optional YAML config file at path and
// overlays it onto Defaults(). A missing file is not an error — the
// firmware runs on its built-in constants, exactly as the original does
// when no persisted override exists.
func Load(path string) (Hardware, error) {
	hw := Defaults()

	v := viper.New()
	v.SetConfigFile(path)
	bindDefaults(v, hw)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return hw, nil
		}
		return hw, err
	}

	hw.RatedUpperW = v.GetInt("hardware.rated_upper_w")
	hw.RatedLowerW = v.GetInt("hardware.rated_lower_w")
	hw.StoneThicknessMM = v.GetFloat64("hardware.stone_thickness_mm")
	hw.PlateMaxC = v.GetFloat64("hardware.plate_max_c")
	hw.HeaterLimitC = v.GetFloat64("hardware.heater_limit_c")
	hw.CoolCompleteC = v.GetFloat64("hardware.cool_complete_c")

	hw.RunawayTimeout = v.GetDuration("timing.runaway_timeout")
	hw.RestTimeout = v.GetDuration("timing.rest_timeout")
	hw.PersistIdle = v.GetDuration("timing.persist_idle")
	hw.BoostDuration = v.GetDuration("timing.boost_duration")
	hw.BakeDoneMsgTime = v.GetDuration("timing.bake_done_msg")
	hw.CoolStableHold = v.GetDuration("timing.cool_stable_hold")
	hw.CoolShutdownHold = v.GetDuration("timing.cool_shutdown_hold")
	hw.TuneTargetC = v.GetFloat64("timing.tune_target_c")
	hw.WatchdogPeriod = v.GetDuration("timing.watchdog_period")

	hw.RotateDebounce = v.GetDuration("input.rotate_debounce")
	hw.PressDebounce = v.GetDuration("input.press_debounce")
	hw.LongPressHold = v.GetDuration("input.long_press_hold")

	hw.WearCriticalThreshold = v.GetFloat64("wear.critical_threshold")
	hw.WearSaveThresholdC = v.GetFloat64("wear.save_threshold")

	return hw, nil
}

func bindDefaults(v *viper.Viper, hw Hardware) {
	v.SetDefault("hardware.rated_upper_w", hw.RatedUpperW)
	v.SetDefault("hardware.rated_lower_w", hw.RatedLowerW)
	v.SetDefault("hardware.stone_thickness_mm", hw.StoneThicknessMM)
	v.SetDefault("hardware.plate_max_c", hw.PlateMaxC)
	v.SetDefault("hardware.heater_limit_c", hw.HeaterLimitC)
	v.SetDefault("hardware.cool_complete_c", hw.CoolCompleteC)

	v.SetDefault("timing.runaway_timeout", hw.RunawayTimeout)
	v.SetDefault("timing.rest_timeout", hw.RestTimeout)
	v.SetDefault("timing.persist_idle", hw.PersistIdle)
	v.SetDefault("timing.boost_duration", hw.BoostDuration)
	v.SetDefault("timing.bake_done_msg", hw.BakeDoneMsgTime)
	v.SetDefault("timing.cool_stable_hold", hw.CoolStableHold)
	v.SetDefault("timing.cool_shutdown_hold", hw.CoolShutdownHold)
	v.SetDefault("timing.tune_target_c", hw.TuneTargetC)
	v.SetDefault("timing.watchdog_period", hw.WatchdogPeriod)

	v.SetDefault("input.rotate_debounce", hw.RotateDebounce)
	v.SetDefault("input.press_debounce", hw.PressDebounce)
	v.SetDefault("input.long_press_hold", hw.LongPressHold)

	v.SetDefault("wear.critical_threshold", hw.WearCriticalThreshold)
	v.SetDefault("wear.save_threshold", hw.WearSaveThresholdC)
}
