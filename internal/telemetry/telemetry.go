// Package telemetry implements the line-oriented serial telemetry
// encoder: one space-separated key:value line per second, matching the
// exact field order and semantics of the original debugTelemetry(). See
// SPEC_FULL.md §6.
package telemetry

import (
	"fmt"

	elpico "github.com/naco-design/el-pico"
)

// TuneTargetC must match the value the supervisor drives auto-tune
// sessions toward, so a tuning-state telemetry line reports the setpoint
// actually in effect rather than a stale recipe target.
const TuneTargetC = 350.0

// Encode renders one telemetry line for the given snapshot.
func Encode(snap elpico.OvenSnapshot) string {
	isHeating := snap.State != elpico.Rest && snap.State != elpico.Cooling &&
		snap.State != elpico.Shutdown && snap.State != elpico.Error

	upSet, loSet := 0.0, 0.0
	switch {
	case snap.State == elpico.Tuning:
		upSet, loSet = TuneTargetC, TuneTargetC
	case isHeating:
		upSet, loSet = snap.Recipe.UpperC, snap.Recipe.LowerC
	}

	soak := snap.Upper.Soak
	if snap.Lower.Soak < soak {
		soak = snap.Lower.Soak
	}

	return fmt.Sprintf(
		"US:%g LS:%g UP:%.2f LP:%.2f UH:%.2f LH:%.2f UW:%d LW:%d SK:%.2f ST:%d LM:%d",
		upSet, loSet,
		snap.Upper.PlateC, snap.Lower.PlateC,
		snap.Upper.HeaterC, snap.Lower.HeaterC,
		snap.Upper.Duty, snap.Lower.Duty,
		soak, int(snap.State), snap.Limit.Watts,
	)
}
