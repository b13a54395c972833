// Package power implements PowerAllocator: mapping each zone's requested
// PID duty to a wall-power-capped duty pair, honoring lower-zone priority
// and the post-dough-insertion boost bias. See SPEC_FULL.md §4.2.
package power

import elpico "github.com/naco-design/el-pico"

// Ratings are the two elements' nameplate wattage, used to convert
// between a 0..255 duty and requested watts.
type Ratings struct {
	UpperW int
	LowerW int
}

// Allocate computes the wall-power-capped duty pair for one tick.
// upRaw/loRaw are the zones' raw PID outputs (0..255). limitW is the
// active circuit budget. boosting is true for the first 30 s of a bake,
// when the lower zone may legitimately claim the entire budget as dough
// drives a large, brief heat draw. state, upFault and loFault gate the result:
// any zone fault or the Error state forces both outputs to 0.
func Allocate(upRaw, loRaw uint8, limitW int, boosting bool, ratings Ratings, state elpico.OvenState, upFault, loFault uint8) (upDuty, loDuty uint8) {
	if state == elpico.Error || upFault != 0 || loFault != 0 {
		return 0, 0
	}
	if state == elpico.Tuning {
		return upRaw, loRaw
	}

	upReqW := int(upRaw) * ratings.UpperW / 255
	loReqW := int(loRaw) * ratings.LowerW / 255

	var upW, loW int
	if boosting {
		loActiveW := min(limitW, loReqW)
		upMaxW := max(0, limitW-loActiveW)
		upW = min(upReqW, upMaxW)
		loW = loActiveW
	} else {
		loW = min(loReqW, limitW)
		rem := max(0, limitW-loW)
		upW = min(upReqW, rem)
	}

	upDuty = uint8(clamp(upW*255/ratings.UpperW, 0, 255))
	loDuty = uint8(clamp(loW*255/ratings.LowerW, 0, 255))
	return upDuty, loDuty
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
