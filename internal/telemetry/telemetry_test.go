package telemetry

import (
	"strings"
	"testing"

	elpico "github.com/naco-design/el-pico"
)

func TestEncodeReportsZeroSetpointWhenNotHeating(t *testing.T) {
	snap := elpico.OvenSnapshot{
		State:  elpico.Cooling,
		Recipe: elpico.Recipes[0],
		Limit:  elpico.PowerLimits[0],
	}
	line := Encode(snap)
	if !strings.HasPrefix(line, "US:0 LS:0 ") {
		t.Fatalf("expected zero setpoints while cooling, got %q", line)
	}
}

func TestEncodeReportsTuneTargetWhileTuning(t *testing.T) {
	snap := elpico.OvenSnapshot{
		State:  elpico.Tuning,
		Recipe: elpico.Recipes[0],
		Limit:  elpico.PowerLimits[0],
	}
	line := Encode(snap)
	if !strings.HasPrefix(line, "US:350 LS:350 ") {
		t.Fatalf("expected tune target setpoints, got %q", line)
	}
}

func TestEncodeReportsRecipeTargetsWhileHeating(t *testing.T) {
	snap := elpico.OvenSnapshot{
		State:  elpico.Preheat,
		Recipe: elpico.Recipes[0],
		Limit:  elpico.PowerLimits[0],
	}
	line := Encode(snap)
	if !strings.HasPrefix(line, "US:500 LS:430 ") {
		t.Fatalf("expected recipe targets while heating, got %q", line)
	}
}

func TestEncodeIncludesAllFields(t *testing.T) {
	snap := elpico.OvenSnapshot{
		State:  elpico.Baking,
		Recipe: elpico.Recipes[0],
		Limit:  elpico.PowerLimits[0],
		Upper:  elpico.ZoneView{PlateC: 495.5, HeaterC: 520, Duty: 128, Soak: 96},
		Lower:  elpico.ZoneView{PlateC: 425.1, HeaterC: 460, Duty: 90, Soak: 97},
	}
	line := Encode(snap)
	for _, key := range []string{"US:", "LS:", "UP:", "LP:", "UH:", "LH:", "UW:", "LW:", "SK:", "ST:", "LM:"} {
		if !strings.Contains(line, key) {
			t.Fatalf("expected field %q in telemetry line %q", key, line)
		}
	}
	if !strings.Contains(line, "SK:96.00") {
		t.Fatalf("expected min soak reported, got %q", line)
	}
}
