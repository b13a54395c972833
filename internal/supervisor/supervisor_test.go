package supervisor

import (
	"context"
	"testing"
	"time"

	elpico "github.com/naco-design/el-pico"
	"github.com/naco-design/el-pico/internal/config"
	"github.com/naco-design/el-pico/internal/obslog"
	"github.com/naco-design/el-pico/internal/persistence"
	"github.com/naco-design/el-pico/internal/zone"
)

type fixedProbe struct{ v float64 }

func (f *fixedProbe) ReadCelsius() float64 { return f.v }

type nopSSR struct{ on bool }

func (n *nopSSR) Set(on bool) { n.on = on }

type fakeContactor struct{ energized bool }

func (f *fakeContactor) Set(energized bool) { f.energized = energized }

type memStore struct{ block []byte }

func (m *memStore) ReadBlock(ctx context.Context) ([]byte, error) { return m.block, nil }
func (m *memStore) WriteBlock(ctx context.Context, buf []byte) error {
	m.block = append([]byte(nil), buf...)
	return nil
}

type fakeFaultLog struct{ events []elpico.FaultEvent }

func (f *fakeFaultLog) Append(ctx context.Context, ev elpico.FaultEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeFaultLog) Recent(ctx context.Context, limit int) ([]elpico.FaultEvent, error) {
	if limit > len(f.events) {
		limit = len(f.events)
	}
	out := make([]elpico.FaultEvent, limit)
	for i := 0; i < limit; i++ {
		out[i] = f.events[len(f.events)-1-i]
	}
	return out, nil
}

type harness struct {
	sup                          *Supervisor
	upPlate, upHeater            *fixedProbe
	loPlate, loHeater            *fixedProbe
	upSSR, loSSR                 *nopSSR
	contactor                    *fakeContactor
	persist                      *persistence.Manager
	faults                       *fakeFaultLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hw := config.Defaults()
	log := obslog.Get(obslog.ErrorLevel)

	upPlate, upHeater := &fixedProbe{v: 20}, &fixedProbe{v: 20}
	loPlate, loHeater := &fixedProbe{v: 20}, &fixedProbe{v: 20}
	upSSR, loSSR := &nopSSR{}, &nopSSR{}

	params := zone.Params{StoneThicknessMM: hw.StoneThicknessMM, PlateMaxC: hw.PlateMaxC, HeaterLimitC: hw.HeaterLimitC, RunawayTimeout: hw.RunawayTimeout}
	upper := zone.New("upper", upPlate, upHeater, upSSR, params, zone.Tunings{Kp: 3.5, Ki: 0.05, Kd: 1.0}, log)
	lower := zone.New("lower", loPlate, loHeater, loSSR, params, zone.Tunings{Kp: 3.5, Ki: 0.05, Kd: 1.0}, log)

	store := &memStore{}
	persist := persistence.New(store, hw, log)
	persist.Boot(context.Background(), time.Unix(0, 0))

	contactor := &fakeContactor{}
	faults := &fakeFaultLog{}
	sup := New(upper, lower, persist, contactor, faults, hw, log)

	return &harness{sup: sup, upPlate: upPlate, upHeater: upHeater, loPlate: loPlate, loHeater: loHeater, upSSR: upSSR, loSSR: loSSR, contactor: contactor, persist: persist, faults: faults}
}

func TestIdleAdvancesToPreheat(t *testing.T) {
	h := newHarness(t)
	h.sup.Tick(context.Background(), time.Unix(1, 0))
	if h.sup.State() != elpico.Preheat {
		t.Fatalf("expected Preheat, got %v", h.sup.State())
	}
}

func TestPreheatToReadyToBaking(t *testing.T) {
	h := newHarness(t)
	now := time.Unix(0, 0)
	h.sup.Tick(context.Background(), now) // Idle -> Preheat

	recipe := h.sup.Recipe()
	for i := 0; i < 500; i++ {
		now = now.Add(time.Second)
		h.upPlate.v = recipe.UpperC
		h.upHeater.v = recipe.UpperC + 20
		h.loPlate.v = recipe.LowerC
		h.loHeater.v = recipe.LowerC + 20
		h.sup.Tick(context.Background(), now)
		if h.sup.State() == elpico.Ready {
			break
		}
	}
	if h.sup.State() != elpico.Ready {
		t.Fatalf("expected Ready after soak accumulates, got %v", h.sup.State())
	}

	now = now.Add(time.Second)
	h.loPlate.v -= 3 // trend will compute negative once filtered
	h.sup.Tick(context.Background(), now)
	// drop again to push trend below -2 C/s threshold
	now = now.Add(time.Second)
	h.loPlate.v -= 125
	h.sup.Tick(context.Background(), now)

	if h.sup.State() != elpico.Baking {
		t.Fatalf("expected Baking after simulated dough insertion, got %v", h.sup.State())
	}
}

func TestZoneFaultTransitionsToError(t *testing.T) {
	h := newHarness(t)
	now := time.Unix(0, 0)
	h.sup.Tick(context.Background(), now) // Idle -> Preheat

	now = now.Add(time.Second)
	h.upPlate.v = 900 // > PlateMaxC, rejected by the probe check: latches a sensor fault
	h.upHeater.v = 900
	h.sup.Tick(context.Background(), now)

	now = now.Add(time.Second)
	h.sup.Tick(context.Background(), now)

	if h.sup.State() != elpico.Error {
		t.Fatalf("expected Error after zone fault, got %v", h.sup.State())
	}
	if h.contactor.energized {
		t.Fatalf("expected contactor de-energized in Error")
	}
	if len(h.faults.events) == 0 {
		t.Fatalf("expected fault event recorded")
	}

	recent, err := h.sup.RecentFaults(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) == 0 {
		t.Fatalf("expected RecentFaults to surface the recorded event")
	}
}

func TestLongPressLeavesErrorAndReenergizes(t *testing.T) {
	h := newHarness(t)
	h.sup.state = elpico.Error
	h.sup.LongPressLeaveError(time.Unix(0, 0))
	if h.sup.State() != elpico.Idle {
		t.Fatalf("expected Idle after long-press recovery")
	}
	if !h.contactor.energized {
		t.Fatalf("expected contactor re-energized")
	}
}

func TestFactoryResetRestoresDefaults(t *testing.T) {
	h := newHarness(t)
	h.sup.settings().RecipeIdx = 1
	h.sup.settings().UpperWear = 40
	h.sup.OpenFactoryResetPrompt()
	h.sup.ToggleConfirmChoice()
	h.sup.DispatchConfirmation(context.Background(), time.Unix(0, 0))

	if h.sup.settings().RecipeIdx != 0 || h.sup.settings().UpperWear != 100 {
		t.Fatalf("expected defaults restored, got %+v", h.sup.settings())
	}
	if h.sup.State() != elpico.Shutdown {
		t.Fatalf("expected Shutdown after factory reset, got %v", h.sup.State())
	}
	if h.sup.TemporaryMessage(time.Unix(0, 0)) != "Factory Reset" {
		t.Fatalf("expected Factory Reset banner")
	}
}

func TestDispatchConfirmationDoesNothingOnNo(t *testing.T) {
	h := newHarness(t)
	h.sup.settings().RecipeIdx = 1
	h.sup.settings().UpperWear = 40
	h.sup.OpenFactoryResetPrompt()
	// Leave the default selection (No) untouched and dispatch.
	h.sup.DispatchConfirmation(context.Background(), time.Unix(0, 0))

	if h.sup.settings().RecipeIdx != 1 || h.sup.settings().UpperWear != 40 {
		t.Fatalf("expected settings untouched on No, got %+v", h.sup.settings())
	}
	if h.sup.Confirmation().Active() {
		t.Fatalf("expected prompt cleared regardless of selection")
	}
}

func TestDispatchConfirmationCancelTuneDoesNothingOnNo(t *testing.T) {
	h := newHarness(t)
	h.sup.state = elpico.Tuning
	h.sup.tuneStage = 1
	h.sup.upper.StartTune()
	h.sup.OpenCancelTunePrompt()
	h.sup.DispatchConfirmation(context.Background(), time.Unix(0, 0))

	if h.sup.State() != elpico.Tuning || h.sup.TuneStage() != 1 {
		t.Fatalf("expected tuning left running on No, got state=%v stage=%d", h.sup.State(), h.sup.TuneStage())
	}
}

func TestCycleRecipeWrapsAndMarksDirty(t *testing.T) {
	h := newHarness(t)
	n := len(elpico.Recipes)
	for i := 0; i < n; i++ {
		h.sup.CycleRecipe(1, time.Unix(int64(i), 0))
	}
	if h.sup.settings().RecipeIdx != 0 {
		t.Fatalf("expected recipe index to wrap back to 0, got %d", h.sup.settings().RecipeIdx)
	}
}
