package persistence

import (
	"context"
	"testing"
	"time"

	elpico "github.com/naco-design/el-pico"
	"github.com/naco-design/el-pico/internal/config"
	"github.com/naco-design/el-pico/internal/obslog"
)

type fakeStore struct {
	block      []byte
	writeCalls int
}

func (f *fakeStore) ReadBlock(ctx context.Context) ([]byte, error) { return f.block, nil }
func (f *fakeStore) WriteBlock(ctx context.Context, buf []byte) error {
	f.writeCalls++
	f.block = append([]byte(nil), buf...)
	return nil
}

func testLogger() *obslog.Logger { return obslog.Get(obslog.ErrorLevel) }

func testHardware() config.Hardware { return config.Defaults() }

func TestBootWritesDefaultsOnBlankStore(t *testing.T) {
	store := &fakeStore{}
	m := New(store, testHardware(), testLogger())
	s, err := m.Boot(context.Background(), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Magic != elpico.SchemaMagic || s.UpperWear != 100 || s.LowerWear != 100 {
		t.Fatalf("unexpected default settings: %+v", s)
	}
	if store.writeCalls != 1 {
		t.Fatalf("expected exactly one write on first boot, got %d", store.writeCalls)
	}
}

func TestBootRoundTripsMatchingMagic(t *testing.T) {
	store := &fakeStore{}
	written := elpico.Settings{Magic: elpico.SchemaMagic, RecipeIdx: 1, LimitIdx: 2, UpperWear: 55, LowerWear: 42, Upper: elpico.PIDTunings{Kp: 1, Ki: 2, Kd: 3}, Lower: elpico.PIDTunings{Kp: 4, Ki: 5, Kd: 6}}
	store.block = written.Encode()

	m := New(store, testHardware(), testLogger())
	loaded, err := m.Boot(context.Background(), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !loaded.Equal(written) {
		t.Fatalf("round trip mismatch: got %+v want %+v", loaded, written)
	}
	if store.writeCalls != 0 {
		t.Fatalf("expected no write for a valid existing block")
	}
}

func TestSaveNowSuppressedWhenUnchanged(t *testing.T) {
	store := &fakeStore{}
	m := New(store, testHardware(), testLogger())
	m.Boot(context.Background(), time.Unix(0, 0))
	writesAfterBoot := store.writeCalls

	m.MarkDirty(time.Unix(1, 0))
	m.SaveNow(context.Background())
	if store.writeCalls != writesAfterBoot {
		t.Fatalf("expected no additional write when block unchanged from shadow")
	}
}

func TestTickCommitsUrgentlyOnError(t *testing.T) {
	store := &fakeStore{}
	m := New(store, testHardware(), testLogger())
	m.Boot(context.Background(), time.Unix(0, 0))
	writesAfterBoot := store.writeCalls

	m.Current().RecipeIdx = 1
	m.MarkDirty(time.Unix(1, 0))
	m.Tick(context.Background(), time.Unix(1, 0), elpico.Error)
	if store.writeCalls != writesAfterBoot+1 {
		t.Fatalf("expected urgent flush in Error state, writes=%d", store.writeCalls)
	}
}

func TestTickDefersUntilIdleHorizon(t *testing.T) {
	store := &fakeStore{}
	m := New(store, testHardware(), testLogger())
	m.Boot(context.Background(), time.Unix(0, 0))
	writesAfterBoot := store.writeCalls

	m.Current().LimitIdx = 2
	m.MarkDirty(time.Unix(0, 0))
	m.Tick(context.Background(), time.Unix(5, 0), elpico.Idle)
	if store.writeCalls != writesAfterBoot {
		t.Fatalf("expected no commit before idle horizon")
	}
	m.Tick(context.Background(), time.Unix(31, 0), elpico.Idle)
	if store.writeCalls != writesAfterBoot+1 {
		t.Fatalf("expected commit after idle horizon elapsed")
	}
}

func TestMarkWearDirtyGatesOnIntegerThreshold(t *testing.T) {
	store := &fakeStore{}
	m := New(store, testHardware(), testLogger())
	m.Boot(context.Background(), time.Unix(0, 0))

	m.Current().UpperWear = 99.5
	m.MarkWearDirty(time.Unix(1, 0))
	m.Tick(context.Background(), time.Unix(1, 0), elpico.Error)
	writesAfterBoot := 1 // one from Boot
	if store.writeCalls != writesAfterBoot {
		t.Fatalf("expected sub-threshold wear change not to trigger a commit, writes=%d", store.writeCalls)
	}

	m.Current().UpperWear = 98.4
	m.MarkWearDirty(time.Unix(2, 0))
	m.Tick(context.Background(), time.Unix(2, 0), elpico.Error)
	if store.writeCalls != writesAfterBoot+1 {
		t.Fatalf("expected >=1 degree wear drift to trigger a commit, writes=%d", store.writeCalls)
	}
}

// TestSustainedWearDecayStillReachesIdleFlush guards against the
// reference point staying pinned at the last commit: if MarkWearDirty
// didn't reset it at mark time, continuous 0.01/tick decay would keep
// the drift over threshold on every tick once it first crosses 1.0,
// re-stamping lastDirtyAt forever and starving the 30 s idle-flush
// horizon — no commit would ever land outside Shutdown/Error.
func TestSustainedWearDecayStillReachesIdleFlush(t *testing.T) {
	store := &fakeStore{}
	m := New(store, testHardware(), testLogger())
	m.Boot(context.Background(), time.Unix(0, 0))
	writesAfterBoot := store.writeCalls

	wear := 100.0
	for i := 1; i <= 100; i++ {
		wear -= 0.01
		m.Current().UpperWear = wear
		now := time.Unix(int64(i), 0)
		m.MarkWearDirty(now)
		m.Tick(context.Background(), now, elpico.Idle)
	}
	if store.writeCalls != writesAfterBoot {
		t.Fatalf("expected no commit yet right at the mark (idle horizon not elapsed), writes=%d", store.writeCalls)
	}

	// The mark at tick 100 should be the last one for a long while: the
	// reference point reset there means the next full-point drift is
	// ~100 ticks away, so the commit that lands at tick 131 (more than 30 s
	// after the mark) must come from the idle-flush horizon, not a fresh
	// mark re-stamping the timer.
	for i := 101; i <= 140; i++ {
		wear -= 0.01
		m.Current().UpperWear = wear
		now := time.Unix(int64(i), 0)
		m.MarkWearDirty(now)
		m.Tick(context.Background(), now, elpico.Idle)
	}
	if store.writeCalls != writesAfterBoot+1 {
		t.Fatalf("expected exactly one idle-flush commit once continuous decay holds dirty past 30s, writes=%d", store.writeCalls)
	}
}
