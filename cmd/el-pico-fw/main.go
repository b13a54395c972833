package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/naco-design/el-pico/internal/config"
	"github.com/naco-design/el-pico/internal/input"
	"github.com/naco-design/el-pico/internal/loop"
	"github.com/naco-design/el-pico/internal/obslog"
	"github.com/naco-design/el-pico/internal/persistence"
	"github.com/naco-design/el-pico/internal/persistence/sqlite"
	"github.com/naco-design/el-pico/internal/simhw"
	"github.com/naco-design/el-pico/internal/supervisor"
	"github.com/naco-design/el-pico/internal/zone"
)

const tickInterval = 100 * time.Millisecond
const bootSplashDuration = 2 * time.Second
const recentFaultDumpLimit = 10

func main() {
	log := obslog.Get(obslog.InfoLevel)

	hw, err := config.Load(configPath())
	if err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	db, err := sqlite.Open(dbPath())
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	settingsStore := sqlite.NewSettingsStore(db)
	faultLog := sqlite.NewFaultLog(db)
	persist := persistence.New(settingsStore, hw, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boot := time.Now()
	set, err := persist.Boot(ctx, boot)
	if err != nil {
		log.Fatalw("failed to load persisted settings", "err", err)
	}

	upperZone, lowerZone := simhw.NewZone(), simhw.NewZone()
	zoneParams := zone.Params{
		StoneThicknessMM: hw.StoneThicknessMM,
		PlateMaxC:        hw.PlateMaxC,
		HeaterLimitC:     hw.HeaterLimitC,
		RunawayTimeout:   hw.RunawayTimeout,
	}
	upper := zone.New("upper", upperZone.PlateProbe(), upperZone.HeaterProbe(), upperZone.SSR(), zoneParams, zone.Tunings(set.Upper), log)
	lower := zone.New("lower", lowerZone.PlateProbe(), lowerZone.HeaterProbe(), lowerZone.SSR(), zoneParams, zone.Tunings(set.Lower), log)

	contactor := &simhw.Contactor{}
	sup := supervisor.New(upper, lower, persist, contactor, faultLog, hw, log)
	router := input.New(sup, log)

	// Hidden feature: holding the button at power-on opens the StartTune
	// prompt. There is no physical switch in this deployment, so the
	// boot hint is always false; a real target wires GPIO state here.
	router.BootHint(false)

	log.Infow("heater health at boot", "upper", set.UpperWear, "lower", set.LowerWear)

	if recent, rerr := sup.RecentFaults(ctx, recentFaultDumpLimit); rerr != nil {
		log.Errorw("failed to read fault log at boot", "err", rerr)
	} else {
		for _, ev := range recent {
			log.Infow("prior fault", "zone", ev.Zone.String(), "kind", ev.Kind, "occurredAt", ev.OccurredAt)
		}
	}

	time.Sleep(bootSplashDuration)

	contactor.Set(true)

	watchdog := simhw.Watchdog{}
	display := simhw.NewConsoleDisplay(log)
	telemetrySink := simhw.StdoutTelemetry{}
	inputSource := simhw.NoInput{}

	l := loop.New(watchdog, inputSource, router, sup, upper, lower, persist, display, telemetrySink, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	log.Infow("el-pico control core running")
	for {
		select {
		case <-quit:
			log.Infow("shutting down")
			return
		case now := <-ticker.C:
			l.Step(ctx, now)
		}
	}
}

func configPath() string {
	if p := os.Getenv("EL_PICO_CONFIG"); p != "" {
		return p
	}
	return "configs/config.yml"
}

func dbPath() string {
	if p := os.Getenv("EL_PICO_DB"); p != "" {
		return p
	}
	return "el-pico.db"
}
