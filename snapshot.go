package elpico

// ZoneView is the read-only projection of one zone's runtime state,
// consumed by the display renderer and the telemetry encoder. Neither may
// mutate core state, so they only ever see this value type.
type ZoneView struct {
	PlateC   float64
	HeaterC  float64
	Trend    float64
	Soak     float64
	Duty     uint8
	ErrorBit uint8
	Tuning   bool
	Wear     float64
}

// Faulted reports whether any error bit is latched on this zone.
func (v ZoneView) Faulted() bool { return v.ErrorBit != 0 }

// OvenSnapshot aggregates everything the display renderer, the telemetry
// encoder, and the input router's confirmation-prompt banner need to read.
type OvenSnapshot struct {
	State        OvenState
	Baking       bool
	Confirm      Confirmation
	Recipe       Recipe
	Limit        PowerLimit
	Upper        ZoneView
	Lower        ZoneView
	TuneStage    uint8
	BakeRemainS  int
	Maintenance  bool
	TemporaryMsg string
}
