// Package elpico holds the domain model shared across the oven control
// core: oven/zone state enums, the recipe and power-limit tables, the
// persisted settings record, and the fault-event log entry. Subpackages
// under internal/ implement the behavior that operates on these types.
package elpico

// OvenState is the oven-level state machine's current state.
type OvenState uint8

const (
	Idle OvenState = iota
	Preheat
	Ready
	Baking
	BakeDone
	Rest
	Cooling
	Shutdown
	Error
	Tuning
)

func (s OvenState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Preheat:
		return "Preheat"
	case Ready:
		return "Ready"
	case Baking:
		return "Baking"
	case BakeDone:
		return "BakeDone"
	case Rest:
		return "Rest"
	case Cooling:
		return "Cooling"
	case Shutdown:
		return "Shutdown"
	case Error:
		return "Error"
	case Tuning:
		return "Tuning"
	default:
		return "Unknown"
	}
}

// Zone identifies which of the two heating zones a value or event refers
// to. ZoneNone is used for oven-level events that are not zone-specific.
type Zone uint8

const (
	ZoneNone Zone = iota
	ZoneUpper
	ZoneLower
)

func (z Zone) String() string {
	switch z {
	case ZoneUpper:
		return "upper"
	case ZoneLower:
		return "lower"
	default:
		return ""
	}
}

// ConfirmKind identifies which confirmation prompt is currently active.
type ConfirmKind uint8

const (
	ConfirmNone ConfirmKind = iota
	ConfirmCancelTune
	ConfirmStartTune
	ConfirmFactoryReset
)

// Confirmation is the oven's optional yes/no prompt.
type Confirmation struct {
	Kind ConfirmKind
	Yes  bool
}

// Active reports whether a confirmation prompt is currently displayed.
func (c Confirmation) Active() bool { return c.Kind != ConfirmNone }

// Error bits, latched per zone.
const (
	FaultSensor   uint8 = 1 << 0
	FaultRunaway  uint8 = 1 << 1
	FaultOverheat uint8 = 1 << 2
)
