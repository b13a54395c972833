package elpico

import "time"

// EventKind categorizes a FaultEvent.
type EventKind string

const (
	EventSensorFault    EventKind = "SENSOR_FAULT"
	EventRunaway        EventKind = "RUNAWAY"
	EventOverheat       EventKind = "OVERHEAT"
	EventStateChange    EventKind = "STATE_CHANGE"
	EventMaintenance    EventKind = "MAINTENANCE"
	EventFactoryReset   EventKind = "FACTORY_RESET"
	EventTuneCompleted  EventKind = "TUNE_COMPLETED"
)

// FaultEvent is one entry in the durable fault/transition log. It
// supplements the live in-RAM error bitset with a queryable history; see
// SPEC_FULL.md §3.
type FaultEvent struct {
	ID         string
	OccurredAt time.Time
	Zone       Zone
	Kind       EventKind
	Detail     string
}
