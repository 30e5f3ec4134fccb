package control

import "time"

// Event kinds recorded against a dive session.
const (
	EventRunStarted     = "run_started"
	EventRunStopped     = "run_stopped"
	EventStateChange    = "state_change"
	EventOverrun        = "overrun"
	EventActuationFault = "actuation_fault"
	EventTiltExceeded   = "tilt_exceeded"
)

// RunStats summarizes a finished dive session. Attached to the
// EventRunStopped event only.
type RunStats struct {
	StartedAt      time.Time `json:"started_utc"`
	StoppedAt      time.Time `json:"stopped_utc"`
	Reason         string    `json:"reason"`
	Ticks          uint64    `json:"ticks"`
	Overruns       uint64    `json:"overruns"`
	EmergencyStops uint64    `json:"emergency_stops"`
}

// Event is one diagnostic occurrence during a dive session.
type Event struct {
	SessionID string
	At        time.Time
	Kind      string
	Detail    string
	Stats     *RunStats
}

// EventSink receives loop events. Record is called from the loop goroutine
// between ticks and must not block; sinks that do real I/O should buffer
// and drop rather than stall the loop.
type EventSink interface {
	Record(ev Event)
}
