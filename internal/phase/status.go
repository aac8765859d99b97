package phase

// Status is the lifecycle state of a phase. Transitions only move forward.
type Status int32

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusFinished
	StatusTerminating
	StatusTerminated
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "NOT_STARTED"
	case StatusRunning:
		return "RUNNING"
	case StatusFinished:
		return "FINISHED"
	case StatusTerminating:
		return "TERMINATING"
	case StatusTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// IsFinished reports whether the phase stopped admitting new sessions.
func (s Status) IsFinished() bool {
	return s >= StatusFinished
}

// IsTerminated reports whether the phase reached its final state.
func (s Status) IsTerminated() bool {
	return s == StatusTerminated
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
