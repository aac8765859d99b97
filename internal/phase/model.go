package phase

import (
	"fmt"
	"math"
	"time"

	"github.com/wesleyorama2/loadphase/internal/loop"
	"github.com/wesleyorama2/loadphase/internal/session"
)

// Type identifies a scheduling model.
type Type string

const (
	// TypeAtOnce starts a fixed number of sessions together, once.
	TypeAtOnce Type = "atOnce"

	// TypeAlways keeps a fixed number of sessions running until the phase
	// finishes.
	TypeAlways Type = "always"

	// TypeSequentially runs one session at a time, a fixed number of times.
	TypeSequentially Type = "sequentially"

	// TypeRampPerSec linearly changes the arrival rate over the phase.
	TypeRampPerSec Type = "rampPerSec"

	// TypeConstantPerSec starts sessions at a fixed arrival rate.
	TypeConstantPerSec Type = "constantPerSec"
)

// ModelConfig describes a scheduling model. Only the fields relevant to Type
// are used.
type ModelConfig struct {
	Type Type `json:"type" yaml:"type"`

	// AtOnce, Always
	Users int `json:"users,omitempty" yaml:"users,omitempty"`

	// Sequentially
	Repeats int `json:"repeats,omitempty" yaml:"repeats,omitempty"`

	// RampPerSec
	InitialUsersPerSec int `json:"initialUsersPerSec,omitempty" yaml:"initialUsersPerSec,omitempty"`
	TargetUsersPerSec  int `json:"targetUsersPerSec,omitempty" yaml:"targetUsersPerSec,omitempty"`

	// ConstantPerSec
	UsersPerSec int `json:"usersPerSec,omitempty" yaml:"usersPerSec,omitempty"`

	// MaxSessions overrides the session reservation of the rate models.
	MaxSessions int `json:"maxSessions,omitempty" yaml:"maxSessions,omitempty"`
}

// Validate checks the model configuration. duration is the admission
// window of the phase.
func (c *ModelConfig) Validate(duration time.Duration) error {
	switch c.Type {
	case "":
		return &ValidationError{Field: "type", Message: "scheduling model is required"}

	case TypeAtOnce, TypeAlways:
		if c.Users < 0 {
			return &ValidationError{Field: "users", Message: "users must be >= 0"}
		}

	case TypeSequentially:
		if c.Repeats <= 0 {
			return &ValidationError{Field: "repeats", Message: "repeats must be > 0"}
		}

	case TypeRampPerSec:
		if c.InitialUsersPerSec < 0 || c.TargetUsersPerSec < 0 {
			return &ValidationError{Field: "usersPerSec", Message: "rates must be >= 0"}
		}
		if c.InitialUsersPerSec == 0 && c.TargetUsersPerSec == 0 {
			return &ValidationError{Field: "usersPerSec", Message: "initial or target rate must be > 0"}
		}
		if duration.Milliseconds() <= 0 {
			return &ValidationError{Field: "duration", Message: "rampPerSec requires a duration > 0"}
		}

	case TypeConstantPerSec:
		if c.UsersPerSec <= 0 {
			return &ValidationError{Field: "usersPerSec", Message: "usersPerSec must be > 0"}
		}

	default:
		return &ValidationError{Field: "type", Message: "unknown scheduling model: " + string(c.Type)}
	}

	if c.MaxSessions < 0 {
		return &ValidationError{Field: "maxSessions", Message: "maxSessions must be >= 0"}
	}
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error on field '" + e.Field + "': " + e.Message
}

// Model is the admission algorithm of a phase. Its implementations are
// AtOnce, Always, Sequentially, RampPerSec and ConstantPerSec; each holds
// the run state of exactly one phase.
type Model interface {
	// Type returns the model type.
	Type() Type

	// Reservation returns the number of sessions the phase needs from the
	// pool.
	Reservation() int

	// proceed admits the sessions due now. It is called when the phase
	// starts and by the model's own timers.
	proceed(p *Phase)

	// sessionFinished lets the model keep a finished session running.
	// Returning true means the session was restarted and the active count
	// stays the same.
	sessionFinished(p *Phase, s *session.Session) bool

	// releasesSessions reports whether completed sessions go back to the
	// pool.
	releasesSessions() bool
}

// NewModel creates the model instance for one phase.
func NewModel(cfg ModelConfig, duration time.Duration) (Model, error) {
	if err := cfg.Validate(duration); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case TypeAtOnce:
		return &AtOnce{Users: cfg.Users}, nil
	case TypeAlways:
		return &Always{Users: cfg.Users}, nil
	case TypeSequentially:
		return &Sequentially{Repeats: cfg.Repeats}, nil
	case TypeRampPerSec:
		return &RampPerSec{
			InitialUsersPerSec: cfg.InitialUsersPerSec,
			TargetUsersPerSec:  cfg.TargetUsersPerSec,
			Duration:           duration,
			MaxSessions:        cfg.MaxSessions,
		}, nil
	case TypeConstantPerSec:
		return &ConstantPerSec{
			UsersPerSec: cfg.UsersPerSec,
			MaxSessions: cfg.MaxSessions,
		}, nil
	default:
		return nil, fmt.Errorf("unknown scheduling model: %s", cfg.Type)
	}
}

// AtOnce starts Users sessions when the phase starts and finishes the phase
// right away; it terminates once they all complete.
type AtOnce struct {
	Users int
}

func (m *AtOnce) Type() Type             { return TypeAtOnce }
func (m *AtOnce) Reservation() int       { return m.Users }
func (m *AtOnce) releasesSessions() bool { return false }

func (m *AtOnce) proceed(p *Phase) {
	if !p.admitAll(m.Users) {
		return
	}
	p.Finish()
}

func (m *AtOnce) sessionFinished(*Phase, *session.Session) bool { return false }

// Always keeps Users sessions running: a session that finishes before the
// phase does is restarted in place.
type Always struct {
	Users int
}

func (m *Always) Type() Type             { return TypeAlways }
func (m *Always) Reservation() int       { return m.Users }
func (m *Always) releasesSessions() bool { return false }

func (m *Always) proceed(p *Phase) {
	p.admitAll(m.Users)
}

func (m *Always) sessionFinished(p *Phase, s *session.Session) bool {
	if p.Status().IsFinished() {
		return false
	}
	s.Start(p)
	return true
}

// Sequentially runs a single session Repeats times, then terminates the
// phase.
type Sequentially struct {
	Repeats int

	// only touched from the session's executor
	counter int
}

func (m *Sequentially) Type() Type             { return TypeSequentially }
func (m *Sequentially) Reservation() int       { return 1 }
func (m *Sequentially) releasesSessions() bool { return false }

func (m *Sequentially) proceed(p *Phase) {
	p.admitAll(1)
}

func (m *Sequentially) sessionFinished(p *Phase, s *session.Session) bool {
	m.counter++
	if m.counter >= m.Repeats {
		p.advance(StatusTerminating)
		return false
	}
	s.Start(p)
	return true
}

// Completed returns the number of finished executions.
func (m *Sequentially) Completed() int {
	return m.counter
}

// RampPerSec changes the arrival rate linearly from InitialUsersPerSec to
// TargetUsersPerSec over Duration.
type RampPerSec struct {
	InitialUsersPerSec int
	TargetUsersPerSec  int
	Duration           time.Duration
	MaxSessions        int

	startedUsers int64
	task         loop.Task
}

func (m *RampPerSec) Type() Type             { return TypeRampPerSec }
func (m *RampPerSec) releasesSessions() bool { return true }

// Reservation returns MaxSessions or ten seconds worth of the higher rate.
func (m *RampPerSec) Reservation() int {
	if m.MaxSessions > 0 {
		return m.MaxSessions
	}
	return max(m.InitialUsersPerSec, m.TargetUsersPerSec) * 10
}

// Required returns the number of sessions that should have been started
// delta milliseconds after the phase started. Integer division truncates at
// every step.
func (m *RampPerSec) Required(delta int64) int64 {
	initial := int64(m.InitialUsersPerSec)
	target := int64(m.TargetUsersPerSec)
	duration := m.Duration.Milliseconds()
	return (delta*initial + (target-initial)*delta/duration) / 1000
}

// NextDelta returns the offset in milliseconds at which the session after
// started is due, rounded up.
func (m *RampPerSec) NextDelta(started int64) int64 {
	initial := int64(m.InitialUsersPerSec)
	target := int64(m.TargetUsersPerSec)
	duration := m.Duration.Milliseconds()
	denominator := target + initial*(duration-1)
	if denominator <= 0 {
		return math.MaxInt64
	}
	return (1000*(started+1)*duration + denominator - 1) / denominator
}

// StartedUsers returns the number of sessions admitted so far.
func (m *RampPerSec) StartedUsers() int64 {
	return m.startedUsers
}

func (m *RampPerSec) proceed(p *Phase) {
	if m.task == nil {
		m.task = loop.TaskFunc(func() { m.proceed(p) })
	}
	p.admitAtRate(&m.startedUsers, m.Required, m.NextDelta, m.task)
}

func (m *RampPerSec) sessionFinished(*Phase, *session.Session) bool { return false }

// ConstantPerSec starts UsersPerSec sessions every second.
type ConstantPerSec struct {
	UsersPerSec int
	MaxSessions int

	startedUsers int64
	task         loop.Task
}

func (m *ConstantPerSec) Type() Type             { return TypeConstantPerSec }
func (m *ConstantPerSec) releasesSessions() bool { return true }

// Reservation returns MaxSessions or ten seconds worth of sessions.
func (m *ConstantPerSec) Reservation() int {
	if m.MaxSessions > 0 {
		return m.MaxSessions
	}
	return m.UsersPerSec * 10
}

// Required returns the number of sessions due delta milliseconds after the
// phase started.
func (m *ConstantPerSec) Required(delta int64) int64 {
	return delta * int64(m.UsersPerSec) / 1000
}

// NextDelta returns the offset in milliseconds at which the session after
// started is due, rounded up.
func (m *ConstantPerSec) NextDelta(started int64) int64 {
	ups := int64(m.UsersPerSec)
	return (1000*(started+1) + ups - 1) / ups
}

// StartedUsers returns the number of sessions admitted so far.
func (m *ConstantPerSec) StartedUsers() int64 {
	return m.startedUsers
}

func (m *ConstantPerSec) proceed(p *Phase) {
	if m.task == nil {
		m.task = loop.TaskFunc(func() { m.proceed(p) })
	}
	p.admitAtRate(&m.startedUsers, m.Required, m.NextDelta, m.task)
}

func (m *ConstantPerSec) sessionFinished(*Phase, *session.Session) bool { return false }
