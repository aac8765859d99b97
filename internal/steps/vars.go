package steps

import (
	"github.com/wesleyorama2/loadphase/internal/session"
)

// always is embedded by steps that are never blocked.
type always struct{}

func (always) Prepare(*session.Session) (bool, error) { return true, nil }

// SetInt assigns an integer variable.
type SetInt struct {
	always
	Var   string
	Value int
}

func (st *SetInt) Reserve(s *session.Session) error { return s.DeclareInt(st.Var) }

func (st *SetInt) Invoke(s *session.Session) error { return s.SetInt(st.Var, st.Value) }

// AddToInt adds Value to an integer variable. An unset variable counts as
// zero.
type AddToInt struct {
	always
	Var   string
	Value int
}

func (st *AddToInt) Reserve(s *session.Session) error { return s.DeclareInt(st.Var) }

func (st *AddToInt) Invoke(s *session.Session) error {
	if !s.IsSet(st.Var) {
		return s.SetInt(st.Var, st.Value)
	}
	_, err := s.AddToInt(st.Var, st.Value)
	return err
}

// SetObject assigns an object variable.
type SetObject struct {
	always
	Var   string
	Value Template
}

func (st *SetObject) Reserve(s *session.Session) error { return s.DeclareObject(st.Var) }

func (st *SetObject) Invoke(s *session.Session) error {
	value, err := st.Value.Render(s)
	if err != nil {
		return err
	}
	return s.SetObject(st.Var, value)
}

// AwaitVar blocks the sequence until Var is set.
type AwaitVar struct {
	Var string
}

func (st *AwaitVar) Prepare(s *session.Session) (bool, error) {
	if !s.IsDeclared(st.Var) {
		return false, &undeclaredError{name: st.Var}
	}
	return s.IsSet(st.Var), nil
}

func (st *AwaitVar) Invoke(*session.Session) error { return nil }

// BreakSequence ends the current sequence when the integer variable Var
// equals Value. An unset variable never matches.
type BreakSequence struct {
	always
	Var   string
	Value int
}

func (st *BreakSequence) Invoke(s *session.Session) error {
	if !s.IsSet(st.Var) {
		return nil
	}
	v, err := s.GetInt(st.Var)
	if err != nil {
		return err
	}
	if v == st.Value {
		s.EndSequence()
	}
	return nil
}

type undeclaredError struct {
	name string
}

func (e *undeclaredError) Error() string {
	return "await " + e.name + ": " + session.ErrVariableUndeclared.Error()
}

func (e *undeclaredError) Unwrap() error { return session.ErrVariableUndeclared }
