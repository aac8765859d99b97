package steps

import (
	"github.com/wesleyorama2/loadphase/internal/session"
)

// NextSequence starts Sequence and ends the current one.
type NextSequence struct {
	always
	Sequence string
}

func (st *NextSequence) Invoke(s *session.Session) error { return s.JumpTo(st.Sequence) }

// NewSequence starts Sequence alongside the current one.
type NewSequence struct {
	always
	Sequence string
}

func (st *NewSequence) Invoke(s *session.Session) error { return s.StartSequence(st.Sequence) }

// Stop ends every sequence; the session finishes normally.
type Stop struct {
	always
}

func (*Stop) Invoke(s *session.Session) error {
	s.Stop()
	return nil
}
