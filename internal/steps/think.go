package steps

import (
	"time"

	"github.com/wesleyorama2/loadphase/internal/loop"
	"github.com/wesleyorama2/loadphase/internal/session"
)

type thinkState struct {
	waiting bool
	ready   bool
}

// ThinkTime pauses the sequence for Duration using a timer on the
// session's executor.
type ThinkTime struct {
	Duration time.Duration
	key      string
}

func (st *ThinkTime) Reserve(s *session.Session) error {
	return declareSlots[thinkState](s, st.key)
}

func (st *ThinkTime) Prepare(s *session.Session) (bool, error) {
	if st.Duration <= 0 {
		return true, nil
	}
	slot, err := slotOf[thinkState](s, st.key)
	if err != nil {
		return false, err
	}
	if slot.ready {
		return true, nil
	}
	if !slot.waiting {
		slot.waiting = true
		generation := s.Generation()
		s.Executor().Schedule(loop.TaskFunc(func() {
			if s.Generation() != generation || !s.IsActive() {
				return
			}
			slot.ready = true
			s.Proceed()
		}), st.Duration)
	}
	return false, nil
}

func (st *ThinkTime) Invoke(s *session.Session) error {
	if st.Duration <= 0 {
		return nil
	}
	slot, err := slotOf[thinkState](s, st.key)
	if err != nil {
		return err
	}
	*slot = thinkState{}
	return nil
}
