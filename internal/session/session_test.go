package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStartRunsInitialSequences(t *testing.T) {
	a, b := &countStep{}, &countStep{}
	sc := mustScenario([]*Sequence{
		{Name: "a", Steps: []Step{a}},
		{Name: "b", Steps: []Step{b}},
	}, "a", "b")
	exec := &manualExecutor{}
	phase := newFakePhase()
	s := New(7, sc, exec)

	s.Start(phase)
	assert.Equal(t, 0, a.invoked, "start must run on the executor")
	exec.drain()

	assert.Equal(t, 1, a.invoked)
	assert.Equal(t, 1, b.invoked)
	assert.Equal(t, 1, phase.finished)
	assert.False(t, s.IsActive())
	assert.Equal(t, uint64(1), s.Generation())
	assert.Equal(t, "#7", s.String())
}

func TestSessionResumesAfterProceed(t *testing.T) {
	gate := &gateStep{}
	sc := mustScenario([]*Sequence{{Name: "main", Steps: []Step{gate}}}, "main")
	exec := &manualExecutor{}
	phase := newFakePhase()
	s := New(1, sc, exec)

	s.Start(phase)
	exec.drain()
	require.True(t, s.IsActive())
	require.Equal(t, 0, phase.finished)

	// coalesced
	s.Proceed()
	s.Proceed()
	assert.Len(t, exec.tasks, 1)

	gate.open = true
	exec.drain()
	assert.Equal(t, 1, phase.finished)
	assert.Equal(t, 1, gate.invoked)
}

func TestSessionTerminatesWhenPhaseTerminating(t *testing.T) {
	gate := &gateStep{}
	sc := mustScenario([]*Sequence{{Name: "main", Steps: []Step{gate}}}, "main")
	exec := &manualExecutor{}
	phase := newFakePhase()
	s := New(1, sc, exec)

	s.Start(phase)
	exec.drain()

	phase.terminating = true
	s.Proceed()
	exec.drain()

	assert.Equal(t, 1, phase.terminated)
	assert.Equal(t, 0, phase.finished)
	assert.Equal(t, 0, s.RunningSequences())
	assert.Empty(t, phase.failures)

	// a stale run after completion is ignored
	s.Proceed()
	exec.drain()
	assert.Equal(t, 1, phase.terminated)
}

func TestSessionRestartResetsState(t *testing.T) {
	setter := &funcStep{invoke: func(s *Session) error {
		if s.IsSet("counter") {
			return errors.New("counter leaked from previous execution")
		}
		return s.SetInt("counter", 1)
	}}
	sc := mustScenario([]*Sequence{{Name: "main", Steps: []Step{setter}}}, "main")
	sc.IntVars = []string{"counter"}
	exec := &manualExecutor{}
	phase := newFakePhase()
	s := New(1, sc, exec)

	restarts := 0
	phase.onFinished = func(s *Session) {
		if restarts < 2 {
			restarts++
			s.Start(phase)
		}
	}
	s.Start(phase)
	exec.drain()

	assert.Equal(t, 3, phase.finished)
	assert.Empty(t, phase.failures)
	assert.Equal(t, uint64(3), s.Generation())
}

func TestSessionStopFinishesNormally(t *testing.T) {
	after := &countStep{}
	other := &gateStep{}
	stop := &funcStep{invoke: func(s *Session) error {
		s.Stop()
		return nil
	}}
	sc := mustScenario([]*Sequence{
		{Name: "main", Steps: []Step{stop, after}},
		{Name: "waiting", Steps: []Step{other}},
	}, "waiting", "main")
	exec := &manualExecutor{}
	phase := newFakePhase()
	s := New(1, sc, exec)

	s.Start(phase)
	exec.drain()

	assert.Equal(t, 1, phase.finished)
	assert.Equal(t, 0, after.invoked)
	assert.Equal(t, 0, other.invoked)
}

func TestSessionTooManySequences(t *testing.T) {
	spawn := &funcStep{invoke: func(s *Session) error {
		return s.StartSequence("child")
	}}
	child := &gateStep{}
	sc := mustScenario([]*Sequence{
		{Name: "main", Steps: []Step{spawn, spawn, spawn}},
		{Name: "child", Steps: []Step{child}},
	}, "main")
	sc.MaxSequences = 3
	exec := &manualExecutor{}
	phase := newFakePhase()
	s := New(1, sc, exec)

	s.Start(phase)
	exec.drain()

	require.Len(t, phase.failures, 1)
	assert.ErrorIs(t, phase.failures[0], ErrTooManySequences)
	assert.Equal(t, 1, phase.terminated)
}

func TestSessionUnknownSequence(t *testing.T) {
	s := New(1, mustScenario([]*Sequence{{Name: "main"}}, "main"), &manualExecutor{})
	assert.ErrorIs(t, s.StartSequence("nope"), ErrUnknownSequence)
	assert.ErrorIs(t, s.JumpTo("nope"), ErrUnknownSequence)
}

func TestSessionSequenceIndex(t *testing.T) {
	var indexes []int
	record := &funcStep{invoke: func(s *Session) error {
		indexes = append(indexes, s.CurrentSequence().Index())
		return nil
	}}
	spawn := &funcStep{invoke: func(s *Session) error {
		if err := s.StartSequence("child"); err != nil {
			return err
		}
		return s.StartSequence("child")
	}}
	sc := mustScenario([]*Sequence{
		{Name: "main", Steps: []Step{spawn}},
		{Name: "child", Steps: []Step{record}},
	}, "main")
	exec := &manualExecutor{}
	s := New(1, sc, exec)
	s.Start(newFakePhase())
	exec.drain()

	assert.ElementsMatch(t, []int{0, 1}, indexes)
}
