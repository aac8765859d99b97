package session

import (
	"fmt"
	"sync/atomic"

	"github.com/wesleyorama2/loadphase/internal/loop"
	"github.com/wesleyorama2/loadphase/internal/metrics"
)

// PhaseHandle is the view a Session has of the phase that admitted it.
type PhaseHandle interface {
	Name() string
	// Terminating reports whether the phase is TERMINATING or later.
	Terminating() bool
	// NotifyFinished is called exactly once when the session completed all
	// of its sequences.
	NotifyFinished(s *Session)
	// NotifyTerminated is called exactly once when the session was stopped
	// by phase termination or failed.
	NotifyTerminated(s *Session)
	// SessionFailed is called before NotifyTerminated for a failed session.
	SessionFailed(s *Session, err error)
	// Statistics returns the statistics of a sequence on an executor.
	Statistics(executorID, sequenceID int) *metrics.Statistics
}

// Resetter is implemented by resources that must be cleared between
// executions of a session.
type Resetter interface {
	Reset()
}

type intVar struct {
	set   bool
	value int
}

type objectVar struct {
	set   bool
	value any
}

// Session carries the execution state of one virtual user.
type Session struct {
	id       int
	scenario *Scenario
	executor Executor
	phase    PhaseHandle

	intIndex    map[string]int
	intVars     []intVar
	objectIndex map[string]int
	objectVars  []objectVar
	resources   map[string]any
	resetters   []Resetter

	running   []*SequenceInstance
	free      []*SequenceInstance
	allocated int
	current   *SequenceInstance

	generation uint64
	sealed     bool
	active     bool
	inRun      bool
	failure    error

	scheduled atomic.Bool
	runTask   loop.Task
	startTask loop.Task
}

// New creates a session bound to executor and declares the scenario's
// variables.
func New(id int, scenario *Scenario, executor Executor) *Session {
	s := &Session{
		id:          id,
		scenario:    scenario,
		executor:    executor,
		intIndex:    make(map[string]int),
		objectIndex: make(map[string]int),
		resources:   make(map[string]any),
	}
	s.runTask = loop.TaskFunc(s.runScheduled)
	s.startTask = loop.TaskFunc(s.start)
	for _, name := range scenario.IntVars {
		_ = s.DeclareInt(name)
	}
	for _, name := range scenario.ObjectVars {
		_ = s.DeclareObject(name)
	}
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() int { return s.id }

// Executor returns the executor the session is pinned to.
func (s *Session) Executor() Executor { return s.executor }

// Scenario returns the scenario the session executes.
func (s *Session) Scenario() *Scenario { return s.scenario }

// Phase returns the phase that currently owns the session.
func (s *Session) Phase() PhaseHandle { return s.phase }

// Generation identifies the current execution. It changes every time the
// session is restarted, so asynchronous callbacks can detect that the
// execution they belong to is gone.
func (s *Session) Generation() uint64 { return s.generation }

// IsActive reports whether the session is executing.
func (s *Session) IsActive() bool { return s.active }

// Err returns the error that failed the current execution, if any.
func (s *Session) Err() error { return s.failure }

// CurrentSequence returns the instance whose step is executing.
func (s *Session) CurrentSequence() *SequenceInstance { return s.current }

// SetCurrentSequence changes the current instance. Steps use it to redirect
// control flow; setting anything other than the executing instance ends that
// instance after the step.
func (s *Session) SetCurrentSequence(seq *SequenceInstance) { s.current = seq }

// Statistics returns the statistics for the sequence currently executing.
func (s *Session) Statistics() *metrics.Statistics {
	if s.current == nil || s.phase == nil {
		return nil
	}
	return s.phase.Statistics(s.executor.ID(), s.current.sourceID)
}

// Start begins a new execution on behalf of phase. It may be called from any
// goroutine; the execution happens on the session's executor.
func (s *Session) Start(phase PhaseHandle) {
	s.phase = phase
	s.executor.Submit(s.startTask)
}

// Proceed schedules a run of the session on its executor. Multiple calls
// before the run happens are coalesced.
func (s *Session) Proceed() {
	if s.scheduled.CompareAndSwap(false, true) {
		s.executor.Submit(s.runTask)
	}
}

func (s *Session) runScheduled() {
	s.scheduled.Store(false)
	s.Run()
}

func (s *Session) start() {
	s.reset()
	s.sealed = true
	s.active = true
	for _, seq := range s.scenario.Initial {
		if err := s.startSequence(seq); err != nil {
			s.Fail(err)
			return
		}
	}
	s.Run()
}

// Run progresses every running sequence until none can make progress. It
// must be called on the session's executor.
func (s *Session) Run() {
	if !s.active {
		return
	}
	s.inRun = true
	for {
		if s.phase.Terminating() {
			s.stopSequences()
			s.inRun = false
			s.complete(true)
			return
		}
		progressed := false
		for i := 0; i < len(s.running); {
			inst := s.running[i]
			s.current = inst
			if inst.Progress(s) {
				progressed = true
			}
			s.current = nil
			if s.failure != nil {
				break
			}
			if i < len(s.running) && s.running[i] == inst {
				if inst.IsCompleted() {
					s.removeRunning(i)
					continue
				}
				i++
			}
		}
		if s.failure != nil || !progressed || len(s.running) == 0 {
			break
		}
	}
	s.inRun = false

	switch {
	case s.failure != nil:
		s.complete(true)
	case len(s.running) == 0:
		s.complete(false)
	}
}

// complete hands the session back to its phase. Nothing may touch the
// session after the notification, the phase may restart or release it.
func (s *Session) complete(terminated bool) {
	s.active = false
	s.current = nil
	phase := s.phase
	if terminated {
		phase.NotifyTerminated(s)
	} else {
		phase.NotifyFinished(s)
	}
}

// Fail abandons the current execution. The phase is told through
// SessionFailed and then NotifyTerminated.
func (s *Session) Fail(err error) {
	if !s.active || s.failure != nil {
		return
	}
	s.failure = err
	s.stopSequences()
	if st := s.Statistics(); st != nil {
		st.AddInternalError()
	}
	s.phase.SessionFailed(s, err)
	if !s.inRun {
		s.complete(true)
	}
}

// Stop ends every running sequence. The session finishes normally once the
// current step returns.
func (s *Session) Stop() {
	s.stopSequences()
	s.current = nil
}

func (s *Session) stopSequences() {
	for i, inst := range s.running {
		s.free = append(s.free, inst)
		s.running[i] = nil
	}
	s.running = s.running[:0]
}

func (s *Session) removeRunning(i int) {
	inst := s.running[i]
	last := len(s.running) - 1
	s.running[i] = s.running[last]
	s.running[last] = nil
	s.running = s.running[:last]
	s.free = append(s.free, inst)
}

// StartSequence starts a new instance of the named sequence alongside the
// running ones.
func (s *Session) StartSequence(name string) error {
	seq := s.scenario.Sequence(name)
	if seq == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSequence, name)
	}
	return s.startSequence(seq)
}

// JumpTo starts the named sequence and ends the current one once the
// executing step returns.
func (s *Session) JumpTo(name string) error {
	if err := s.StartSequence(name); err != nil {
		return err
	}
	s.current = nil
	return nil
}

// EndSequence ends the current sequence once the executing step returns.
func (s *Session) EndSequence() {
	s.current = nil
}

func (s *Session) startSequence(seq *Sequence) error {
	var inst *SequenceInstance
	if n := len(s.free); n > 0 {
		inst = s.free[n-1]
		s.free[n-1] = nil
		s.free = s.free[:n-1]
	} else {
		limit := s.scenario.MaxSequences
		if limit <= 0 {
			limit = DefaultMaxSequences
		}
		if s.allocated >= limit {
			return fmt.Errorf("%w: limit %d", ErrTooManySequences, limit)
		}
		inst = &SequenceInstance{}
		s.allocated++
	}
	s.running = append(s.running, inst.Reset(seq.Name, seq.ID, s.freeIndex(seq.ID), seq.Steps))
	return nil
}

// freeIndex returns the lowest index not held by a running instance of
// the sequence.
func (s *Session) freeIndex(sourceID int) int {
	index := 0
	for {
		taken := false
		for _, r := range s.running {
			if r.sourceID == sourceID && r.index == index {
				taken = true
				break
			}
		}
		if !taken {
			return index
		}
		index++
	}
}

// RunningSequences returns the number of sequence instances in flight.
func (s *Session) RunningSequences() int {
	return len(s.running)
}

func (s *Session) reset() {
	s.generation++
	s.failure = nil
	s.current = nil
	s.stopSequences()
	for i := range s.intVars {
		s.intVars[i] = intVar{}
	}
	for i := range s.objectVars {
		s.objectVars[i] = objectVar{}
	}
	for _, r := range s.resetters {
		r.Reset()
	}
}

// String implements fmt.Stringer.
func (s *Session) String() string {
	return fmt.Sprintf("#%d", s.id)
}
