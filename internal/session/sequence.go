package session

import (
	"fmt"
)

// Sequence is an immutable template of steps.
type Sequence struct {
	Name string
	// ID is the index of the sequence within its Scenario. Statistics are
	// routed by it.
	ID    int
	Steps []Step
}

// Scenario is the set of sequences a session can execute.
type Scenario struct {
	Name string
	// Initial sequences are started whenever a session starts.
	Initial   []*Sequence
	Sequences []*Sequence
	// IntVars and ObjectVars are declared on every session.
	IntVars    []string
	ObjectVars []string
	// MaxSequences bounds the number of concurrently running sequence
	// instances per session.
	MaxSequences int

	byName map[string]*Sequence
}

// DefaultMaxSequences is used when a Scenario does not set MaxSequences.
const DefaultMaxSequences = 16

// NewScenario indexes sequences by name and assigns their IDs. initial names
// the sequences started with every session.
func NewScenario(name string, sequences []*Sequence, initial []string) (*Scenario, error) {
	sc := &Scenario{
		Name:         name,
		Sequences:    sequences,
		MaxSequences: DefaultMaxSequences,
		byName:       make(map[string]*Sequence, len(sequences)),
	}
	for i, seq := range sequences {
		if _, dup := sc.byName[seq.Name]; dup {
			return nil, fmt.Errorf("scenario %s: duplicate sequence %q", name, seq.Name)
		}
		seq.ID = i
		sc.byName[seq.Name] = seq
	}
	if len(initial) == 0 {
		return nil, fmt.Errorf("scenario %s: no initial sequences", name)
	}
	for _, n := range initial {
		seq, ok := sc.byName[n]
		if !ok {
			return nil, fmt.Errorf("scenario %s: unknown initial sequence %q", name, n)
		}
		sc.Initial = append(sc.Initial, seq)
	}
	return sc, nil
}

// Sequence returns the template with the given name, or nil.
func (sc *Scenario) Sequence(name string) *Sequence {
	return sc.byName[name]
}

// SequenceInstance is a resumable cursor over the steps of a Sequence.
type SequenceInstance struct {
	name        string
	sourceID    int
	index       int
	steps       []Step
	currentStep int
}

// Reset reinitializes the instance for a new execution.
func (i *SequenceInstance) Reset(name string, sourceID, index int, steps []Step) *SequenceInstance {
	i.name = name
	i.sourceID = sourceID
	i.index = index
	i.steps = steps
	i.currentStep = 0
	return i
}

// Name returns the sequence name.
func (i *SequenceInstance) Name() string { return i.name }

// SourceID returns the ID of the Sequence template.
func (i *SequenceInstance) SourceID() int { return i.sourceID }

// Index returns the concurrency slot of this instance among instances of the
// same template running in the session.
func (i *SequenceInstance) Index() int { return i.index }

// CurrentStep returns the cursor position.
func (i *SequenceInstance) CurrentStep() int { return i.currentStep }

// IsCompleted reports whether every step was executed.
func (i *SequenceInstance) IsCompleted() bool {
	return i.currentStep >= len(i.steps)
}

// Progress executes steps until one is not ready or the sequence completes.
// It returns true if at least one step was invoked during this call. A
// failing step fails the session and Progress returns false.
func (i *SequenceInstance) Progress(s *Session) bool {
	progressed := false
	for i.currentStep < len(i.steps) {
		step := i.steps[i.currentStep]

		ready, err := prepareStep(step, s)
		if err != nil {
			s.Fail(fmt.Errorf("sequence %s, step %d: %w", i.name, i.currentStep, err))
			return false
		}
		if !ready {
			return progressed
		}
		if err := invokeStep(step, s); err != nil {
			s.Fail(fmt.Errorf("sequence %s, step %d: %w", i.name, i.currentStep, err))
			return false
		}

		if s.CurrentSequence() == i {
			i.currentStep++
		} else {
			// the step redirected control flow
			i.currentStep = len(i.steps)
		}
		progressed = true
	}
	return progressed
}

// StepPanicError wraps a value recovered from a panicking step.
type StepPanicError struct {
	Value any
}

func (e *StepPanicError) Error() string {
	return fmt.Sprintf("step panicked: %v", e.Value)
}

func prepareStep(step Step, s *Session) (ready bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ready, err = false, &StepPanicError{Value: r}
		}
	}()
	return step.Prepare(s)
}

func invokeStep(step Step, s *Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StepPanicError{Value: r}
		}
	}()
	return step.Invoke(s)
}
