package session

import "errors"

var (
	// ErrVariableUndeclared is returned when accessing a variable that was
	// never declared on the session.
	ErrVariableUndeclared = errors.New("variable not declared")

	// ErrVariableNotSet is returned when reading a declared variable that has
	// no value in the current execution.
	ErrVariableNotSet = errors.New("variable not set")

	// ErrSealed is returned when declaring variables or resources on a
	// session that has already been started.
	ErrSealed = errors.New("session already started, declarations are closed")

	// ErrTooManySequences is returned when starting more concurrent sequence
	// instances than the scenario allows.
	ErrTooManySequences = errors.New("too many concurrent sequences")

	// ErrUnknownSequence is returned when starting a sequence the scenario
	// does not define.
	ErrUnknownSequence = errors.New("unknown sequence")

	// ErrPoolExhausted is returned by Pool.Acquire when no session is
	// available. It indicates a reservation bug and is fatal for the run.
	ErrPoolExhausted = errors.New("session pool exhausted")

	// ErrPoolOverflow is returned when releasing more sessions than were
	// reserved.
	ErrPoolOverflow = errors.New("session pool overflow")
)
