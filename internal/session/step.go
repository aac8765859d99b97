// Package session implements the per virtual user execution state and the
// cooperative step interpreter that drives it.
//
// A Session is pinned to one Executor (event loop) for its whole life. All
// of its state, including variables, running sequences and resources, is
// only touched from tasks running on that executor, so none of it is locked.
package session

import (
	"time"

	"github.com/wesleyorama2/loadphase/internal/loop"
)

// Step is a unit of work executed within a Session.
//
// Prepare is a non-blocking readiness check. Returning false suspends the
// sequence; the same step is asked again the next time the session runs.
// Invoke performs the step's side effect. Errors from either abandon the
// session through Session.Fail.
type Step interface {
	Prepare(s *Session) (bool, error)
	Invoke(s *Session) error
}

// ResourceReserver is implemented by steps that need session variables or
// resources. Reserve is called once for every allocated Session, before it
// is first started.
type ResourceReserver interface {
	Reserve(s *Session) error
}

// Executor runs tasks on a single goroutine.
type Executor interface {
	ID() int
	Submit(task loop.Task)
	Schedule(task loop.Task, delay time.Duration)
}
