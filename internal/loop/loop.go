// Package loop provides single-goroutine executors ("event loops").
//
// Every task submitted to a Loop runs on that loop's goroutine, in submission
// order, one at a time. Code that owns per-session state pins the session to
// a loop and only touches it from tasks running there, which removes the need
// for locking on the hot path.
package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Task is a unit of work executed on a Loop.
type Task interface {
	Run()
}

// TaskFunc adapts a plain function to the Task interface.
type TaskFunc func()

// Run calls f.
func (f TaskFunc) Run() { f() }

// Loop is a single-goroutine FIFO executor.
type Loop struct {
	id  int
	log zerolog.Logger

	mu     sync.Mutex
	queue  []Task
	spare  []Task
	closed bool
	wake   chan struct{}
	done   chan struct{}

	// Counters for diagnostics
	executed atomic.Uint64
	dropped  atomic.Uint64
	panics   atomic.Uint64
}

// New creates and starts a Loop.
func New(id int, logger zerolog.Logger) *Loop {
	l := &Loop{
		id:    id,
		log:   logger.With().Int("loop", id).Logger(),
		queue: make([]Task, 0, 64),
		spare: make([]Task, 0, 64),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

// ID returns the loop's index within its Group.
func (l *Loop) ID() int {
	return l.id
}

// Submit enqueues task for execution on the loop goroutine. Tasks submitted
// after Shutdown are dropped.
func (l *Loop) Submit(task Task) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.dropped.Add(1)
		return
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Schedule submits task to this loop once delay has elapsed. Negative delays
// are treated as zero.
func (l *Loop) Schedule(task Task, delay time.Duration) {
	if delay <= 0 {
		l.Submit(task)
		return
	}
	time.AfterFunc(delay, func() { l.Submit(task) })
}

// Executed returns the number of tasks run so far.
func (l *Loop) Executed() uint64 {
	return l.executed.Load()
}

// Dropped returns the number of tasks rejected after shutdown.
func (l *Loop) Dropped() uint64 {
	return l.dropped.Load()
}

// Shutdown stops accepting tasks, runs what is already queued and waits for
// the loop goroutine to exit or ctx to expire.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = l.spare[:0]
		closed := l.closed
		l.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				return
			}
			<-l.wake
			l.spare = batch
			continue
		}

		for i, task := range batch {
			l.execute(task)
			batch[i] = nil
		}
		l.spare = batch[:0]
	}
}

func (l *Loop) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.log.Error().Interface("panic", r).Msg("task panicked")
		}
	}()
	task.Run()
	l.executed.Add(1)
}
