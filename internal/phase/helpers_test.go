package phase

import (
	"sync"
	"time"

	"github.com/wesleyorama2/loadphase/internal/loop"
	"github.com/wesleyorama2/loadphase/internal/session"
)

// manualExecutor queues tasks and timers until the test runs them.
type manualExecutor struct {
	mu     sync.Mutex
	tasks  []loop.Task
	timers []timer
}

type timer struct {
	task  loop.Task
	delay time.Duration
}

func (e *manualExecutor) ID() int { return 0 }

func (e *manualExecutor) Submit(task loop.Task) {
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()
}

func (e *manualExecutor) Schedule(task loop.Task, delay time.Duration) {
	e.mu.Lock()
	e.timers = append(e.timers, timer{task, delay})
	e.mu.Unlock()
}

func (e *manualExecutor) runOne() bool {
	e.mu.Lock()
	if len(e.tasks) == 0 {
		e.mu.Unlock()
		return false
	}
	t := e.tasks[0]
	e.tasks = e.tasks[1:]
	e.mu.Unlock()
	t.Run()
	return true
}

func (e *manualExecutor) drain() {
	for e.runOne() {
	}
}

func (e *manualExecutor) pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// popTimer removes the oldest timer.
func (e *manualExecutor) popTimer() (timer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.timers) == 0 {
		return timer{}, false
	}
	t := e.timers[0]
	e.timers = e.timers[1:]
	return t, true
}

type countStep struct {
	mu      sync.Mutex
	invoked int
}

func (c *countStep) Prepare(*session.Session) (bool, error) { return true, nil }
func (c *countStep) Invoke(*session.Session) error {
	c.mu.Lock()
	c.invoked++
	c.mu.Unlock()
	return nil
}

func (c *countStep) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invoked
}

type failStep struct{ err error }

func (f failStep) Prepare(*session.Session) (bool, error) { return true, nil }
func (f failStep) Invoke(*session.Session) error          { return f.err }

// fakeClock is advanced by tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fixture struct {
	phase    *Phase
	pool     *session.Pool
	sessions *manualExecutor
	phaseExe *manualExecutor
	clock    *fakeClock
	step     *countStep
}

func newFixture(def Definition, steps ...session.Step) *fixture {
	if len(steps) == 0 {
		steps = []session.Step{&countStep{}}
	}
	sc, err := session.NewScenario("scenario", []*session.Sequence{{Name: "main", Steps: steps}}, []string{"main"})
	if err != nil {
		panic(err)
	}
	def.Scenario = sc
	if def.Name == "" {
		def.Name = "test"
	}
	sessions := &manualExecutor{}
	id := 0
	pool := session.NewPool(sc, []session.Executor{sessions}, func() int { id++; return id })
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	p, err := New(def, pool, Options{Clock: clock.Now})
	if err != nil {
		panic(err)
	}
	if err := p.ReserveSessions(); err != nil {
		panic(err)
	}
	f := &fixture{
		phase:    p,
		pool:     pool,
		sessions: sessions,
		phaseExe: &manualExecutor{},
		clock:    clock,
	}
	if c, ok := steps[0].(*countStep); ok {
		f.step = c
	}
	return f
}
