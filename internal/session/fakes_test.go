package session

import (
	"errors"
	"time"

	"github.com/wesleyorama2/loadphase/internal/loop"
	"github.com/wesleyorama2/loadphase/internal/metrics"
)

// manualExecutor queues tasks until drain is called.
type manualExecutor struct {
	id        int
	tasks     []loop.Task
	scheduled []scheduledTask
}

type scheduledTask struct {
	task  loop.Task
	delay time.Duration
}

func (e *manualExecutor) ID() int               { return e.id }
func (e *manualExecutor) Submit(task loop.Task) { e.tasks = append(e.tasks, task) }
func (e *manualExecutor) Schedule(task loop.Task, delay time.Duration) {
	e.scheduled = append(e.scheduled, scheduledTask{task, delay})
}

func (e *manualExecutor) drain() {
	for len(e.tasks) > 0 {
		t := e.tasks[0]
		e.tasks = e.tasks[1:]
		t.Run()
	}
}

func (e *manualExecutor) fireTimers() {
	timers := e.scheduled
	e.scheduled = nil
	for _, st := range timers {
		e.Submit(st.task)
	}
	e.drain()
}

type fakePhase struct {
	terminating bool
	finished    int
	terminated  int
	failures    []error
	stats       *metrics.Statistics
	onFinished  func(s *Session)
}

func newFakePhase() *fakePhase {
	return &fakePhase{stats: metrics.NewStatistics(time.Now())}
}

func (p *fakePhase) Name() string      { return "test" }
func (p *fakePhase) Terminating() bool { return p.terminating }
func (p *fakePhase) NotifyFinished(s *Session) {
	p.finished++
	if p.onFinished != nil {
		p.onFinished(s)
	}
}
func (p *fakePhase) NotifyTerminated(*Session)           { p.terminated++ }
func (p *fakePhase) SessionFailed(_ *Session, err error) { p.failures = append(p.failures, err) }
func (p *fakePhase) Statistics(int, int) *metrics.Statistics {
	return p.stats
}

// funcStep adapts closures to Step.
type funcStep struct {
	prepare func(*Session) (bool, error)
	invoke  func(*Session) error
}

func (f *funcStep) Prepare(s *Session) (bool, error) {
	if f.prepare == nil {
		return true, nil
	}
	return f.prepare(s)
}

func (f *funcStep) Invoke(s *Session) error {
	if f.invoke == nil {
		return nil
	}
	return f.invoke(s)
}

// gateStep is not ready until open is set.
type gateStep struct {
	open    bool
	invoked int
}

func (g *gateStep) Prepare(*Session) (bool, error) { return g.open, nil }
func (g *gateStep) Invoke(*Session) error {
	g.invoked++
	return nil
}

// countStep counts invocations.
type countStep struct{ invoked int }

func (c *countStep) Prepare(*Session) (bool, error) { return true, nil }
func (c *countStep) Invoke(*Session) error {
	c.invoked++
	return nil
}

var errBoom = errors.New("boom")

func mustScenario(seqs []*Sequence, initial ...string) *Scenario {
	sc, err := NewScenario("test", seqs, initial)
	if err != nil {
		panic(err)
	}
	return sc
}
