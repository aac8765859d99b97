package steps

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/loadphase/internal/config"
	"github.com/wesleyorama2/loadphase/internal/loop"
	"github.com/wesleyorama2/loadphase/internal/metrics"
	"github.com/wesleyorama2/loadphase/internal/session"
)

type outcome struct {
	session    *session.Session
	terminated bool
}

type testPhase struct {
	stats       *metrics.Statistics
	terminating atomic.Bool
	done        chan outcome

	mu       sync.Mutex
	failures []error
}

func newTestPhase() *testPhase {
	return &testPhase{
		stats: metrics.NewStatistics(time.Now()),
		done:  make(chan outcome, 4),
	}
}

func (p *testPhase) Name() string                            { return "test" }
func (p *testPhase) Terminating() bool                       { return p.terminating.Load() }
func (p *testPhase) NotifyFinished(s *session.Session)       { p.done <- outcome{s, false} }
func (p *testPhase) NotifyTerminated(s *session.Session)     { p.done <- outcome{s, true} }
func (p *testPhase) Statistics(int, int) *metrics.Statistics { return p.stats }
func (p *testPhase) SessionFailed(_ *session.Session, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, err)
}

func (p *testPhase) errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.failures...)
}

func (p *testPhase) snapshot() *metrics.Snapshot {
	return p.stats.Snapshot(time.Now())
}

type harness struct {
	t       *testing.T
	loop    *loop.Loop
	phase   *testPhase
	session *session.Session
}

func newHarness(t *testing.T, env *Env, cfg *config.ScenarioConfig) *harness {
	t.Helper()
	if env == nil {
		env = &Env{Logger: zerolog.Nop()}
	}

	l := loop.New(0, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Shutdown(ctx)
	})

	sc, err := NewBuilder(env).Scenario("test", cfg)
	require.NoError(t, err)

	ids := 0
	pool := session.NewPool(sc, []session.Executor{l}, func() int { ids++; return ids })
	require.NoError(t, pool.Reserve(1))
	s, err := pool.Acquire()
	require.NoError(t, err)

	return &harness{t: t, loop: l, phase: newTestPhase(), session: s}
}

// run starts the session and waits for it to complete.
func (h *harness) run() outcome {
	h.t.Helper()
	h.session.Start(h.phase)
	select {
	case o := <-h.phase.done:
		return o
	case <-time.After(5 * time.Second):
		h.t.Fatal("session did not complete")
		return outcome{}
	}
}

// onLoop runs f on the session's executor and waits for it.
func (h *harness) onLoop(f func(s *session.Session)) {
	h.t.Helper()
	done := make(chan struct{})
	h.loop.Submit(loop.TaskFunc(func() {
		f(h.session)
		close(done)
	}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		h.t.Fatal("executor did not run task")
	}
}

func (h *harness) intVar(name string) (int, error) {
	var (
		v   int
		err error
	)
	h.onLoop(func(s *session.Session) { v, err = s.GetInt(name) })
	return v, err
}

func (h *harness) objectVar(name string) (any, error) {
	var (
		v   any
		err error
	)
	h.onLoop(func(s *session.Session) { v, err = s.GetObject(name) })
	return v, err
}

func seq(name string, steps ...*config.StepConfig) *config.SequenceConfig {
	return &config.SequenceConfig{Name: name, Steps: steps}
}

func scenario(initial []string, seqs ...*config.SequenceConfig) *config.ScenarioConfig {
	return &config.ScenarioConfig{InitialSequences: initial, Sequences: seqs}
}

func setInt(name string, v int) *config.StepConfig {
	return &config.StepConfig{SetInt: &config.SetIntStep{Var: name, Value: v}}
}
