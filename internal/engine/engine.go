// Package engine builds the runtime objects of a benchmark and drives its
// phases from start to termination.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/loadphase/internal/config"
	lphttp "github.com/wesleyorama2/loadphase/internal/http"
	"github.com/wesleyorama2/loadphase/internal/loop"
	"github.com/wesleyorama2/loadphase/internal/metrics"
	"github.com/wesleyorama2/loadphase/internal/phase"
	"github.com/wesleyorama2/loadphase/internal/session"
	"github.com/wesleyorama2/loadphase/internal/steps"
)

var (
	// ErrAlreadyRun is returned when Run is called more than once.
	ErrAlreadyRun = errors.New("engine already ran")
)

// maxWait bounds how long the driver sleeps between checks.
const maxWait = time.Second

// Option configures an Engine.
type Option func(*options)

type options struct {
	threads         int
	registerer      prometheus.Registerer
	logger          zerolog.Logger
	shutdownTimeout time.Duration
	progress        func(*Progress)
}

// WithThreads overrides the number of event loops.
func WithThreads(n int) Option {
	return func(o *options) { o.threads = n }
}

// WithRegisterer registers the engine's instruments with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithShutdownTimeout bounds how long event loops are drained after the
// run.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) { o.shutdownTimeout = d }
}

// WithProgress registers fn to receive the statistics of every closed
// interval. fn runs on the statistics goroutine and must not block.
func WithProgress(fn func(*Progress)) Option {
	return func(o *options) { o.progress = fn }
}

// slaCheck tracks the SLA of one sequence of one phase.
type slaCheck struct {
	sequence int
	window   *metrics.Window
	periodic bool
	failed   bool
}

type phaseRun struct {
	phase  *phase.Phase
	pool   *session.Pool
	slas   []*slaCheck
	closed bool
}

// Engine runs one benchmark. It is not reusable.
type Engine struct {
	cfg         *config.Benchmark
	runID       uuid.UUID
	log         zerolog.Logger
	opts        options
	loops       *loop.Group
	client      *lphttp.Client
	instruments *metrics.Instruments
	coordinator *phase.Coordinator

	runs   []*phaseRun
	byName map[string]*phaseRun

	requestCtx    context.Context
	cancelRequest context.CancelFunc

	ran     atomic.Bool
	fatal   atomic.Pointer[error]
	wakeups atomic.Int64 // driver loop iterations

	mu          sync.Mutex
	slaFailures []*metrics.SLAFailure
}

// New validates cfg and builds every scenario, pool and phase. Sessions are
// reserved here, before any phase can start.
func New(cfg *config.Benchmark, opts ...Option) (*Engine, error) {
	o := options{
		registerer:      prometheus.NewRegistry(),
		logger:          zerolog.Nop(),
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	threads := o.threads
	if threads <= 0 {
		threads = cfg.Threads
	}
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}

	runID := uuid.New()
	e := &Engine{
		cfg:         cfg,
		runID:       runID,
		log:         o.logger.With().Str("run", runID.String()).Logger(),
		opts:        o,
		instruments: metrics.NewInstruments(o.registerer),
		coordinator: phase.NewCoordinator(),
		byName:      make(map[string]*phaseRun, len(cfg.Phases)),
	}
	e.requestCtx, e.cancelRequest = context.WithCancel(context.Background())

	client, err := lphttp.NewClient(lphttp.Config{
		BaseURL:             cfg.HTTP.BaseURL,
		Timeout:             cfg.HTTP.Timeout.Std(),
		MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.HTTP.MaxConnsPerHost,
		DisableKeepAlives:   cfg.HTTP.DisableKeepAlives,
		InsecureSkipVerify:  cfg.HTTP.InsecureSkipVerify,
		Headers:             cfg.HTTP.Headers,
	})
	if err != nil {
		e.cancelRequest()
		return nil, err
	}
	e.client = client

	e.loops = loop.NewGroup(threads, e.log.With().Str("component", "loop").Logger())
	if err := e.build(); err != nil {
		e.shutdown()
		return nil, err
	}
	return e, nil
}

func (e *Engine) build() error {
	builder := steps.NewBuilder(&steps.Env{
		Context:     e.requestCtx,
		Client:      e.client,
		Instruments: e.instruments,
		Logger:      e.log.With().Str("component", "steps").Logger(),
	})

	executors := make([]session.Executor, e.loops.Size())
	for i := range executors {
		executors[i] = e.loops.Get(i)
	}

	var ids atomic.Int64
	nextID := func() int { return int(ids.Add(1)) }

	scenarios := make(map[string]*session.Scenario)
	pools := make(map[string]*session.Pool)
	for _, name := range e.cfg.SortedPhaseNames() {
		pc := e.cfg.Phases[name]
		sc, ok := scenarios[pc.Scenario]
		if !ok {
			var err error
			if sc, err = builder.Scenario(pc.Scenario, e.cfg.Scenarios[pc.Scenario]); err != nil {
				return err
			}
			scenarios[pc.Scenario] = sc
			pools[pc.Scenario] = session.NewPool(sc, executors, nextID)
		}

		model, err := pc.Model()
		if err != nil {
			return fmt.Errorf("phase %s: %w", name, err)
		}
		run := &phaseRun{pool: pools[pc.Scenario]}
		p, err := phase.New(phase.Definition{
			Name:             name,
			Scenario:         sc,
			Model:            model,
			StartTime:        pc.StartTime.Std(),
			StartAfter:       pc.StartAfter,
			StartAfterStrict: pc.StartAfterStrict,
			Duration:         pc.Duration.Std(),
			MaxDuration:      pc.MaxDurationOrNone(),
			FailFast:         e.cfg.FailFast,
		}, run.pool, phase.Options{
			Logger:      e.log.With().Str("component", "phase").Logger(),
			Instruments: e.instruments,
			Coordinator: e.coordinator,
			Executors:   e.loops.Size(),
			OnStatus:    e.statusChanged,
		})
		if err != nil {
			return err
		}
		run.phase = p

		for i, seqCfg := range e.cfg.Scenarios[pc.Scenario].Sequences {
			if sla := steps.SLA(seqCfg.SLA); sla != nil {
				run.slas = append(run.slas, &slaCheck{
					sequence: i,
					window:   metrics.NewWindow(sla),
					periodic: sla.Window > 0,
				})
			}
		}

		e.runs = append(e.runs, run)
		e.byName[name] = run
	}

	for _, run := range e.runs {
		if err := run.phase.ReserveSessions(); err != nil {
			return fmt.Errorf("phase %s: %w", run.phase.Name(), err)
		}
	}
	return nil
}

// RunID identifies this run.
func (e *Engine) RunID() string { return e.runID.String() }

// Phase returns the named phase, or nil.
func (e *Engine) Phase(name string) *phase.Phase {
	if run, ok := e.byName[name]; ok {
		return run.phase
	}
	return nil
}

// statusChanged wakes sessions of terminating phases so they notice, and
// escalates pool exhaustion to the whole run.
func (e *Engine) statusChanged(p *phase.Phase, status phase.Status) {
	if status != phase.StatusTerminating {
		return
	}
	if run, ok := e.byName[p.Name()]; ok {
		run.pool.Proceed()
	}
	if err := p.Err(); errors.Is(err, session.ErrPoolExhausted) {
		if e.fatal.CompareAndSwap(nil, &err) {
			e.log.Error().Err(err).Str("phase", p.Name()).Msg("session pool exhausted, stopping run")
			e.Stop()
		}
	}
}

// Stop terminates every phase. Run returns once all of them terminated.
func (e *Engine) Stop() {
	for _, run := range e.runs {
		run.phase.Terminate()
	}
}

// Run drives the phases until all of them terminated and returns the
// report. Canceling ctx terminates every phase; the report is still
// returned together with the context's error.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if !e.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	defer e.shutdown()

	start := time.Now()
	e.log.Info().Str("benchmark", e.cfg.Name).Int("phases", len(e.runs)).Int("threads", e.loops.Size()).Msg("run started")

	driverDone := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(driverDone)
		return e.drive(ctx, start)
	})
	g.Go(func() error {
		e.checkSLAs(driverDone, start)
		return nil
	})
	runErr := g.Wait()

	end := time.Now()
	report := e.report(start, end)
	e.log.Info().Dur("duration", end.Sub(start)).Bool("failed", report.Failed()).Msg("run finished")

	if fatal := e.fatal.Load(); fatal != nil {
		return report, *fatal
	}
	if runErr != nil {
		return report, runErr
	}
	return report, ctx.Err()
}

// drive is the phase driver loop: start eligible phases, finish them after
// their duration, terminate them after their max duration, and sleep until
// the next event or a status change.
func (e *Engine) drive(ctx context.Context, start time.Time) error {
	stopped := false
	for {
		e.wakeups.Add(1)
		changed := e.coordinator.Changed()
		if !stopped && ctx.Err() != nil {
			stopped = true
			e.log.Warn().Msg("run canceled, terminating phases")
			e.Stop()
		}

		now := time.Now()
		for _, run := range e.runs {
			p := run.phase
			def := p.Definition()
			if p.Status() == phase.StatusRunning && !now.Before(p.AbsoluteStartTime().Add(def.Duration)) {
				p.Finish()
			}
			if st := p.Status(); (st == phase.StatusRunning || st == phase.StatusFinished) &&
				def.HasMaxDuration() && !now.Before(p.AbsoluteStartTime().Add(def.MaxDuration)) {
				e.log.Debug().Str("phase", p.Name()).Msg("max duration exceeded")
				p.Terminate()
			}
		}

		for _, run := range e.runs {
			if e.eligible(run.phase, start, now) {
				if err := run.phase.Start(e.loops.Next()); err != nil {
					e.log.Error().Err(err).Str("phase", run.phase.Name()).Msg("cannot start phase")
				}
			}
		}

		if e.allTerminated() {
			return nil
		}

		delay := e.nextEvent(start, now).Sub(time.Now())
		if delay > maxWait {
			delay = maxWait
		}
		if delay <= 0 {
			continue
		}
		waitCtx := ctx
		if stopped {
			waitCtx = context.Background()
		}
		e.coordinator.Wait(waitCtx, changed, delay)
	}
}

func (e *Engine) eligible(p *phase.Phase, start, now time.Time) bool {
	def := p.Definition()
	if p.Status() != phase.StatusNotStarted || now.Before(start.Add(def.StartTime)) {
		return false
	}
	for _, dep := range def.StartAfter {
		if !e.byName[dep].phase.Status().IsFinished() {
			return false
		}
	}
	for _, dep := range def.StartAfterStrict {
		if !e.byName[dep].phase.Status().IsTerminated() {
			return false
		}
	}
	return true
}

// nextEvent returns the earliest future start, or the earliest finish or
// forced termination. Without any, it returns now plus maxWait.
func (e *Engine) nextEvent(start, now time.Time) time.Time {
	next := now.Add(maxWait)
	earlier := func(t time.Time) {
		if t.Before(next) {
			next = t
		}
	}
	for _, run := range e.runs {
		p := run.phase
		def := p.Definition()
		switch st := p.Status(); {
		case st == phase.StatusNotStarted && def.StartTime >= 0:
			// A start time already passed means the phase waits on its
			// dependencies, whose status changes signal the coordinator.
			if t := start.Add(def.StartTime); t.After(now) {
				earlier(t)
			}
		case st == phase.StatusRunning:
			earlier(p.AbsoluteStartTime().Add(def.Duration))
		}
		if st := p.Status(); (st == phase.StatusRunning || st == phase.StatusFinished) && def.HasMaxDuration() {
			earlier(p.AbsoluteStartTime().Add(def.MaxDuration))
		}
	}
	return next
}

func (e *Engine) allTerminated() bool {
	for _, run := range e.runs {
		if !run.phase.Status().IsTerminated() {
			return false
		}
	}
	return true
}

// Close releases the resources of an engine that was never run.
func (e *Engine) Close() {
	if e.ran.CompareAndSwap(false, true) {
		e.shutdown()
	}
}

func (e *Engine) shutdown() {
	e.cancelRequest()
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.shutdownTimeout)
	defer cancel()
	if err := e.loops.Shutdown(ctx); err != nil {
		e.log.Warn().Err(err).Msg("event loops did not shut down in time")
	}
	e.client.CloseIdleConnections()
}
