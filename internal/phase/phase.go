// Package phase implements the lifecycle and admission control of a load
// phase: when sessions are started, how many run at once and when the phase
// is over.
package phase

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wesleyorama2/loadphase/internal/loop"
	"github.com/wesleyorama2/loadphase/internal/metrics"
	"github.com/wesleyorama2/loadphase/internal/session"
)

// ErrAlreadyStarted is returned by Start on a phase that is not NOT_STARTED.
var ErrAlreadyStarted = errors.New("phase already started")

// Definition is the immutable description of a phase.
type Definition struct {
	Name     string
	Scenario *session.Scenario
	Model    ModelConfig

	// StartTime is the offset from the start of the run. A negative value
	// starts the phase as soon as its dependencies allow.
	StartTime time.Duration

	// StartAfter phases must be FINISHED, StartAfterStrict phases
	// TERMINATED, before this phase starts.
	StartAfter       []string
	StartAfterStrict []string

	// Duration is the admission window. MaxDuration, when not negative,
	// terminates the phase that long after it started.
	Duration    time.Duration
	MaxDuration time.Duration

	// FailFast fails the whole phase when one of its sessions fails.
	FailFast bool
}

// HasMaxDuration reports whether the phase is forcibly terminated.
func (d *Definition) HasMaxDuration() bool {
	return d.MaxDuration >= 0
}

// SessionPool is the source of sessions for a phase.
type SessionPool interface {
	Reserve(n int) error
	Acquire() (*session.Session, error)
	Release(s *session.Session) error
}

// Options configures a Phase.
type Options struct {
	// Clock defaults to time.Now.
	Clock func() time.Time

	Logger zerolog.Logger

	// Instruments are optional.
	Instruments *metrics.Instruments

	// Coordinator is signalled on every status change. Optional.
	Coordinator *Coordinator

	// Executors is the number of executors sessions may run on. Statistics
	// are kept per executor.
	Executors int

	// OnStatus is called after every status change. Optional.
	OnStatus func(p *Phase, status Status)
}

// Phase admits sessions according to its Model and tracks them until all
// are done.
//
// The status and the active session counter are the only state shared
// between goroutines; both are atomics. The counter is sealed to a negative
// value when the phase terminates so that late admissions fail.
type Phase struct {
	def   Definition
	model Model
	pool  SessionPool

	clock       func() time.Time
	log         zerolog.Logger
	instruments *metrics.Instruments
	coordinator *Coordinator
	onStatus    func(*Phase, Status)

	executor session.Executor

	status         atomic.Int32
	activeSessions atomic.Int32
	startNanos     atomic.Int64
	endNanos       atomic.Int64

	// [executor][sequence]
	stats [][]*metrics.Statistics

	errMu sync.Mutex
	err   error
}

// New creates a phase in NOT_STARTED state.
func New(def Definition, pool SessionPool, opts Options) (*Phase, error) {
	if def.Scenario == nil {
		return nil, &ValidationError{Field: "scenario", Message: "phase " + def.Name + " has no scenario"}
	}
	model, err := NewModel(def.Model, def.Duration)
	if err != nil {
		return nil, fmt.Errorf("phase %s: %w", def.Name, err)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Executors < 1 {
		opts.Executors = 1
	}

	p := &Phase{
		def:         def,
		model:       model,
		pool:        pool,
		clock:       opts.Clock,
		log:         opts.Logger.With().Str("phase", def.Name).Logger(),
		instruments: opts.Instruments,
		coordinator: opts.Coordinator,
		onStatus:    opts.OnStatus,
	}

	now := p.clock()
	p.stats = make([][]*metrics.Statistics, opts.Executors)
	for i := range p.stats {
		p.stats[i] = make([]*metrics.Statistics, len(def.Scenario.Sequences))
		for j := range p.stats[i] {
			p.stats[i][j] = metrics.NewStatistics(now)
		}
	}
	return p, nil
}

// Name returns the phase name.
func (p *Phase) Name() string { return p.def.Name }

// Definition returns the phase definition.
func (p *Phase) Definition() *Definition { return &p.def }

// Model returns the scheduling model instance.
func (p *Phase) Model() Model { return p.model }

// Status returns the current status.
func (p *Phase) Status() Status {
	return Status(p.status.Load())
}

// Terminating reports whether the phase is TERMINATING or TERMINATED.
func (p *Phase) Terminating() bool {
	return p.Status() >= StatusTerminating
}

// AbsoluteStartTime returns when the phase started, or the zero time.
func (p *Phase) AbsoluteStartTime() time.Time {
	n := p.startNanos.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// AbsoluteEndTime returns when the phase terminated, or the zero time.
func (p *Phase) AbsoluteEndTime() time.Time {
	n := p.endNanos.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// ActiveSessions returns the number of sessions owned by the phase.
func (p *Phase) ActiveSessions() int {
	n := p.activeSessions.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Err returns the error the phase failed with, if any.
func (p *Phase) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// ReserveSessions reserves the model's sessions in the pool. It must be
// called before any phase sharing the pool starts.
func (p *Phase) ReserveSessions() error {
	return p.pool.Reserve(p.model.Reservation())
}

// Start moves the phase to RUNNING and admits the first sessions. Timers of
// rate based models run on executor.
func (p *Phase) Start(executor session.Executor) error {
	if !p.status.CompareAndSwap(int32(StatusNotStarted), int32(StatusRunning)) {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyStarted, p.def.Name, p.Status())
	}
	p.executor = executor
	p.startNanos.Store(p.clock().UnixNano())
	p.statusChanged(StatusRunning)
	p.model.proceed(p)
	return nil
}

// Finish stops admitting new sessions. It has no effect unless the phase is
// RUNNING.
func (p *Phase) Finish() {
	if !p.status.CompareAndSwap(int32(StatusRunning), int32(StatusFinished)) {
		return
	}
	p.statusChanged(StatusFinished)
	p.tryTerminate()
}

// Terminate moves the phase to TERMINATING; running sessions stop at their
// next run. The phase becomes TERMINATED once no session is active. Calling
// Terminate again has no effect.
func (p *Phase) Terminate() {
	p.advance(StatusTerminating)
	p.tryTerminate()
}

// Fail records err, keeping the first error, and terminates the phase.
func (p *Phase) Fail(err error) {
	p.errMu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.errMu.Unlock()
	p.log.Warn().Err(err).Msg("phase failed")
	p.Terminate()
}

// NotifyFinished is called once per session that completed its sequences.
func (p *Phase) NotifyFinished(s *session.Session) {
	if s != nil && p.model.sessionFinished(p, s) {
		return
	}
	p.sessionDone(s)
}

// NotifyTerminated is called once per session that was stopped or failed.
func (p *Phase) NotifyTerminated(s *session.Session) {
	p.sessionDone(s)
}

// SessionFailed records a failed session. The phase itself only fails when
// its definition asks for it.
func (p *Phase) SessionFailed(s *session.Session, err error) {
	p.log.Debug().Int("session", s.ID()).Err(err).Msg("session failed")
	if p.instruments != nil {
		p.instruments.SessionFailures.WithLabelValues(p.def.Name).Inc()
	}
	if p.def.FailFast {
		p.Fail(fmt.Errorf("session %s: %w", s, err))
	}
}

// Statistics returns the statistics of a sequence on an executor.
func (p *Phase) Statistics(executorID, sequenceID int) *metrics.Statistics {
	return p.stats[executorID][sequenceID]
}

// SequenceSnapshot is the statistics of one sequence merged over all
// executors.
type SequenceSnapshot struct {
	Sequence string
	Snapshot *metrics.Snapshot
}

// Snapshots returns the totals of every sequence.
func (p *Phase) Snapshots(now time.Time) []SequenceSnapshot {
	return p.collect(func(s *metrics.Statistics) *metrics.Snapshot { return s.Snapshot(now) })
}

// MoveIntervalTo closes the statistics interval of every sequence at now.
func (p *Phase) MoveIntervalTo(now time.Time) []SequenceSnapshot {
	return p.collect(func(s *metrics.Statistics) *metrics.Snapshot { return s.MoveIntervalTo(now) })
}

func (p *Phase) collect(take func(*metrics.Statistics) *metrics.Snapshot) []SequenceSnapshot {
	seqs := p.def.Scenario.Sequences
	out := make([]SequenceSnapshot, len(seqs))
	for j, seq := range seqs {
		parts := make([]*metrics.Snapshot, len(p.stats))
		for i := range p.stats {
			parts[i] = take(p.stats[i][j])
		}
		out[j] = SequenceSnapshot{Sequence: seq.Name, Snapshot: metrics.Merge(parts...)}
	}
	return out
}

// admitAll admits n sessions at once. It requires no active sessions.
func (p *Phase) admitAll(n int) bool {
	if !p.activeSessions.CompareAndSwap(0, int32(n)) {
		p.log.Error().Int("active", int(p.activeSessions.Load())).Msg("sessions active before admission")
		return false
	}
	p.setActiveGauge(int32(n))
	for i := 0; i < n; i++ {
		s, err := p.pool.Acquire()
		if err != nil {
			p.acquireFailed(err)
			continue
		}
		p.admitted()
		s.Start(p)
	}
	return true
}

// admitAtRate starts the sessions a rate model requires by now and schedules
// itself for the next one.
func (p *Phase) admitAtRate(started *int64, required, nextDelta func(int64) int64, task loop.Task) {
	if p.Status().IsFinished() {
		return
	}
	delta := p.clock().Sub(p.AbsoluteStartTime()).Milliseconds()
	req := required(delta)
	for i := req - *started; i > 0; i-- {
		if !p.startNewSession() {
			return
		}
	}
	if req > *started {
		*started = req
	}
	next := nextDelta(*started)
	if next == math.MaxInt64 {
		return
	}
	if e := p.log.Trace(); e.Enabled() {
		e.Int64("delta", delta).Int64("started", *started).Int64("next_in_ms", next-delta).Msg("rate admission")
	}
	p.executor.Schedule(task, time.Duration(next-delta)*time.Millisecond)
}

// startNewSession admits a single session. It returns false once the
// counter was sealed or the pool failed.
func (p *Phase) startNewSession() bool {
	for {
		n := p.activeSessions.Load()
		if n < 0 {
			return false
		}
		if p.activeSessions.CompareAndSwap(n, n+1) {
			p.setActiveGauge(n + 1)
			break
		}
	}
	s, err := p.pool.Acquire()
	if err != nil {
		p.acquireFailed(err)
		return false
	}
	p.admitted()
	s.Start(p)
	return true
}

func (p *Phase) acquireFailed(err error) {
	p.log.Error().Err(err).Msg("cannot acquire session")
	p.Fail(err)
	p.sessionDone(nil)
}

func (p *Phase) admitted() {
	if p.instruments != nil {
		p.instruments.AdmittedTotal.WithLabelValues(p.def.Name).Inc()
	}
}

func (p *Phase) sessionDone(s *session.Session) {
	if s != nil && p.model.releasesSessions() {
		if err := p.pool.Release(s); err != nil {
			p.log.Error().Err(err).Int("session", s.ID()).Msg("cannot release session")
		}
	}
	n := p.activeSessions.Add(-1)
	p.setActiveGauge(n)
	if n < 0 {
		p.log.Error().Int32("active", n).Msg("negative active session count")
		return
	}
	if n == 0 {
		p.tryTerminate()
	}
}

// tryTerminate seals the counter and moves to TERMINATED when the phase is
// finished and nothing is active. Only one caller can win the seal.
func (p *Phase) tryTerminate() {
	if !p.Status().IsFinished() {
		return
	}
	if p.activeSessions.CompareAndSwap(0, math.MinInt32) {
		p.advance(StatusTerminated)
	}
}

// advance moves the status forward to `to`. It reports false when the
// phase was already there or beyond.
func (p *Phase) advance(to Status) bool {
	for {
		cur := p.status.Load()
		if Status(cur) >= to {
			return false
		}
		if p.status.CompareAndSwap(cur, int32(to)) {
			p.statusChanged(to)
			return true
		}
	}
}

func (p *Phase) statusChanged(to Status) {
	if to == StatusTerminated {
		p.endNanos.Store(p.clock().UnixNano())
	}
	p.log.Debug().Stringer("status", to).Msg("changing status")
	if p.instruments != nil {
		p.instruments.PhaseStatus.WithLabelValues(p.def.Name).Set(float64(to))
	}
	if p.onStatus != nil {
		p.onStatus(p, to)
	}
	if p.coordinator != nil {
		p.coordinator.Signal()
	}
}

func (p *Phase) setActiveGauge(n int32) {
	if p.instruments != nil && n >= 0 {
		p.instruments.ActiveSessions.WithLabelValues(p.def.Name).Set(float64(n))
	}
}
