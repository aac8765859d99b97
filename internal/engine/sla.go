package engine

import (
	"time"

	"github.com/wesleyorama2/loadphase/internal/metrics"
	"github.com/wesleyorama2/loadphase/internal/phase"
)

// checkSLAs closes a statistics interval of every started phase each
// statistics interval and validates windowed sequence SLAs against it. A
// last pass runs once the driver is done.
func (e *Engine) checkSLAs(done <-chan struct{}, start time.Time) {
	ticker := time.NewTicker(e.cfg.StatisticsInterval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-done:
			e.collectIntervals(start, time.Now())
			return
		case now := <-ticker.C:
			e.collectIntervals(start, now)
		}
	}
}

func (e *Engine) collectIntervals(start, now time.Time) {
	progress := &Progress{Elapsed: now.Sub(start)}
	for _, run := range e.runs {
		status := run.phase.Status()
		pp := PhaseProgress{
			Name:           run.phase.Name(),
			Status:         status,
			ActiveSessions: run.phase.ActiveSessions(),
		}
		if run.closed || status == phase.StatusNotStarted {
			progress.Phases = append(progress.Phases, pp)
			continue
		}
		// Terminated phases get one last interval.
		if status.IsTerminated() {
			run.closed = true
		}

		intervals := run.phase.MoveIntervalTo(now)
		merged := make([]*metrics.Snapshot, len(intervals))
		for i, interval := range intervals {
			merged[i] = interval.Snapshot
		}
		pp.Interval = metrics.Merge(merged...).Summary()
		progress.Phases = append(progress.Phases, pp)

		for _, check := range run.slas {
			interval := intervals[check.sequence]
			check.window.Add(interval.Snapshot)
			// Whole-run SLAs are only judged once the phase is over.
			if check.failed || (!check.periodic && !run.closed) {
				continue
			}
			if failure := check.window.Validate(run.phase.Name(), interval.Sequence); failure != nil {
				check.failed = true
				e.slaFailed(run.phase, failure)
			}
		}
	}
	if e.opts.progress != nil {
		e.opts.progress(progress)
	}
}

func (e *Engine) slaFailed(p *phase.Phase, failure *metrics.SLAFailure) {
	e.mu.Lock()
	e.slaFailures = append(e.slaFailures, failure)
	e.mu.Unlock()

	e.instruments.SLAFailures.WithLabelValues(failure.Phase, failure.Sequence).Inc()
	e.log.Warn().Str("phase", failure.Phase).Str("sequence", failure.Sequence).Msg(failure.Message)
	p.Fail(failure)
}

// SLAFailures returns the SLA violations found so far.
func (e *Engine) SLAFailures() []*metrics.SLAFailure {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*metrics.SLAFailure(nil), e.slaFailures...)
}
