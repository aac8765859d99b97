package engine

import (
	"time"

	"github.com/wesleyorama2/loadphase/internal/metrics"
	"github.com/wesleyorama2/loadphase/internal/phase"
)

// Report is the outcome of a run.
type Report struct {
	RunID       string             `json:"runId"`
	Benchmark   string             `json:"benchmark"`
	Start       time.Time          `json:"start"`
	End         time.Time          `json:"end"`
	Duration    time.Duration      `json:"duration"`
	Phases      []PhaseReport      `json:"phases"`
	SLAFailures []SLAFailureReport `json:"slaFailures,omitempty"`
}

// PhaseReport describes one phase.
type PhaseReport struct {
	Name      string           `json:"name"`
	Status    string           `json:"status"`
	Start     time.Time        `json:"start,omitempty"`
	Duration  time.Duration    `json:"duration"`
	Error     string           `json:"error,omitempty"`
	Sequences []SequenceReport `json:"sequences"`
}

// SequenceReport holds the total statistics of a sequence in a phase.
type SequenceReport struct {
	Name    string          `json:"name"`
	Summary metrics.Summary `json:"summary"`
}

// SLAFailureReport describes a violated SLA.
type SLAFailureReport struct {
	Phase    string `json:"phase"`
	Sequence string `json:"sequence"`
	Message  string `json:"message"`
}

// Progress is the state of a running benchmark at the end of a statistics
// interval.
type Progress struct {
	Elapsed time.Duration
	Phases  []PhaseProgress
}

// PhaseProgress holds the status of a phase and the statistics of its last
// interval, merged over all sequences.
type PhaseProgress struct {
	Name           string
	Status         phase.Status
	ActiveSessions int
	Interval       metrics.Summary
}

// Running returns the phases that are neither waiting nor terminated.
func (p *Progress) Running() []PhaseProgress {
	var out []PhaseProgress
	for _, pp := range p.Phases {
		if pp.Status != phase.StatusNotStarted && !pp.Status.IsTerminated() {
			out = append(out, pp)
		}
	}
	return out
}

// Failed reports whether any phase failed or any SLA was violated.
func (r *Report) Failed() bool {
	if len(r.SLAFailures) > 0 {
		return true
	}
	for _, p := range r.Phases {
		if p.Error != "" {
			return true
		}
	}
	return false
}

// Totals merges the statistics of every sequence of every phase.
func (r *Report) Totals() (requests, errors int64) {
	for _, p := range r.Phases {
		for _, s := range p.Sequences {
			requests += s.Summary.Requests
			errors += s.Summary.Errors
		}
	}
	return requests, errors
}

func (e *Engine) report(start, end time.Time) *Report {
	r := &Report{
		RunID:     e.runID.String(),
		Benchmark: e.cfg.Name,
		Start:     start,
		End:       end,
		Duration:  end.Sub(start),
	}

	for _, run := range e.runs {
		p := run.phase
		pr := PhaseReport{
			Name:   p.Name(),
			Status: p.Status().String(),
			Start:  p.AbsoluteStartTime(),
		}
		if !pr.Start.IsZero() {
			phaseEnd := p.AbsoluteEndTime()
			if phaseEnd.IsZero() {
				phaseEnd = end
			}
			pr.Duration = phaseEnd.Sub(pr.Start)
		}
		if err := p.Err(); err != nil {
			pr.Error = err.Error()
		}
		for _, snap := range p.Snapshots(end) {
			pr.Sequences = append(pr.Sequences, SequenceReport{
				Name:    snap.Sequence,
				Summary: snap.Snapshot.Summary(),
			})
		}
		r.Phases = append(r.Phases, pr)
	}

	for _, f := range e.SLAFailures() {
		r.SLAFailures = append(r.SLAFailures, SLAFailureReport{
			Phase:    f.Phase,
			Sequence: f.Sequence,
			Message:  f.Message,
		})
	}
	return r
}
