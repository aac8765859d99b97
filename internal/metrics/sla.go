package metrics

import (
	"fmt"
	"time"
)

// PercentileLimit bounds the response time at a percentile (0-100).
type PercentileLimit struct {
	Percentile   float64       `yaml:"percentile" json:"percentile"`
	ResponseTime time.Duration `yaml:"responseTime" json:"responseTime"`
}

// SLA is a set of limits checked against the statistics of one sequence.
//
// Zero values disable the corresponding check. When Window is positive only
// the intervals inside the trailing window are considered, otherwise the
// statistics of the whole run are.
type SLA struct {
	Window           time.Duration
	ErrorRate        float64
	MeanResponseTime time.Duration
	Percentiles      []PercentileLimit
}

// SLAFailure describes a violated SLA.
type SLAFailure struct {
	Phase    string
	Sequence string
	Message  string
	Summary  Summary
}

// Error implements error.
func (f *SLAFailure) Error() string {
	return fmt.Sprintf("SLA failure in phase %s, sequence %s: %s", f.Phase, f.Sequence, f.Message)
}

// Validate checks the snapshot against the limits in order: error rate, mean
// response time, percentiles. The first violated limit is reported.
func (s *SLA) Validate(phase, sequence string, snapshot *Snapshot) *SLAFailure {
	if snapshot == nil || snapshot.Requests == 0 {
		return nil
	}
	fail := func(format string, args ...any) *SLAFailure {
		return &SLAFailure{
			Phase:    phase,
			Sequence: sequence,
			Message:  fmt.Sprintf(format, args...),
			Summary:  snapshot.Summary(),
		}
	}

	if s.ErrorRate > 0 {
		actual := float64(snapshot.Errors()) / float64(snapshot.Requests)
		if actual >= s.ErrorRate {
			return fail("error rate exceeded: required %.3f, actual %.3f", s.ErrorRate, actual)
		}
	}
	if s.MeanResponseTime > 0 && snapshot.Histogram.TotalCount() > 0 {
		mean := time.Duration(snapshot.Histogram.Mean() * float64(time.Microsecond))
		if mean >= s.MeanResponseTime {
			return fail("mean response time exceeded: required %v, actual %v", s.MeanResponseTime, mean)
		}
	}
	for _, limit := range s.Percentiles {
		if snapshot.Histogram.TotalCount() == 0 {
			break
		}
		value := time.Duration(snapshot.Histogram.ValueAtQuantile(limit.Percentile)) * time.Microsecond
		if value >= limit.ResponseTime {
			return fail("response time at percentile %g exceeded: required %v, actual %v",
				limit.Percentile, limit.ResponseTime, value)
		}
	}
	return nil
}

// Window keeps the interval snapshots an SLA is evaluated over.
type Window struct {
	sla       *SLA
	total     *Snapshot
	intervals []*Snapshot
}

// NewWindow creates an empty window for sla.
func NewWindow(sla *SLA) *Window {
	return &Window{sla: sla, total: &Snapshot{Histogram: newHistogram()}}
}

// Add appends an interval snapshot and drops intervals that ended before the
// window.
func (w *Window) Add(interval *Snapshot) {
	if w.sla.Window <= 0 {
		w.total.Add(interval)
		return
	}
	w.intervals = append(w.intervals, interval)
	cutoff := interval.End.Add(-w.sla.Window)
	drop := 0
	for drop < len(w.intervals) && !w.intervals[drop].End.After(cutoff) {
		drop++
	}
	if drop > 0 {
		w.intervals = append(w.intervals[:0], w.intervals[drop:]...)
	}
}

// Validate evaluates the SLA over the current window contents.
func (w *Window) Validate(phase, sequence string) *SLAFailure {
	if w.sla.Window <= 0 {
		return w.sla.Validate(phase, sequence, w.total)
	}
	return w.sla.Validate(phase, sequence, Merge(w.intervals...))
}
