// Package metrics collects per-sequence request statistics, evaluates
// service level agreements against them and exposes phase level
// Prometheus instruments.
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds, in microseconds.
const (
	HistogramMin     int64 = 1
	HistogramMax     int64 = 3_600_000_000 // 1 hour
	HistogramSigFigs       = 3
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(HistogramMin, HistogramMax, HistogramSigFigs)
}

// Statistics accumulates response times and outcome counters for one
// sequence running on one event loop.
//
// Requests are counted on the owning loop while responses and failures are
// recorded from the goroutines waiting on them. The reporting side snapshots
// concurrently. All access goes through the mutex.
type Statistics struct {
	mu       sync.Mutex
	total    *Snapshot
	interval *Snapshot
}

// NewStatistics creates empty statistics whose first interval starts at now.
func NewStatistics(now time.Time) *Statistics {
	return &Statistics{
		total:    NewSnapshot(now),
		interval: NewSnapshot(now),
	}
}

// IncrementRequests counts a request that was sent.
func (s *Statistics) IncrementRequests() {
	s.mu.Lock()
	s.total.Requests++
	s.interval.Requests++
	s.mu.Unlock()
}

// RecordResponse records a response with the given status code and the time
// elapsed since its request was sent.
func (s *Statistics) RecordResponse(status int, responseTime time.Duration) {
	micros := responseTime.Microseconds()
	if micros < HistogramMin {
		micros = HistogramMin
	}
	if micros > HistogramMax {
		micros = HistogramMax
	}

	s.mu.Lock()
	s.total.recordResponse(status, micros)
	s.interval.recordResponse(status, micros)
	s.mu.Unlock()
}

// AddConnectFailure counts a request that could not reach the server.
func (s *Statistics) AddConnectFailure() {
	s.add(func(sn *Snapshot) { sn.ConnectFailures++ })
}

// AddReset counts a connection reset while waiting for a response.
func (s *Statistics) AddReset() {
	s.add(func(sn *Snapshot) { sn.Resets++ })
}

// AddTimeout counts a request that timed out.
func (s *Statistics) AddTimeout() {
	s.add(func(sn *Snapshot) { sn.Timeouts++ })
}

// AddInvalid counts a response that failed validation.
func (s *Statistics) AddInvalid() {
	s.add(func(sn *Snapshot) { sn.Invalid++ })
}

// AddInternalError counts a session that failed while executing a step.
func (s *Statistics) AddInternalError() {
	s.add(func(sn *Snapshot) { sn.InternalErrors++ })
}

// AddBlockedTime records time a session spent waiting for a resource.
func (s *Statistics) AddBlockedTime(d time.Duration) {
	s.add(func(sn *Snapshot) {
		sn.BlockedCount++
		sn.BlockedTime += d
	})
}

func (s *Statistics) add(f func(*Snapshot)) {
	s.mu.Lock()
	f(s.total)
	f(s.interval)
	s.mu.Unlock()
}

// Snapshot returns a copy of everything recorded so far.
func (s *Statistics) Snapshot(now time.Time) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.total.Clone()
	c.End = now
	return c
}

// MoveIntervalTo closes the current interval at now, returns it and starts a
// new one.
func (s *Statistics) MoveIntervalTo(now time.Time) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	closed := s.interval
	closed.End = now
	s.interval = NewSnapshot(now)
	return closed
}
