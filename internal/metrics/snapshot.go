package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Snapshot is a set of statistics collected over a time range.
type Snapshot struct {
	Start time.Time
	End   time.Time

	// Response times in microseconds
	Histogram *hdrhistogram.Histogram

	Requests        int64
	Responses       int64
	Status2xx       int64
	Status3xx       int64
	Status4xx       int64
	Status5xx       int64
	StatusOther     int64
	ConnectFailures int64
	Resets          int64
	Timeouts        int64
	Invalid         int64
	InternalErrors  int64
	BlockedCount    int64
	BlockedTime     time.Duration
}

// NewSnapshot returns an empty snapshot starting at start.
func NewSnapshot(start time.Time) *Snapshot {
	return &Snapshot{Start: start, Histogram: newHistogram()}
}

func (s *Snapshot) recordResponse(status int, micros int64) {
	s.Responses++
	switch {
	case status >= 200 && status < 300:
		s.Status2xx++
	case status >= 300 && status < 400:
		s.Status3xx++
	case status >= 400 && status < 500:
		s.Status4xx++
	case status >= 500 && status < 600:
		s.Status5xx++
	default:
		s.StatusOther++
	}
	_ = s.Histogram.RecordValue(micros)
}

// Errors returns the number of requests that did not produce a usable
// response. HTTP error statuses are not counted here.
func (s *Snapshot) Errors() int64 {
	return s.ConnectFailures + s.Resets + s.Timeouts + s.InternalErrors
}

// IsEmpty reports whether nothing was recorded.
func (s *Snapshot) IsEmpty() bool {
	return s.Requests == 0 && s.Responses == 0 && s.Errors() == 0
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Histogram = hdrhistogram.Import(s.Histogram.Export())
	return &c
}

// Add merges other into s, widening the time range as needed.
func (s *Snapshot) Add(other *Snapshot) {
	if other == nil {
		return
	}
	if s.Start.IsZero() || (!other.Start.IsZero() && other.Start.Before(s.Start)) {
		s.Start = other.Start
	}
	if other.End.After(s.End) {
		s.End = other.End
	}
	s.Histogram.Merge(other.Histogram)
	s.Requests += other.Requests
	s.Responses += other.Responses
	s.Status2xx += other.Status2xx
	s.Status3xx += other.Status3xx
	s.Status4xx += other.Status4xx
	s.Status5xx += other.Status5xx
	s.StatusOther += other.StatusOther
	s.ConnectFailures += other.ConnectFailures
	s.Resets += other.Resets
	s.Timeouts += other.Timeouts
	s.Invalid += other.Invalid
	s.InternalErrors += other.InternalErrors
	s.BlockedCount += other.BlockedCount
	s.BlockedTime += other.BlockedTime
}

// Merge combines snapshots into a new one. Nil entries are skipped.
func Merge(snapshots ...*Snapshot) *Snapshot {
	out := &Snapshot{Histogram: newHistogram()}
	for _, s := range snapshots {
		out.Add(s)
	}
	return out
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// Summary is the serializable form of a Snapshot.
type Summary struct {
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	Requests        int64         `json:"requests"`
	Responses       int64         `json:"responses"`
	Status2xx       int64         `json:"status2xx"`
	Status3xx       int64         `json:"status3xx"`
	Status4xx       int64         `json:"status4xx"`
	Status5xx       int64         `json:"status5xx"`
	StatusOther     int64         `json:"statusOther"`
	ConnectFailures int64         `json:"connectFailures"`
	Resets          int64         `json:"resets"`
	Timeouts        int64         `json:"timeouts"`
	Invalid         int64         `json:"invalid"`
	InternalErrors  int64         `json:"internalErrors"`
	Errors          int64         `json:"errors"`
	BlockedTime     time.Duration `json:"blockedTime"`
	Latency         LatencyStats  `json:"latency"`
}

// Summary computes latency percentiles and copies counters.
func (s *Snapshot) Summary() Summary {
	h := s.Histogram
	return Summary{
		Start:           s.Start,
		End:             s.End,
		Requests:        s.Requests,
		Responses:       s.Responses,
		Status2xx:       s.Status2xx,
		Status3xx:       s.Status3xx,
		Status4xx:       s.Status4xx,
		Status5xx:       s.Status5xx,
		StatusOther:     s.StatusOther,
		ConnectFailures: s.ConnectFailures,
		Resets:          s.Resets,
		Timeouts:        s.Timeouts,
		Invalid:         s.Invalid,
		InternalErrors:  s.InternalErrors,
		Errors:          s.Errors(),
		BlockedTime:     s.BlockedTime,
		Latency: LatencyStats{
			Min:    time.Duration(h.Min()) * time.Microsecond,
			Max:    time.Duration(h.Max()) * time.Microsecond,
			Mean:   time.Duration(h.Mean()) * time.Microsecond,
			StdDev: time.Duration(h.StdDev()) * time.Microsecond,
			P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
			P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
			P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
			P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
			Count:  h.TotalCount(),
		},
	}
}
