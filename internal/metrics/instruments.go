package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Instruments are the Prometheus metrics maintained by running phases. No
// per-session labels are used.
type Instruments struct {
	ActiveSessions  *prometheus.GaugeVec
	AdmittedTotal   *prometheus.CounterVec
	PhaseStatus     *prometheus.GaugeVec
	SessionFailures *prometheus.CounterVec
	SLAFailures     *prometheus.CounterVec
	RequestsTotal   *prometheus.CounterVec
	ResponseTime    *prometheus.HistogramVec
}

// NewInstruments registers the instruments with reg.
func NewInstruments(reg prometheus.Registerer) *Instruments {
	f := promauto.With(reg)
	return &Instruments{
		ActiveSessions: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loadphase_active_sessions",
			Help: "Current number of sessions owned by a phase.",
		}, []string{"phase"}),
		AdmittedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loadphase_sessions_admitted_total",
			Help: "Total number of sessions admitted by a phase.",
		}, []string{"phase"}),
		PhaseStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loadphase_phase_status",
			Help: "Phase status ordinal (0 not started .. 4 terminated).",
		}, []string{"phase"}),
		SessionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loadphase_session_failures_total",
			Help: "Total number of sessions that failed while executing a step.",
		}, []string{"phase"}),
		SLAFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loadphase_sla_failures_total",
			Help: "Total number of SLA violations, by phase and sequence.",
		}, []string{"phase", "sequence"}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loadphase_requests_total",
			Help: "Total number of requests sent, by phase and outcome.",
		}, []string{"phase", "outcome"}),
		ResponseTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loadphase_response_time_seconds",
			Help:    "Response time of requests, by phase.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"phase"}),
	}
}
