// Package metrics exposes Prometheus instrumentation for the portal.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the client's collectors. A nil *Metrics records nothing.
type Metrics struct {
	Submissions     *prometheus.CounterVec
	SubmitDuration  *prometheus.HistogramVec
	Transitions     *prometheus.CounterVec
	BackendRequests *prometheus.CounterVec
	HistoryRecords  prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "submissions_total",
			Help:      "Settled attendance submissions by method and outcome.",
		}, []string{"method", "outcome"}),
		SubmitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "attendance",
			Name:      "submission_duration_seconds",
			Help:      "Time from dispatch to settlement.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "state_transitions_total",
			Help:      "Orchestrator state entries by phase.",
		}, []string{"phase"}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "backend_requests_total",
			Help:      "Requests sent to the verification backend by operation and status code.",
		}, []string{"op", "code"}),
		HistoryRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "attendance",
			Name:      "history_records",
			Help:      "Records held by the local history cache.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Submissions, m.SubmitDuration, m.Transitions, m.BackendRequests, m.HistoryRecords)
	}
	return m
}

func (m *Metrics) ObserveOutcome(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(method, outcome).Inc()
	m.SubmitDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) ObserveTransition(phase string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(phase).Inc()
}

// ObserveRequest counts a backend call; code 0 means no response arrived.
func (m *Metrics) ObserveRequest(op string, code int) {
	if m == nil {
		return
	}
	label := "none"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.BackendRequests.WithLabelValues(op, label).Inc()
}

func (m *Metrics) SetHistorySize(n int) {
	if m == nil {
		return
	}
	m.HistoryRecords.Set(float64(n))
}
