// Package metrics exposes Prometheus collectors for session and question
// activity, and an optional HTTP listener serving them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notebook"

// Question outcome labels.
const (
	OutcomeAnswered     = "answered"
	OutcomeBlocked      = "blocked"
	OutcomeTimedOut     = "timed_out"
	OutcomeRateLimited  = "rate_limited"
	OutcomeAuthFailed   = "auth_failed"
	OutcomeCapacity     = "capacity_exceeded"
	OutcomeDisconnected = "disconnected"
	OutcomeError        = "error"
)

// Eviction reason labels.
const (
	EvictionIdle     = "idle"
	EvictionCapacity = "capacity"
	EvictionClosed   = "closed"
	EvictionRetarget = "retarget"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	sessionsActive prometheus.Gauge
	questions      *prometheus.CounterVec
	answerSeconds  prometheus.Histogram
	evictions      *prometheus.CounterVec
	logins         *prometheus.CounterVec
	reconnects     prometheus.Counter
}

// New creates collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live question sessions.",
		}),
		questions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions dispatched, by outcome.",
		}, []string{"outcome"}),
		answerSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_seconds",
			Help:      "Time from submission to a stable answer.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_evictions_total",
			Help:      "Sessions removed, by reason.",
		}, []string{"reason"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Interactive login attempts, by result.",
		}, []string{"result"}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_reconnects_total",
			Help:      "Tabs recreated after the previous one became unusable.",
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SetActiveSessions records the current live session count.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

// ObserveQuestion counts one dispatched question; answered questions also
// record their latency.
func (m *Metrics) ObserveQuestion(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.questions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeAnswered {
		m.answerSeconds.Observe(elapsed.Seconds())
	}
}

// RecordEviction counts one removed session.
func (m *Metrics) RecordEviction(reason string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(reason).Inc()
}

// RecordLogin counts one interactive login attempt.
func (m *Metrics) RecordLogin(success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.logins.WithLabelValues(result).Inc()
}

// RecordReconnect counts one recreated tab.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}
