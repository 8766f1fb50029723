// Package metrics exposes Prometheus collectors for scheduler activity.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics reports scheduler activity.
type Metrics struct {
	policyDecisions  *prometheus.CounterVec
	confirmations    *prometheus.CounterVec
	executions       *prometheus.CounterVec
	executionSeconds *prometheus.HistogramVec
	batchesActive    prometheus.Gauge
}

var (
	defaultOnce   sync.Once
	sharedMetrics *Metrics
)

// Default returns the package-level metrics registered with the global
// Prometheus registry. Created once so repeated scheduler construction (e.g.
// in tests) cannot trigger duplicate-registration panics.
func Default() *Metrics {
	defaultOnce.Do(func() {
		sharedMetrics = MustNew(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNew constructs Metrics on the provided registerer, panicking on
// registration errors the same way promauto does.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		policyDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ward",
				Subsystem: "scheduler",
				Name:      "policy_decisions_total",
				Help:      "Policy engine verdicts by decision.",
			},
			[]string{"verdict"},
		),
		confirmations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ward",
				Subsystem: "scheduler",
				Name:      "confirmations_total",
				Help:      "Confirmation resolutions by outcome.",
			},
			[]string{"outcome"},
		),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ward",
				Subsystem: "scheduler",
				Name:      "executions_total",
				Help:      "Tool executions by terminal status.",
			},
			[]string{"status"},
		),
		executionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ward",
				Subsystem: "scheduler",
				Name:      "execution_duration_seconds",
				Help:      "Duration of tool executions.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		batchesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ward",
				Subsystem: "scheduler",
				Name:      "batches_active",
				Help:      "Batches currently being driven by a scheduler.",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.policyDecisions, m.confirmations, m.executions, m.executionSeconds, m.batchesActive,
	} {
		reg.MustRegister(c)
	}
	return m
}

func (m *Metrics) PolicyDecision(verdict string) {
	m.policyDecisions.WithLabelValues(verdict).Inc()
}

func (m *Metrics) Confirmation(outcome string) {
	m.confirmations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Execution(status string, tool string, elapsed time.Duration) {
	m.executions.WithLabelValues(status).Inc()
	m.executionSeconds.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func (m *Metrics) BatchStarted()  { m.batchesActive.Inc() }
func (m *Metrics) BatchFinished() { m.batchesActive.Dec() }
