package analysis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the run counters and timings exported on /metrics.
type Metrics struct {
	runs         *prometheus.CounterVec
	failures     *prometheus.CounterVec
	defects      *prometheus.CounterVec
	modelLatency prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guidematrix",
			Name:      "runs_total",
			Help:      "Completed analysis runs by kind and validation status.",
		}, []string{"kind", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guidematrix",
			Name:      "run_failures_total",
			Help:      "Analysis runs that returned an error, by reason.",
		}, []string{"reason"}),
		defects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guidematrix",
			Name:      "quality_defects_total",
			Help:      "Quality defects found in validated results, by code.",
		}, []string{"code"}),
		modelLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "guidematrix",
			Name:      "model_latency_seconds",
			Help:      "Wall time of model invocations including retries.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	reg.MustRegister(m.runs, m.failures, m.defects, m.modelLatency)
	return m
}

func (m *Metrics) observeRun(kind, status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) observeFailure(reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeDefect(code string) {
	if m == nil {
		return
	}
	m.defects.WithLabelValues(code).Inc()
}

func (m *Metrics) observeModel(d time.Duration) {
	if m == nil {
		return
	}
	m.modelLatency.Observe(d.Seconds())
}
