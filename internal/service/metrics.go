package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "content_history"

// HistoryMetrics prometheus collectors for the history subsystem
// HistoryMetrics 历史记录子系统的 prometheus 指标
type HistoryMetrics struct {
	RecordsTotal         *prometheus.CounterVec // labels: entity_type, action, diff_type
	RecordRetries        prometheus.Counter
	RecordFailures       prometheus.Counter
	DiffSeconds          prometheus.Histogram
	Reconstructions      *prometheus.CounterVec // labels: result
	ReconstructWarnings  prometheus.Counter
	IntegrityIssuesGauge prometheus.Gauge
}

// NewHistoryMetrics builds the collectors and registers them on reg.
// A nil reg leaves them unregistered, which tests rely on.
// NewHistoryMetrics 创建并注册指标；reg 为 nil 时不注册
func NewHistoryMetrics(reg prometheus.Registerer) *HistoryMetrics {
	m := &HistoryMetrics{
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_total",
			Help:      "History records written, by entity type, action and storage type.",
		}, []string{"entity_type", "action", "diff_type"}),
		RecordRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "record_retries_total",
			Help:      "Version collisions retried while recording history.",
		}),
		RecordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "record_failures_total",
			Help:      "History records that could not be written.",
		}),
		DiffSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "diff_seconds",
			Help:      "Time spent computing reverse patches.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		Reconstructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconstructions_total",
			Help:      "Content reconstructions, by result.",
		}, []string{"result"}),
		ReconstructWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconstruction_warnings_total",
			Help:      "Warnings raised while replaying reverse patches.",
		}),
		IntegrityIssuesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "integrity_issues",
			Help:      "Issues found by the last integrity check.",
		}),
	}

	if reg != nil {
		m.RecordsTotal = registerOrReuse(reg, m.RecordsTotal)
		m.RecordRetries = registerOrReuse(reg, m.RecordRetries)
		m.RecordFailures = registerOrReuse(reg, m.RecordFailures)
		m.DiffSeconds = registerOrReuse(reg, m.DiffSeconds)
		m.Reconstructions = registerOrReuse(reg, m.Reconstructions)
		m.ReconstructWarnings = registerOrReuse(reg, m.ReconstructWarnings)
		m.IntegrityIssuesGauge = registerOrReuse(reg, m.IntegrityIssuesGauge)
	}
	return m
}

// registerOrReuse returns the already registered collector when the server is rebuilt on config reload.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
