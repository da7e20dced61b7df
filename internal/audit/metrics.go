package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the engine counters into Prometheus.
type Metrics struct {
	EntriesLogged    prometheus.Counter
	EntriesFailed    prometheus.Counter
	BackendFailures  prometheus.Counter
	FallbackEntries  *prometheus.CounterVec
	FlushDuration    prometheus.Histogram
	BatchSize        prometheus.Histogram
	CircuitOpen      prometheus.Gauge
	CleanupPartition prometheus.Counter
}

// NewMetrics registers the audit metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EntriesLogged: factory.NewCounter(prometheus.CounterOpts{
			Name: "audit_entries_logged_total",
			Help: "Total number of audit entries persisted to the primary store",
		}),
		EntriesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "audit_entries_failed_total",
			Help: "Total number of audit entries that missed the primary store",
		}),
		BackendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "audit_backend_failures_total",
			Help: "Total number of batch flushes that failed against the primary store",
		}),
		FallbackEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_fallback_entries_total",
			Help: "Total number of audit entries routed to the fallback file, by reason",
		}, []string{"reason"}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audit_flush_duration_seconds",
			Help:    "Duration of batch flushes including fallback handling",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audit_batch_size",
			Help:    "Number of entries per flushed batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),
		CircuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audit_circuit_breaker_state",
			Help: "Primary store circuit breaker state (0=closed, 1=open)",
		}),
		CleanupPartition: factory.NewCounter(prometheus.CounterOpts{
			Name: "audit_cleanup_partitions_removed_total",
			Help: "Total number of primary-log partitions removed by retention cleanup",
		}),
	}
}

func (m *Metrics) observeFlush(start time.Time, entries int) {
	if m == nil {
		return
	}
	m.FlushDuration.Observe(time.Since(start).Seconds())
	m.BatchSize.Observe(float64(entries))
}

func (m *Metrics) addLogged(n int) {
	if m == nil {
		return
	}
	m.EntriesLogged.Add(float64(n))
}

func (m *Metrics) addFailed(n int, reason string) {
	if m == nil {
		return
	}
	m.EntriesFailed.Add(float64(n))
	m.FallbackEntries.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) incBackendFailures() {
	if m == nil {
		return
	}
	m.BackendFailures.Inc()
}

func (m *Metrics) setCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
	} else {
		m.CircuitOpen.Set(0)
	}
}

func (m *Metrics) addCleanup(n int) {
	if m == nil {
		return
	}
	m.CleanupPartition.Add(float64(n))
}
