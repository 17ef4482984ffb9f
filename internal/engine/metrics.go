package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricCyclesTotal        = "generation_cycles_total"
	MetricCycleDuration      = "generation_cycle_duration_seconds"
	MetricLastCycleItems     = "generation_last_cycle_items"
	MetricReadFallbacksTotal = "trending_read_fallbacks_total"
	MetricArchiveErrorsTotal = "snapshot_archive_errors_total"
)

// Metrics contains Prometheus metrics for the generation engine.
// All operations are thread-safe.
type Metrics struct {
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	lastCycleItems prometheus.Gauge
	readFallbacks  *prometheus.CounterVec
	archiveErrors  prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCyclesTotal,
			Help: "Total number of generation cycles by status",
		}, []string{"status"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricCycleDuration,
			Help:    "Histogram of generation cycle duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		}),
		lastCycleItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLastCycleItems,
			Help: "Item count of the most recently committed snapshot",
		}),
		readFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricReadFallbacksTotal,
			Help: "Total number of read-path fallbacks by kind (warmup, on_demand)",
		}, []string{"kind"}),
		archiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricArchiveErrorsTotal,
			Help: "Total number of failed snapshot archive writes",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.cycles, m.cycleDuration, m.lastCycleItems, m.readFallbacks, m.archiveErrors}
}

// IncCycles counts one completed cycle by status.
func (m *Metrics) IncCycles(status string) { m.cycles.WithLabelValues(status).Inc() }

// ObserveCycleDuration records a cycle duration sample.
func (m *Metrics) ObserveCycleDuration(seconds float64) { m.cycleDuration.Observe(seconds) }

// SetLastCycleItems records the committed snapshot's item count.
func (m *Metrics) SetLastCycleItems(n float64) { m.lastCycleItems.Set(n) }

// IncReadFallbacks counts one read-path fallback by kind.
func (m *Metrics) IncReadFallbacks(kind string) { m.readFallbacks.WithLabelValues(kind).Inc() }

// IncArchiveErrors counts one failed archive write.
func (m *Metrics) IncArchiveErrors() { m.archiveErrors.Inc() }
