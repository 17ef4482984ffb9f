package rerank

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricOracleCallsTotal     = "reranker_oracle_calls_total"
	MetricOracleFallbacksTotal = "reranker_oracle_fallbacks_total"
	MetricOracleRetriesTotal   = "reranker_oracle_retries_total"
	MetricOracleCallDuration   = "reranker_oracle_call_duration_seconds"
)

// Metrics contains Prometheus metrics for oracle calls.
// All operations are thread-safe.
type Metrics struct {
	calls        prometheus.Counter
	fallbacks    prometheus.Counter
	retries      prometheus.Counter
	callDuration prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		calls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricOracleCallsTotal,
			Help: "Total number of successful reranking oracle calls",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricOracleFallbacksTotal,
			Help: "Total number of oracle failures that fell back to heuristic ordering",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricOracleRetriesTotal,
			Help: "Total number of oracle call retries (429/5xx)",
		}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricOracleCallDuration,
			Help:    "Histogram of oracle call duration in seconds, including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
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
	return []prometheus.Collector{m.calls, m.fallbacks, m.retries, m.callDuration}
}

// IncCalls increments the successful-call counter.
func (m *Metrics) IncCalls() { m.calls.Inc() }

// IncFallbacks increments the heuristic-fallback counter.
func (m *Metrics) IncFallbacks() { m.fallbacks.Inc() }

// IncRetries increments the retry counter.
func (m *Metrics) IncRetries() { m.retries.Inc() }

// ObserveCallDuration records a call duration sample.
func (m *Metrics) ObserveCallDuration(seconds float64) { m.callDuration.Observe(seconds) }
