package learn

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFeedbackEventsTotal = "feedback_events_total"
)

// Metrics contains Prometheus metrics for feedback recording.
// All operations are thread-safe.
type Metrics struct {
	events *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFeedbackEventsTotal,
			Help: "Total number of recorded feedback events by action and polarity",
		}, []string{"action", "polarity"}),
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
	return []prometheus.Collector{m.events}
}

// RecordEvent counts one feedback event.
func (m *Metrics) RecordEvent(action Action, positive bool) {
	polarity := "negative"
	if positive {
		polarity = "positive"
	}
	m.events.WithLabelValues(string(action), polarity).Inc()
}
