package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

const namespace = "ledger"

// PrometheusMetrics records ledger activity as Prometheus series
type PrometheusMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	credits           *prometheus.CounterVec
	anomalies         prometheus.Counter
	outboxPublished   *prometheus.CounterVec
}

var _ coreport.Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the ledger collectors with reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total ledger operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of ledger operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"operation"},
		),
		credits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credits_total",
				Help:      "Credits granted and spent by transaction type",
			},
			[]string{"direction", "type"},
		),
		anomalies: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consistency_anomalies_total",
				Help:      "Reads where the active free remainder exceeded the balance",
			},
		),
		outboxPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_published_total",
				Help:      "Outbox relay publish attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// ObserveOperation records one ledger call
func (m *PrometheusMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCredits adds amount to the granted or spent counter of a type
func (m *PrometheusMetrics) RecordCredits(direction, transactionType string, amount int64) {
	if amount <= 0 {
		return
	}
	m.credits.WithLabelValues(direction, transactionType).Add(float64(amount))
}

// ConsistencyAnomaly counts a drift; the user is left out to keep cardinality bounded
func (m *PrometheusMetrics) ConsistencyAnomaly(_ string) {
	m.anomalies.Inc()
}

// OutboxPublished counts relay attempts
func (m *PrometheusMetrics) OutboxPublished(outcome string) {
	m.outboxPublished.WithLabelValues(outcome).Inc()
}
