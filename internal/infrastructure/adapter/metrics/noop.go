package metrics

import (
	"time"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

// NoopMetrics discards everything; used when metrics are disabled
type NoopMetrics struct{}

var _ coreport.Metrics = NoopMetrics{}

// NewNoopMetrics creates a metrics sink that records nothing
func NewNoopMetrics() coreport.Metrics {
	return NoopMetrics{}
}

func (NoopMetrics) ObserveOperation(string, string, time.Duration) {}
func (NoopMetrics) RecordCredits(string, string, int64)            {}
func (NoopMetrics) ConsistencyAnomaly(string)                      {}
func (NoopMetrics) OutboxPublished(string)                         {}
