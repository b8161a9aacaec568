package core

import "time"

// Operation outcomes reported to Metrics
const (
	OutcomeSuccess      = "success"
	OutcomeInsufficient = "insufficient"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// Credit flow directions reported to Metrics
const (
	DirectionGranted = "granted"
	DirectionSpent   = "spent"
)

// Metrics records ledger activity for operational monitoring
type Metrics interface {
	// ObserveOperation records one ledger call with its outcome and latency
	ObserveOperation(operation, outcome string, duration time.Duration)
	// RecordCredits adds amount to the granted or spent credit counter of a transaction type
	RecordCredits(direction, transactionType string, amount int64)
	// ConsistencyAnomaly counts a detected drift between the free remainder and the balance
	ConsistencyAnomaly(userID string)
	// OutboxPublished counts outbox relay attempts by outcome
	OutboxPublished(outcome string)
}
