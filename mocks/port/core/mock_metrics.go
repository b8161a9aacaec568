package core

import (
	"time"

	"github.com/stretchr/testify/mock"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

// MockMetrics is a mock implementation of core.Metrics
type MockMetrics struct {
	mock.Mock
}

var _ coreport.Metrics = (*MockMetrics)(nil)

// ObserveOperation provides a mock function with given fields: operation, outcome, duration
func (m *MockMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	m.Called(operation, outcome, duration)
}

// RecordCredits provides a mock function with given fields: direction, transactionType, amount
func (m *MockMetrics) RecordCredits(direction, transactionType string, amount int64) {
	m.Called(direction, transactionType, amount)
}

// ConsistencyAnomaly provides a mock function with given fields: userID
func (m *MockMetrics) ConsistencyAnomaly(userID string) {
	m.Called(userID)
}

// OutboxPublished provides a mock function with given fields: outcome
func (m *MockMetrics) OutboxPublished(outcome string) {
	m.Called(outcome)
}
