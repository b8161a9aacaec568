// Package messaging provides testify mocks for the messaging ports
package messaging

import (
	"context"

	"github.com/stretchr/testify/mock"

	msgport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/messaging"
)

// MockPublisher is a mock implementation of messaging.Publisher
type MockPublisher struct {
	mock.Mock
}

var _ msgport.Publisher = (*MockPublisher)(nil)

// Publish provides a mock function with given fields: ctx, topic, key, payload
func (m *MockPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	args := m.Called(ctx, topic, key, payload)
	return args.Error(0)
}

// Close provides a mock function
func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
