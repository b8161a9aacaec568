package core

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

// MockTimeProvider is a mock implementation of core.TimeProvider
type MockTimeProvider struct {
	mock.Mock
}

var _ coreport.TimeProvider = (*MockTimeProvider)(nil)

// Now provides a mock function
func (m *MockTimeProvider) Now() time.Time {
	args := m.Called()
	return args.Get(0).(time.Time)
}

// Since provides a mock function with given fields: t
func (m *MockTimeProvider) Since(t time.Time) time.Duration {
	args := m.Called(t)
	return args.Get(0).(time.Duration)
}

// WithTimeout provides a mock function with given fields: ctx, timeout
func (m *MockTimeProvider) WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	args := m.Called(ctx, timeout)
	return args.Get(0).(context.Context), args.Get(1).(context.CancelFunc)
}
