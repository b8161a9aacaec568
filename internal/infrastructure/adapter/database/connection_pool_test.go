package database_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/database"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	timeprovider "github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/time"
	mockcore "github.com/amirhossein-jamali/credit-ledger/mocks/port/core"
)

func TestPoolMonitor_Sample(t *testing.T) {
	clock := timeprovider.NewManualTimeProvider(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	t.Run("should record the sample and track the peak", func(t *testing.T) {
		// Setup
		inUse := 3
		monitor := database.NewPoolMonitor(func() (sql.DBStats, error) {
			return sql.DBStats{MaxOpenConnections: 10, OpenConnections: 5, InUse: inUse, Idle: 5 - inUse}, nil
		}, logger.NewNoopLogger(), clock)

		// Execute
		_, err := monitor.Sample()
		require.NoError(t, err)
		inUse = 1
		last, err := monitor.Sample()

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, last.InUse)
		assert.Equal(t, 4, last.Idle)
		assert.Equal(t, clock.Now(), last.SampledAt)
		assert.Equal(t, last, monitor.Last())
		assert.Equal(t, 3, monitor.PeakInUse())
		assert.InDelta(t, 0.1, last.Saturation(), 1e-9)
	})

	t.Run("should warn when the pool is nearly exhausted", func(t *testing.T) {
		// Setup
		mockLogger := mockcore.NewMockLogger(t)
		mockLogger.On("Warn", "Database connection pool nearly exhausted", mock.MatchedBy(func(fields map[string]any) bool {
			return fields["inUse"] == 9 && fields["maxOpen"] == 10
		})).Once()
		monitor := database.NewPoolMonitor(func() (sql.DBStats, error) {
			return sql.DBStats{MaxOpenConnections: 10, OpenConnections: 10, InUse: 9, Idle: 1}, nil
		}, mockLogger, clock)

		// Execute
		_, err := monitor.Sample()

		// Assert
		require.NoError(t, err)
	})

	t.Run("should not warn for a single connection pool", func(t *testing.T) {
		// Setup
		mockLogger := mockcore.NewMockLogger(t)
		monitor := database.NewPoolMonitor(func() (sql.DBStats, error) {
			return sql.DBStats{MaxOpenConnections: 1, OpenConnections: 1, InUse: 1}, nil
		}, mockLogger, clock)

		// Execute
		sample, err := monitor.Sample()

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1.0, sample.Saturation())
	})

	t.Run("should return the stats error and keep the previous sample", func(t *testing.T) {
		// Setup
		monitor := database.NewPoolMonitor(func() (sql.DBStats, error) {
			return sql.DBStats{}, errors.New("pool closed")
		}, logger.NewNoopLogger(), clock)

		// Execute
		_, err := monitor.Sample()

		// Assert
		assert.EqualError(t, err, "pool closed")
		assert.Equal(t, database.PoolSample{}, monitor.Last())
	})
}

func TestManager_PoolMonitor(t *testing.T) {
	t.Run("should sample the connected sqlite pool", func(t *testing.T) {
		// Setup
		manager, _, _ := newTestUnitOfWork(t)

		// Execute
		sample, err := manager.PoolMonitor().Sample()

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, sample.MaxOpen)
	})
}
