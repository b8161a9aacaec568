package database

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

var testDBSeq atomic.Int64

// NewTestManager connects to a fresh, migrated in-memory sqlite database that is
// closed when t finishes.
func NewTestManager(t testing.TB, logger coreport.Logger, timeProvider coreport.TimeProvider) *Manager {
	t.Helper()

	config := DefaultConfig()
	config.Driver = DriverSQLite
	config.SQLitePath = fmt.Sprintf("file:credit_ledger_test_%d?mode=memory&cache=shared&_busy_timeout=5000", testDBSeq.Add(1))
	config.LogLevel = "silent"
	config.RetryAttempts = 1
	config.RetryDelay = 0
	config.Retry = RetryConfig{MaxRetries: 3}

	manager := NewManager(config, logger, timeProvider)
	if _, err := manager.Connect(context.Background()); err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() {
		if err := manager.Close(); err != nil {
			t.Logf("Warning: Failed to close test database connection: %v", err)
		}
	})

	if err := manager.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return manager
}
