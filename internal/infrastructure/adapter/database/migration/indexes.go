package migration

import (
	"context"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"gorm.io/gorm"
)

// IndexManager creates indexes AutoMigrate cannot express from struct tags
type IndexManager struct {
	db     *gorm.DB
	logger coreport.Logger
}

// NewIndexManager creates a new index manager
func NewIndexManager(db *gorm.DB, logger coreport.Logger) *IndexManager {
	return &IndexManager{
		db:     db,
		logger: logger,
	}
}

// partialIndexes are valid on both postgres and sqlite
var partialIndexes = []struct {
	name string
	sql  string
}{
	{
		name: "idx_credit_transactions_active_grants",
		sql: `CREATE INDEX IF NOT EXISTS idx_credit_transactions_active_grants
			ON credit_transactions (user_id, created_at, id)
			WHERE remaining_amount > 0`,
	},
	{
		name: "idx_outbox_messages_pending",
		sql: `CREATE INDEX IF NOT EXISTS idx_outbox_messages_pending
			ON outbox_messages (id)
			WHERE status = 'PENDING'`,
	},
}

// CreatePartialIndexes creates the active-grant and pending-outbox indexes
func (m *IndexManager) CreatePartialIndexes(ctx context.Context) error {
	m.logger.Info("Creating partial indexes", map[string]any{"count": len(partialIndexes)})

	for _, idx := range partialIndexes {
		if err := m.db.WithContext(ctx).Exec(idx.sql).Error; err != nil {
			m.logger.Error("Failed to create index", map[string]any{
				"index": idx.name,
				"error": err.Error(),
			})
			return err
		}
	}

	return nil
}

// HasIndex reports whether the named index exists on table
func (m *IndexManager) HasIndex(table, name string) bool {
	return m.db.Migrator().HasIndex(table, name)
}
