// Package migration versions the ledger schema.
// Each step runs in its own transaction together with the row recording its version.
package migration

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/model"
)

// CurrentSchemaVersion is the version of the last step
const CurrentSchemaVersion = "1.1.0"

type step struct {
	version string
	details string
	apply   func(ctx context.Context, tx *gorm.DB, logger coreport.Logger) error
}

// steps are applied in order; versions are never reused
var steps = []step{
	{
		version: "1.0.0",
		details: "Credit balances, transactions and outbox",
		apply: func(ctx context.Context, tx *gorm.DB, _ coreport.Logger) error {
			return tx.WithContext(ctx).AutoMigrate(
				&model.CreditBalance{},
				&model.CreditTransaction{},
				&model.OutboxMessage{},
			)
		},
	},
	{
		version: CurrentSchemaVersion,
		details: "Active grant and pending outbox indexes",
		apply: func(ctx context.Context, tx *gorm.DB, logger coreport.Logger) error {
			return NewIndexManager(tx, logger).CreatePartialIndexes(ctx)
		},
	},
}

// MigrationManager applies pending schema steps
type MigrationManager struct {
	db           *gorm.DB
	logger       coreport.Logger
	timeProvider coreport.TimeProvider
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *gorm.DB, logger coreport.Logger, timeProvider coreport.TimeProvider) *MigrationManager {
	return &MigrationManager{
		db:           db,
		logger:       logger,
		timeProvider: timeProvider,
	}
}

// MigrateAll applies every step newer than the recorded version
func (m *MigrationManager) MigrateAll(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&model.MigrationVersion{}); err != nil {
		m.logger.Error("Failed to create migration version table", map[string]any{"error": err.Error()})
		return err
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		m.logger.Debug("Schema is up to date", map[string]any{"version": CurrentSchemaVersion})
		return nil
	}

	m.logger.Info("Applying schema migrations", map[string]any{
		"pending":       pending,
		"targetVersion": CurrentSchemaVersion,
		"dialect":       m.db.Dialector.Name(),
	})

	for _, s := range steps {
		if !contains(pending, s.version) {
			continue
		}
		if err := m.applyStep(ctx, s); err != nil {
			m.logger.Error("Schema migration failed", map[string]any{
				"version": s.version,
				"error":   err.Error(),
			})
			return fmt.Errorf("migration %s: %w", s.version, err)
		}
		m.logger.Info("Schema migration applied", map[string]any{"version": s.version, "details": s.details})
	}
	return nil
}

// Pending lists the versions not yet applied, oldest first
func (m *MigrationManager) Pending(ctx context.Context) ([]string, error) {
	current, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	start := 0
	if current != "" {
		start = -1
		for i, s := range steps {
			if s.version == current {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, fmt.Errorf("database schema version %s is unknown to this build", current)
		}
	}

	pending := make([]string, 0, len(steps)-start)
	for _, s := range steps[start:] {
		pending = append(pending, s.version)
	}
	return pending, nil
}

// GetCurrentVersion returns the most recently applied version, or "" on a fresh database
func (m *MigrationManager) GetCurrentVersion(ctx context.Context) (string, error) {
	var version model.MigrationVersion
	err := m.db.WithContext(ctx).Order("applied_at desc").Order("id desc").First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return version.Version, nil
}

func (m *MigrationManager) applyStep(ctx context.Context, s step) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.apply(ctx, tx, m.logger); err != nil {
			return err
		}
		return tx.Create(&model.MigrationVersion{
			Version:   s.version,
			AppliedAt: m.timeProvider.Now().UTC(),
			Details:   s.details,
		}).Error
	})
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
