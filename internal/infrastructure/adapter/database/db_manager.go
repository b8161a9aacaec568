package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/database/migration"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/repository"
)

// Manager manages database connections
type Manager struct {
	config       *Config
	db           *gorm.DB
	logger       coreport.Logger
	migrationMgr *migration.MigrationManager
	poolMonitor  *PoolMonitor
	stopMonitor  context.CancelFunc
	timeProvider coreport.TimeProvider
}

// NewManager creates a new database manager
func NewManager(config *Config, logger coreport.Logger, timeProvider coreport.TimeProvider) *Manager {
	return &Manager{
		config:       config,
		logger:       logger,
		timeProvider: timeProvider,
	}
}

func (m *Manager) dialector() (gorm.Dialector, error) {
	switch m.config.Driver {
	case DriverPostgres:
		return postgres.Open(m.config.DSN()), nil
	case DriverSQLite:
		return sqlite.Open(m.config.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", m.config.Driver)
	}
}

// Connect opens the database, retrying transient connection failures
func (m *Manager) Connect(ctx context.Context) (*gorm.DB, error) {
	m.logger.Info("Connecting to database", map[string]any{
		"driver": m.config.Driver,
		"dsn":    m.config.RedactedDSN(),
	})

	dialector, err := m.dialector()
	if err != nil {
		return nil, err
	}

	classifier := repository.NewErrorClassifier()
	policy := NewRetryPolicy(RetryConfig{
		MaxRetries:    m.config.RetryAttempts - 1,
		RetryInterval: m.config.RetryDelay,
	}, classifier.IsConnectionError)

	var gormDB *gorm.DB
	err = runWithRetry(ctx, policy, m.logger, "connect", func() error {
		db, openErr := gorm.Open(dialector, &gorm.Config{
			Logger: NewGormLogger(m.logger, m.timeProvider, m.config.LogLevel),
			NowFunc: func() time.Time {
				return m.timeProvider.Now().UTC()
			},
			TranslateError: true,
		})
		if openErr != nil {
			return openErr
		}
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return dbErr
		}
		if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
			_ = sqlDB.Close()
			return pingErr
		}
		gormDB = db
		return nil
	})
	if err != nil {
		m.logger.Error("Failed to connect to database", map[string]any{
			"error":    err.Error(),
			"attempts": m.config.RetryAttempts,
		})
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", m.config.RetryAttempts, err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	maxOpen := m.config.MaxOpenConns
	// every connection to :memory: opens a separate empty database
	if m.config.IsInMemorySQLite() {
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(min(m.config.MaxIdleConns, maxOpen))
	sqlDB.SetConnMaxLifetime(m.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(m.config.ConnMaxIdleTime)

	m.logger.Info("Successfully connected to database", map[string]any{
		"driver":       m.config.Driver,
		"maxOpenConns": maxOpen,
		"maxIdleConns": m.config.MaxIdleConns,
		"queryTimeout": m.config.QueryTimeout.String(),
	})

	m.db = gormDB
	m.migrationMgr = migration.NewMigrationManager(gormDB, m.logger, m.timeProvider)
	m.poolMonitor = NewPoolMonitor(func() (sql.DBStats, error) {
		return sqlDB.Stats(), nil
	}, m.logger, m.timeProvider)

	return m.db, nil
}

// StartMonitoring samples the pool now and then every interval until ctx ends or Close is called
func (m *Manager) StartMonitoring(ctx context.Context, interval time.Duration) {
	if m.poolMonitor == nil || m.stopMonitor != nil {
		return
	}
	if _, err := m.poolMonitor.Sample(); err != nil {
		m.logger.Warn("Failed to start connection pool monitoring", map[string]any{"error": err.Error()})
		return
	}

	ctx, m.stopMonitor = context.WithCancel(ctx)
	go m.poolMonitor.Run(ctx, interval)
}

// PoolMonitor returns the pool monitor, nil before Connect
func (m *Manager) PoolMonitor() *PoolMonitor {
	return m.poolMonitor
}

// DB returns the GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Migrate brings the schema to the current version
func (m *Manager) Migrate(ctx context.Context) error {
	if m.migrationMgr == nil {
		return fmt.Errorf("database not connected")
	}
	return m.migrationMgr.MigrateAll(ctx)
}

// Ping verifies the connection is alive within the configured query timeout
func (m *Manager) Ping(ctx context.Context) error {
	if m.db == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := m.WithTimeout(ctx)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *Manager) Close() error {
	m.logger.Info("Closing database connection", nil)

	if m.stopMonitor != nil {
		m.stopMonitor()
	}
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	return sqlDB.Close()
}

// WithTimeout returns a context with timeout for database operations
func (m *Manager) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return m.timeProvider.WithTimeout(ctx, m.config.QueryTimeout)
}

// CreateUnitOfWork creates a new UnitOfWork bound to the connection
func (m *Manager) CreateUnitOfWork() *UnitOfWork {
	return NewUnitOfWork(m.db, m.logger, m.timeProvider, m.config.Retry)
}

// MigrationManager returns the migration manager
func (m *Manager) MigrationManager() *migration.MigrationManager {
	return m.migrationMgr
}
