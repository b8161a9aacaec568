package database

import (
	"context"
	"database/sql"

	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"gorm.io/gorm"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/repository"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// Context keys
const txKey contextKey = "tx"

// UnitOfWork runs ledger mutations inside one database transaction
type UnitOfWork struct {
	db           *gorm.DB
	logger       coreport.Logger
	timeProvider coreport.TimeProvider
	retryPolicy  retrypolicy.RetryPolicy[any]
	txOptions    *sql.TxOptions
	classifier   *repository.ErrorClassifier
}

var _ persistence.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork creates a new UnitOfWork instance.
// On postgres units run SERIALIZABLE; sqlite serializes writers itself.
func NewUnitOfWork(db *gorm.DB, logger coreport.Logger, timeProvider coreport.TimeProvider, retry RetryConfig) *UnitOfWork {
	var txOptions *sql.TxOptions
	if db.Dialector.Name() == DriverPostgres {
		txOptions = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	return &UnitOfWork{
		db:           db,
		logger:       logger,
		timeProvider: timeProvider,
		retryPolicy:  NewRetryPolicy(retry, errs.IsConcurrencyConflict),
		txOptions:    txOptions,
		classifier:   repository.NewErrorClassifier(),
	}
}

// Execute runs fn in a transaction, re-running it when the store reports a conflict
func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}

	return runWithRetry(ctx, u.retryPolicy, u.logger, "unit_of_work", func() error {
		err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(context.WithValue(ctx, txKey, tx))
		}, u.txOptionsSlice()...)
		// serialization failures can surface from COMMIT, outside any repository
		if err != nil && !errs.IsConcurrencyConflict(err) && u.classifier.IsLockError(err) {
			return u.classifier.MapError(err)
		}
		return err
	})
}

func (u *UnitOfWork) txOptionsSlice() []*sql.TxOptions {
	if u.txOptions == nil {
		return nil
	}
	return []*sql.TxOptions{u.txOptions}
}

// GetBalanceRepository returns a balance repository in the current transaction
func (u *UnitOfWork) GetBalanceRepository(ctx context.Context) persistence.BalanceRepository {
	return repository.NewBalanceRepository(u.getDbFromContext(ctx), u.timeProvider, u.logger)
}

// GetTransactionRepository returns a transaction repository in the current transaction
func (u *UnitOfWork) GetTransactionRepository(ctx context.Context) persistence.TransactionRepository {
	return repository.NewTransactionRepository(u.getDbFromContext(ctx), u.logger)
}

// GetOutboxRepository returns an outbox repository in the current transaction
func (u *UnitOfWork) GetOutboxRepository(ctx context.Context) persistence.OutboxRepository {
	return repository.NewOutboxRepository(u.getDbFromContext(ctx), u.timeProvider, u.logger)
}

// getDbFromContext retrieves the database instance from context
func (u *UnitOfWork) getDbFromContext(ctx context.Context) *gorm.DB {
	tx, ok := ctx.Value(txKey).(*gorm.DB)
	if ok && tx != nil {
		return tx
	}
	return u.db.WithContext(ctx)
}
