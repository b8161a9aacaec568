package database_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/database"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/database/migration"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/model"
	timeprovider "github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/time"
)

func newTestUnitOfWork(t *testing.T) (*database.Manager, *database.UnitOfWork, *timeprovider.ManualTimeProvider) {
	t.Helper()
	clock := timeprovider.NewManualTimeProvider(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	manager := database.NewTestManager(t, logger.NewNoopLogger(), clock)
	return manager, manager.CreateUnitOfWork(), clock
}

func appendPurchase(ctx context.Context, t *testing.T, uow *database.UnitOfWork, now time.Time, userID string, amount int64) error {
	t.Helper()
	if _, err := uow.GetBalanceRepository(ctx).Increment(ctx, userID, amount); err != nil {
		return err
	}
	tx, err := entity.NewGrantTransaction(userID, amount, entity.TypePurchase, "Credit pack", nil, nil, now)
	require.NoError(t, err)
	return uow.GetTransactionRepository(ctx).Append(ctx, tx)
}

func TestUnitOfWork_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("should commit balance and transaction together", func(t *testing.T) {
		// Setup
		_, uow, clock := newTestUnitOfWork(t)

		// Execute
		err := uow.Execute(ctx, func(txCtx context.Context) error {
			return appendPurchase(txCtx, t, uow, clock.Now(), "user-1", 50)
		})

		// Assert
		require.NoError(t, err)
		balance, err := uow.GetBalanceRepository(ctx).Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(50), balance.Balance)
		sum, err := uow.GetTransactionRepository(ctx).SumAmounts(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(50), sum)
	})

	t.Run("should roll back every write when fn fails", func(t *testing.T) {
		// Setup
		_, uow, clock := newTestUnitOfWork(t)
		boom := errors.New("boom")

		// Execute
		err := uow.Execute(ctx, func(txCtx context.Context) error {
			if err := appendPurchase(txCtx, t, uow, clock.Now(), "user-1", 50); err != nil {
				return err
			}
			return boom
		})

		// Assert
		assert.ErrorIs(t, err, boom)
		_, err = uow.GetBalanceRepository(ctx).Get(ctx, "user-1")
		assert.ErrorIs(t, err, errs.ErrBalanceNotFound)
		txs, total, err := uow.GetTransactionRepository(ctx).List(ctx, "user-1", persistence.TransactionFilter{Limit: 20})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, txs)
	})

	t.Run("should join the surrounding unit when nested", func(t *testing.T) {
		// Setup
		_, uow, clock := newTestUnitOfWork(t)
		boom := errors.New("outer failure")

		// Execute
		err := uow.Execute(ctx, func(outer context.Context) error {
			if err := uow.Execute(outer, func(inner context.Context) error {
				return appendPurchase(inner, t, uow, clock.Now(), "user-1", 10)
			}); err != nil {
				return err
			}
			return boom
		})

		// Assert
		assert.ErrorIs(t, err, boom)
		_, err = uow.GetBalanceRepository(ctx).Get(ctx, "user-1")
		assert.ErrorIs(t, err, errs.ErrBalanceNotFound)
	})

	t.Run("should re-run fn after a concurrency conflict", func(t *testing.T) {
		// Setup
		_, uow, clock := newTestUnitOfWork(t)
		attempts := 0

		// Execute
		err := uow.Execute(ctx, func(txCtx context.Context) error {
			attempts++
			if err := appendPurchase(txCtx, t, uow, clock.Now(), "user-1", 5); err != nil {
				return err
			}
			if attempts < 3 {
				return fmt.Errorf("%w: could not serialize access", errs.ErrConcurrencyConflict)
			}
			return nil
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		balance, err := uow.GetBalanceRepository(ctx).Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(5), balance.Balance, "aborted attempts must leave no trace")
	})

	t.Run("should give up after the configured retries", func(t *testing.T) {
		// Setup
		_, uow, _ := newTestUnitOfWork(t)
		attempts := 0

		// Execute
		err := uow.Execute(ctx, func(context.Context) error {
			attempts++
			return fmt.Errorf("%w: deadlock detected", errs.ErrConcurrencyConflict)
		})

		// Assert
		assert.ErrorIs(t, err, errs.ErrConcurrencyConflict)
		assert.Equal(t, 4, attempts)
	})

	t.Run("should not retry business failures", func(t *testing.T) {
		// Setup
		_, uow, _ := newTestUnitOfWork(t)
		attempts := 0

		// Execute
		err := uow.Execute(ctx, func(context.Context) error {
			attempts++
			return errs.NewInsufficientCreditsError("user-1", 10, 0, errs.SourceTotal)
		})

		// Assert
		assert.True(t, errs.IsInsufficientCreditsError(err))
		assert.Equal(t, 1, attempts)
	})
}

func TestManager_Migrate(t *testing.T) {
	ctx := context.Background()

	t.Run("should record the schema version and stay idempotent", func(t *testing.T) {
		// Setup
		manager, _, _ := newTestUnitOfWork(t)

		// Execute
		err := manager.Migrate(ctx)

		// Assert
		require.NoError(t, err)
		version, err := manager.MigrationManager().GetCurrentVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, migration.CurrentSchemaVersion, version)

		indexes := migration.NewIndexManager(manager.DB(), logger.NewNoopLogger())
		assert.True(t, indexes.HasIndex("credit_transactions", "idx_credit_transactions_active_grants"))
		assert.True(t, indexes.HasIndex("outbox_messages", "idx_outbox_messages_pending"))

		pending, err := manager.MigrationManager().Pending(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("should refuse a schema version it does not know", func(t *testing.T) {
		// Setup
		manager, _, clock := newTestUnitOfWork(t)
		require.NoError(t, manager.DB().Create(&model.MigrationVersion{
			Version:   "9.9.9",
			AppliedAt: clock.Now().Add(time.Hour),
		}).Error)

		// Execute
		err := manager.Migrate(ctx)

		// Assert
		assert.ErrorContains(t, err, "database schema version 9.9.9 is unknown to this build")
	})

	t.Run("should answer pings while connected", func(t *testing.T) {
		manager, _, _ := newTestUnitOfWork(t)
		assert.NoError(t, manager.Ping(ctx))
	})
}
