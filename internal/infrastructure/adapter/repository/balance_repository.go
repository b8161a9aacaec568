package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/model"
)

// BalanceRepository implements persistence.BalanceRepository using GORM
type BalanceRepository struct {
	db              *gorm.DB
	timeProvider    coreport.TimeProvider
	logger          coreport.Logger
	errorClassifier *ErrorClassifier
}

var _ persistence.BalanceRepository = (*BalanceRepository)(nil)

// NewBalanceRepository creates a new BalanceRepository instance
func NewBalanceRepository(db *gorm.DB, timeProvider coreport.TimeProvider, logger coreport.Logger) *BalanceRepository {
	return &BalanceRepository{
		db:              db,
		timeProvider:    timeProvider,
		logger:          logger,
		errorClassifier: NewErrorClassifier(),
	}
}

func toBalanceEntity(m *model.CreditBalance) *entity.Balance {
	return &entity.Balance{
		UserID:    m.UserID,
		Balance:   m.Balance,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// handleDatabaseError standardizes database error handling
func (r *BalanceRepository) handleDatabaseError(operation string, err error, userID string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.ErrBalanceNotFound
	}

	mapped := r.errorClassifier.MapError(err)
	fields := map[string]any{
		"userId": userID,
		"error":  err.Error(),
	}
	if errs.IsConcurrencyConflict(mapped) {
		r.logger.Warn(fmt.Sprintf("Concurrent writer aborted %s", operation), fields)
	} else {
		r.logger.Error(fmt.Sprintf("Database error when %s", operation), fields)
	}
	return mapped
}

func (r *BalanceRepository) find(ctx context.Context, userID string, lock bool) (*entity.Balance, error) {
	query := r.db.WithContext(ctx)
	// sqlite has no row locks; its writer lock already serializes the unit
	if lock && r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var m model.CreditBalance
	if err := query.Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, r.handleDatabaseError("reading balance", err, userID)
	}
	return toBalanceEntity(&m), nil
}

// Get retrieves the balance row of a user
func (r *BalanceRepository) Get(ctx context.Context, userID string) (*entity.Balance, error) {
	return r.find(ctx, userID, false)
}

// GetForUpdate retrieves the balance row and locks it for the rest of the transaction
func (r *BalanceRepository) GetForUpdate(ctx context.Context, userID string) (*entity.Balance, error) {
	return r.find(ctx, userID, true)
}

// Create inserts a zero balance unless the row already exists
func (r *BalanceRepository) Create(ctx context.Context, userID string) (*entity.Balance, bool, error) {
	now := r.timeProvider.Now().UTC()
	m := model.CreditBalance{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&m)
	if result.Error != nil {
		return nil, false, r.handleDatabaseError("creating balance", result.Error, userID)
	}

	if result.RowsAffected == 0 {
		existing, err := r.Get(ctx, userID)
		return existing, false, err
	}
	return toBalanceEntity(&m), true, nil
}

// Increment upserts the row, adding amount, and returns the new balance
func (r *BalanceRepository) Increment(ctx context.Context, userID string, amount int64) (int64, error) {
	now := r.timeProvider.Now().UTC()

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance":    gorm.Expr("credit_balances.balance + ?", amount),
				"updated_at": now,
			}),
		}).
		Create(&model.CreditBalance{
			UserID:    userID,
			Balance:   amount,
			CreatedAt: now,
			UpdatedAt: now,
		})
	if result.Error != nil {
		return 0, r.handleDatabaseError("incrementing balance", result.Error, userID)
	}

	b, err := r.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return b.Balance, nil
}

// DecrementIfSufficient subtracts amount where balance >= amount.
// RowsAffected == 0 is the miss signal and is returned as OutcomeNotFound.
func (r *BalanceRepository) DecrementIfSufficient(ctx context.Context, userID string, amount int64) (persistence.UpdateOutcome, int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.CreditBalance{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": r.timeProvider.Now().UTC(),
		})
	if result.Error != nil {
		return persistence.OutcomeNotFound, 0, r.handleDatabaseError("decrementing balance", result.Error, userID)
	}

	if result.RowsAffected == 0 {
		r.logger.Debug("Conditional decrement matched no balance", map[string]any{
			"userId": userID,
			"amount": amount,
		})
		return persistence.OutcomeNotFound, 0, nil
	}

	b, err := r.Get(ctx, userID)
	if err != nil {
		return persistence.OutcomeNotFound, 0, err
	}
	return persistence.OutcomeUpdated, b.Balance, nil
}
