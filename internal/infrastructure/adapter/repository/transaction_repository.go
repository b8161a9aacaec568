package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/model"
)

// TransactionRepository implements persistence.TransactionRepository using GORM
type TransactionRepository struct {
	db              *gorm.DB
	logger          coreport.Logger
	errorClassifier *ErrorClassifier
}

var _ persistence.TransactionRepository = (*TransactionRepository)(nil)

// NewTransactionRepository creates a new TransactionRepository instance
func NewTransactionRepository(db *gorm.DB, logger coreport.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:              db,
		logger:          logger,
		errorClassifier: NewErrorClassifier(),
	}
}

func freeTypeNames() []string {
	types := entity.FreeTransactionTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

func toTransactionModel(tx *entity.Transaction) model.CreditTransaction {
	m := model.CreditTransaction{
		UserID:          tx.UserID,
		Amount:          tx.Amount,
		Type:            string(tx.Type),
		Description:     tx.Description,
		RemainingAmount: tx.RemainingAmount,
		CreatedAt:       tx.CreatedAt.UTC(),
	}
	if tx.Metadata != nil {
		m.Metadata = datatypes.JSONMap(tx.Metadata)
	}
	if tx.ExpiresAt != nil {
		expiry := tx.ExpiresAt.UTC()
		m.ExpiresAt = &expiry
	}
	return m
}

func toTransactionEntity(m *model.CreditTransaction) *entity.Transaction {
	tx := &entity.Transaction{
		ID:              m.ID,
		UserID:          m.UserID,
		Amount:          m.Amount,
		Type:            entity.TransactionType(m.Type),
		Description:     m.Description,
		RemainingAmount: m.RemainingAmount,
		ExpiresAt:       m.ExpiresAt,
		CreatedAt:       m.CreatedAt,
	}
	if len(m.Metadata) > 0 {
		tx.Metadata = entity.Metadata(m.Metadata)
	}
	return tx
}

func toTransactionEntities(rows []model.CreditTransaction) []*entity.Transaction {
	out := make([]*entity.Transaction, len(rows))
	for i := range rows {
		out[i] = toTransactionEntity(&rows[i])
	}
	return out
}

func (r *TransactionRepository) handleDatabaseError(operation string, err error, userID string) error {
	r.logger.Error(fmt.Sprintf("Database error when %s", operation), map[string]any{
		"userId": userID,
		"error":  err.Error(),
	})
	return r.errorClassifier.MapError(err)
}

// activeGrants scopes a query to the user's free grants with credit left at now
func (r *TransactionRepository) activeGrants(ctx context.Context, userID string, now time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.CreditTransaction{}).
		Where("user_id = ? AND type IN ? AND remaining_amount > 0", userID, freeTypeNames()).
		Where("(expires_at IS NULL OR expires_at > ?)", now.UTC())
}

// Append stores a new entry and assigns its ID
func (r *TransactionRepository) Append(ctx context.Context, tx *entity.Transaction) error {
	m := toTransactionModel(tx)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return r.handleDatabaseError("appending transaction", err, tx.UserID)
	}
	tx.ID = m.ID

	r.logger.Debug("Transaction appended", map[string]any{
		"userId":        tx.UserID,
		"transactionId": tx.ID,
		"type":          m.Type,
		"amount":        m.Amount,
	})
	return nil
}

// List returns one page of a user's history, newest first
func (r *TransactionRepository) List(ctx context.Context, userID string, filter persistence.TransactionFilter) ([]*entity.Transaction, int64, error) {
	scope := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.CreditTransaction{}).Where("user_id = ?", userID)
		if filter.Type != "" {
			q = q.Where("type = ?", string(filter.Type))
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, r.handleDatabaseError("counting transactions", err, userID)
	}

	query := scope().Order("created_at DESC").Order("id DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.CreditTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, r.handleDatabaseError("listing transactions", err, userID)
	}
	return toTransactionEntities(rows), total, nil
}

// ActiveGrants returns the free grants still holding credit at now, oldest first
func (r *TransactionRepository) ActiveGrants(ctx context.Context, userID string, now time.Time) ([]*entity.Transaction, error) {
	var rows []model.CreditTransaction
	err := r.activeGrants(ctx, userID, now).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.handleDatabaseError("loading active grants", err, userID)
	}
	return toTransactionEntities(rows), nil
}

// SumActiveRemaining sums the remainder of the user's active free grants
func (r *TransactionRepository) SumActiveRemaining(ctx context.Context, userID string, now time.Time) (int64, error) {
	var sum int64
	err := r.activeGrants(ctx, userID, now).
		Select("COALESCE(SUM(remaining_amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, r.handleDatabaseError("summing free remainder", err, userID)
	}
	return sum, nil
}

// ConsumeGrant lowers a grant's remainder by amount, flooring at zero
func (r *TransactionRepository) ConsumeGrant(ctx context.Context, transactionID uint64, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.CreditTransaction{}).
		Where("id = ? AND remaining_amount IS NOT NULL", transactionID).
		Update("remaining_amount", gorm.Expr(
			"CASE WHEN remaining_amount > ? THEN remaining_amount - ? ELSE 0 END", amount, amount,
		))
	if result.Error != nil {
		return r.handleDatabaseError("consuming grant", result.Error, "")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: grant %d", errs.ErrTransactionNotFound, transactionID)
	}
	return nil
}

// ExpiringGrants returns active grants expiring in (now, until], soonest first
func (r *TransactionRepository) ExpiringGrants(ctx context.Context, userID string, now, until time.Time) ([]*entity.Transaction, error) {
	var rows []model.CreditTransaction
	err := r.activeGrants(ctx, userID, now).
		Where("expires_at IS NOT NULL AND expires_at <= ?", until.UTC()).
		Order("expires_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.handleDatabaseError("loading expiring grants", err, userID)
	}
	return toTransactionEntities(rows), nil
}

// SumByType returns the signed total per transaction type
func (r *TransactionRepository) SumByType(ctx context.Context, userID string) (map[entity.TransactionType]int64, error) {
	var rows []struct {
		Type  string
		Total int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.CreditTransaction{}).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ?", userID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, r.handleDatabaseError("summing by type", err, userID)
	}

	sums := make(map[entity.TransactionType]int64, len(rows))
	for _, row := range rows {
		sums[entity.TransactionType(row.Type)] = row.Total
	}
	return sums, nil
}

// SumAmounts returns the signed total of every entry of the user
func (r *TransactionRepository) SumAmounts(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.CreditTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	if err != nil {
		return 0, r.handleDatabaseError("summing amounts", err, userID)
	}
	return sum, nil
}
