package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/model"
)

// OutboxRepository implements persistence.OutboxRepository using GORM
type OutboxRepository struct {
	db              *gorm.DB
	timeProvider    coreport.TimeProvider
	logger          coreport.Logger
	errorClassifier *ErrorClassifier
}

var _ persistence.OutboxRepository = (*OutboxRepository)(nil)

// NewOutboxRepository creates a new OutboxRepository instance
func NewOutboxRepository(db *gorm.DB, timeProvider coreport.TimeProvider, logger coreport.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:              db,
		timeProvider:    timeProvider,
		logger:          logger,
		errorClassifier: NewErrorClassifier(),
	}
}

func toOutboxEntity(m *model.OutboxMessage) *entity.OutboxMessage {
	return &entity.OutboxMessage{
		ID:         m.ID,
		EventID:    m.EventID,
		Topic:      m.Topic,
		Key:        m.MsgKey,
		Payload:    m.Payload,
		Status:     m.Status,
		RetryCount: m.RetryCount,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func (r *OutboxRepository) mapError(operation string, err error) error {
	r.logger.Error("Outbox database error", map[string]any{
		"operation": operation,
		"error":     err.Error(),
	})
	return r.errorClassifier.MapError(err)
}

// Enqueue stores a pending message and assigns its ID
func (r *OutboxRepository) Enqueue(ctx context.Context, msg *entity.OutboxMessage) error {
	m := model.OutboxMessage{
		EventID:    msg.EventID,
		Topic:      msg.Topic,
		MsgKey:     msg.Key,
		Payload:    msg.Payload,
		Status:     msg.Status,
		RetryCount: msg.RetryCount,
		CreatedAt:  msg.CreatedAt.UTC(),
		UpdatedAt:  msg.UpdatedAt.UTC(),
	}
	if m.Status == "" {
		m.Status = entity.OutboxStatusPending
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return r.mapError("enqueue", err)
	}
	msg.ID = m.ID
	return nil
}

// Pending returns up to limit pending messages, oldest first
func (r *OutboxRepository) Pending(ctx context.Context, limit int) ([]*entity.OutboxMessage, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", entity.OutboxStatusPending).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.OutboxMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, r.mapError("pending", err)
	}

	out := make([]*entity.OutboxMessage, len(rows))
	for i := range rows {
		out[i] = toOutboxEntity(&rows[i])
	}
	return out, nil
}

func (r *OutboxRepository) update(ctx context.Context, operation string, id uint64, values map[string]any) error {
	values["updated_at"] = r.timeProvider.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return r.mapError(operation, result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.ErrOutboxMessageNotFound
	}
	return nil
}

// MarkSent flags a message as published
func (r *OutboxRepository) MarkSent(ctx context.Context, id uint64) error {
	return r.update(ctx, "mark sent", id, map[string]any{
		"status": entity.OutboxStatusSent,
	})
}

// IncrementRetry records a failed publish attempt
func (r *OutboxRepository) IncrementRetry(ctx context.Context, id uint64) error {
	return r.update(ctx, "increment retry", id, map[string]any{
		"retry_count": gorm.Expr("retry_count + 1"),
	})
}

// MarkFailed gives up on a message after its last attempt
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uint64) error {
	return r.update(ctx, "mark failed", id, map[string]any{
		"status":      entity.OutboxStatusFailed,
		"retry_count": gorm.Expr("retry_count + 1"),
	})
}
