package persistence

import (
	"context"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// OutboxRepository stores ledger events until the relay publishes them
type OutboxRepository interface {
	// Enqueue stores a pending message and assigns its ID
	Enqueue(ctx context.Context, msg *entity.OutboxMessage) error

	// Pending returns up to limit pending messages, oldest first
	Pending(ctx context.Context, limit int) ([]*entity.OutboxMessage, error)

	// MarkSent flags a message as published
	MarkSent(ctx context.Context, id uint64) error

	// IncrementRetry records a failed publish attempt
	IncrementRetry(ctx context.Context, id uint64) error

	// MarkFailed gives up on a message after its last attempt
	MarkFailed(ctx context.Context, id uint64) error
}
