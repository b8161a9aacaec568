package memory

import (
	"context"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
)

type outboxRepository struct {
	store *Store
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg *entity.OutboxMessage) error {
	defer r.store.write(ctx)()

	r.store.nextOutboxID++
	msg.ID = r.store.nextOutboxID
	stored := *msg
	r.store.outbox = append(r.store.outbox, &stored)
	return nil
}

func (r *outboxRepository) Pending(ctx context.Context, limit int) ([]*entity.OutboxMessage, error) {
	defer r.store.read(ctx)()

	var out []*entity.OutboxMessage
	for _, msg := range r.store.outbox {
		if msg.Status != entity.OutboxStatusPending {
			continue
		}
		m := *msg
		out = append(out, &m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepository) update(ctx context.Context, id uint64, apply func(*entity.OutboxMessage)) error {
	defer r.store.write(ctx)()

	for _, msg := range r.store.outbox {
		if msg.ID == id {
			apply(msg)
			msg.UpdatedAt = r.store.timeProvider.Now()
			return nil
		}
	}
	return errs.ErrOutboxMessageNotFound
}

func (r *outboxRepository) MarkSent(ctx context.Context, id uint64) error {
	return r.update(ctx, id, func(m *entity.OutboxMessage) { m.Status = entity.OutboxStatusSent })
}

func (r *outboxRepository) IncrementRetry(ctx context.Context, id uint64) error {
	return r.update(ctx, id, func(m *entity.OutboxMessage) { m.RetryCount++ })
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uint64) error {
	return r.update(ctx, id, func(m *entity.OutboxMessage) {
		m.Status = entity.OutboxStatusFailed
		m.RetryCount++
	})
}
