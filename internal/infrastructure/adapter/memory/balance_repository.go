package memory

import (
	"context"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
)

type balanceRepository struct {
	store *Store
}

func (r *balanceRepository) Get(ctx context.Context, userID string) (*entity.Balance, error) {
	defer r.store.read(ctx)()

	b, ok := r.store.balances[userID]
	if !ok {
		return nil, errs.ErrBalanceNotFound
	}
	out := *b
	return &out, nil
}

// GetForUpdate needs no extra locking: a unit of work already holds the store exclusively
func (r *balanceRepository) GetForUpdate(ctx context.Context, userID string) (*entity.Balance, error) {
	return r.Get(ctx, userID)
}

func (r *balanceRepository) Create(ctx context.Context, userID string) (*entity.Balance, bool, error) {
	defer r.store.write(ctx)()

	if b, ok := r.store.balances[userID]; ok {
		out := *b
		return &out, false, nil
	}
	now := r.store.timeProvider.Now()
	b := &entity.Balance{UserID: userID, CreatedAt: now, UpdatedAt: now}
	r.store.balances[userID] = b
	out := *b
	return &out, true, nil
}

func (r *balanceRepository) Increment(ctx context.Context, userID string, amount int64) (int64, error) {
	defer r.store.write(ctx)()

	now := r.store.timeProvider.Now()
	b, ok := r.store.balances[userID]
	if !ok {
		b = &entity.Balance{UserID: userID, CreatedAt: now}
		r.store.balances[userID] = b
	}
	b.Balance += amount
	b.UpdatedAt = now
	return b.Balance, nil
}

func (r *balanceRepository) DecrementIfSufficient(ctx context.Context, userID string, amount int64) (persistence.UpdateOutcome, int64, error) {
	defer r.store.write(ctx)()

	b, ok := r.store.balances[userID]
	if !ok || b.Balance < amount {
		return persistence.OutcomeNotFound, 0, nil
	}
	b.Balance -= amount
	b.UpdatedAt = r.store.timeProvider.Now()
	return persistence.OutcomeUpdated, b.Balance, nil
}
