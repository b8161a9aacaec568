package persistence

import (
	"context"
)

// UnitOfWork groups repository calls into one atomic unit against the store
type UnitOfWork interface {
	// Execute runs fn inside a transaction and commits when it returns nil.
	// Any error rolls the whole unit back. Implementations may re-run fn when the
	// store reports a retryable conflict, so fn must not have effects outside the store.
	// Calling Execute with a context that is already inside a unit joins that unit.
	Execute(ctx context.Context, fn func(ctx context.Context) error) error

	// GetBalanceRepository returns a balance repository bound to the unit in ctx, if any
	GetBalanceRepository(ctx context.Context) BalanceRepository

	// GetTransactionRepository returns a transaction repository bound to the unit in ctx, if any
	GetTransactionRepository(ctx context.Context) TransactionRepository

	// GetOutboxRepository returns an outbox repository bound to the unit in ctx, if any
	GetOutboxRepository(ctx context.Context) OutboxRepository
}
