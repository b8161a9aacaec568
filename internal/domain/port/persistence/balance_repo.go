package persistence

import (
	"context"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// UpdateOutcome tags the result of a conditional balance update
type UpdateOutcome int

const (
	// OutcomeUpdated means the condition held and the row was changed
	OutcomeUpdated UpdateOutcome = iota
	// OutcomeNotFound means no row matched the condition; nothing changed
	OutcomeNotFound
)

// String returns a readable outcome name
func (o UpdateOutcome) String() string {
	if o == OutcomeUpdated {
		return "updated"
	}
	return "not_found"
}

// BalanceRepository defines the atomic primitives over the per-user balance row
type BalanceRepository interface {
	// Get returns the balance row
	//
	// Possible errors:
	// - ErrBalanceNotFound: If the user has never had a balance-affecting event
	// - ErrDatabaseConnection: If database connection fails
	Get(ctx context.Context, userID string) (*entity.Balance, error)

	// GetForUpdate returns the balance row and locks it until the surrounding unit of work ends
	//
	// Possible errors:
	// - ErrBalanceNotFound: If no row exists
	// - ErrConcurrencyConflict: If the lock could not be acquired
	// - ErrDatabaseConnection: If database connection fails
	GetForUpdate(ctx context.Context, userID string) (*entity.Balance, error)

	// Create inserts a zero balance if none exists; created reports whether a row was inserted
	//
	// Possible errors:
	// - ErrDatabaseConnection: If database connection fails
	Create(ctx context.Context, userID string) (balance *entity.Balance, created bool, err error)

	// Increment upserts the row, adding amount, and returns the new balance
	//
	// Possible errors:
	// - ErrConcurrencyConflict: If a concurrent writer aborted the statement
	// - ErrDatabaseConnection: If database connection fails
	Increment(ctx context.Context, userID string, amount int64) (int64, error)

	// DecrementIfSufficient subtracts amount only where balance >= amount.
	// OutcomeNotFound is returned, without an error, when no row satisfied the condition;
	// the returned balance is only meaningful for OutcomeUpdated.
	//
	// Possible errors:
	// - ErrConcurrencyConflict: If a concurrent writer aborted the statement
	// - ErrDatabaseConnection: If database connection fails
	DecrementIfSufficient(ctx context.Context, userID string, amount int64) (UpdateOutcome, int64, error)
}
