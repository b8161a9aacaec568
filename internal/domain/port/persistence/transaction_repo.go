package persistence

import (
	"context"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// TransactionFilter narrows and paginates a history read
type TransactionFilter struct {
	Type   entity.TransactionType // empty for all
	Limit  int
	Offset int
}

// TransactionRepository defines operations over the append-only transaction log
type TransactionRepository interface {
	// Append stores a new entry and assigns its ID
	//
	// Possible errors:
	// - ErrConstraintViolation: If the entry violates a column constraint
	// - ErrDatabaseConnection: If database connection fails
	Append(ctx context.Context, tx *entity.Transaction) error

	// List returns one page of a user's history, newest first, and the total matching count
	List(ctx context.Context, userID string, filter TransactionFilter) ([]*entity.Transaction, int64, error)

	// ActiveGrants returns free grants with a positive remainder that have not expired at now, oldest first
	ActiveGrants(ctx context.Context, userID string, now time.Time) ([]*entity.Transaction, error)

	// SumActiveRemaining sums the remainder of the grants ActiveGrants would return
	SumActiveRemaining(ctx context.Context, userID string, now time.Time) (int64, error)

	// ConsumeGrant lowers a grant's remainder by amount, flooring at zero
	//
	// Possible errors:
	// - ErrTransactionNotFound: If no free grant has that ID
	ConsumeGrant(ctx context.Context, transactionID uint64, amount int64) error

	// ExpiringGrants returns active grants whose expiry falls in (now, until], soonest first
	ExpiringGrants(ctx context.Context, userID string, now, until time.Time) ([]*entity.Transaction, error)

	// SumByType returns the signed amount total per type over the full history
	SumByType(ctx context.Context, userID string) (map[entity.TransactionType]int64, error)

	// SumAmounts returns the signed total of all of a user's entries
	SumAmounts(ctx context.Context, userID string) (int64, error)
}
