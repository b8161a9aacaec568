package usecase

import (
	"context"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// LedgerUseCase is the credit ledger engine consumed by metered operations and policies
type LedgerUseCase interface {
	// GetBalance returns the current total, or 0 for a user with no balance row
	GetBalance(ctx context.Context, userID string) (int64, error)

	// GetBalanceBreakdown splits the balance into free and purchased credits
	GetBalanceBreakdown(ctx context.Context, userID string) (*entity.BalanceBreakdown, error)

	// HasEnoughCredits reports balance >= amount
	HasEnoughCredits(ctx context.Context, userID string, amount int64) (bool, error)

	// GetPurchasedCreditsRemaining returns the purchased part of the breakdown
	GetPurchasedCreditsRemaining(ctx context.Context, userID string) (int64, error)

	// HasPurchasedCredits reports whether any purchased credit remains
	HasPurchasedCredits(ctx context.Context, userID string) (bool, error)

	// GetExpiringCredits projects free credit lapsing in each window; no windows means 7 and 30 days
	GetExpiringCredits(ctx context.Context, userID string, windows ...time.Duration) (*entity.ExpiringCredits, error)

	// InitializeBalance creates a zero balance row if none exists
	InitializeBalance(ctx context.Context, userID string) (*entity.Balance, error)

	// AddCredits grants credits and returns the new balance
	AddCredits(ctx context.Context, req entity.GrantRequest) (int64, error)

	// Grant grants credits and returns the new balance with the stored transaction
	Grant(ctx context.Context, req entity.GrantRequest) (*entity.GrantResult, error)

	// DeductCredits checks then spends inside one unit, failing with insufficient credits
	DeductCredits(ctx context.Context, req entity.SpendRequest) (int64, error)

	// DeductCreditsAtomic spends with a single conditional update.
	// Insufficient funds, including losing a race, come back as Success=false rather than an error.
	DeductCreditsAtomic(ctx context.Context, req entity.SpendRequest) (*entity.AtomicDeductResult, error)

	// DeductCreditsWithType spends according to preference and reports whether free credit paid
	DeductCreditsWithType(ctx context.Context, req entity.SpendRequest, preference entity.CreditPreference) (*entity.TypedDeductResult, error)
}
