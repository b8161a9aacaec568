package ledger

import (
	"context"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
)

// GetBalance returns the user's total; a user who was never credited has 0
func (e *Engine) GetBalance(ctx context.Context, userID string) (int64, error) {
	if err := validateUserID(userID); err != nil {
		return 0, err
	}

	balance, err := balanceOf(ctx, e.uow.GetBalanceRepository(ctx), userID, false)
	if err != nil {
		e.logger.Error("Failed to get balance", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
		return 0, err
	}
	return balance, nil
}

// GetBalanceBreakdown reads the balance and the free remainder from one consistent unit
func (e *Engine) GetBalanceBreakdown(ctx context.Context, userID string) (*entity.BalanceBreakdown, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	var breakdown entity.BalanceBreakdown
	err := e.uow.Execute(ctx, func(txCtx context.Context) error {
		total, err := balanceOf(txCtx, e.uow.GetBalanceRepository(txCtx), userID, false)
		if err != nil {
			return err
		}
		free, err := e.uow.GetTransactionRepository(txCtx).SumActiveRemaining(txCtx, userID, e.timeProvider.Now())
		if err != nil {
			return err
		}

		var anomaly bool
		breakdown, anomaly = entity.NewBalanceBreakdown(total, free)
		if anomaly {
			e.reportAnomaly(userID, total, free)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to compute balance breakdown", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil, err
	}
	return &breakdown, nil
}

// HasEnoughCredits reports whether the balance covers amount; equality is enough
func (e *Engine) HasEnoughCredits(ctx context.Context, userID string, amount int64) (bool, error) {
	if err := validateAmount(amount); err != nil {
		return false, err
	}
	balance, err := e.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// GetPurchasedCreditsRemaining returns the purchased part of the breakdown
func (e *Engine) GetPurchasedCreditsRemaining(ctx context.Context, userID string) (int64, error) {
	breakdown, err := e.GetBalanceBreakdown(ctx, userID)
	if err != nil {
		return 0, err
	}
	return breakdown.Purchased, nil
}

// HasPurchasedCredits reports whether any purchased credit remains
func (e *Engine) HasPurchasedCredits(ctx context.Context, userID string) (bool, error) {
	purchased, err := e.GetPurchasedCreditsRemaining(ctx, userID)
	if err != nil {
		return false, err
	}
	return purchased > 0, nil
}

// GetExpiringCredits projects the free remainder lapsing within each window from now
func (e *Engine) GetExpiringCredits(ctx context.Context, userID string, windows ...time.Duration) (*entity.ExpiringCredits, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		windows = e.expiryWindows
	}
	for _, w := range windows {
		if w <= 0 {
			return nil, errs.NewValidationError("window", w, errs.ErrInvalidExpiry)
		}
	}

	widest := windows[0]
	for _, w := range windows[1:] {
		if w > widest {
			widest = w
		}
	}

	now := e.timeProvider.Now()
	grants, err := e.uow.GetTransactionRepository(ctx).ExpiringGrants(ctx, userID, now, now.Add(widest))
	if err != nil {
		e.logger.Error("Failed to load expiring grants", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil, err
	}

	expiring := entity.BuildExpiringCredits(grants, now, windows)
	return &expiring, nil
}
