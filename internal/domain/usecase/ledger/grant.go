package ledger

import (
	"context"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

// InitializeBalance creates the user's zero balance row if it does not exist yet
func (e *Engine) InitializeBalance(ctx context.Context, userID string) (*entity.Balance, error) {
	start := e.timeProvider.Now()
	if err := validateUserID(userID); err != nil {
		e.observe(OpInitializeBalance, coreport.OutcomeInvalid, start)
		return nil, err
	}

	balance, created, err := e.uow.GetBalanceRepository(ctx).Create(ctx, userID)
	e.observe(OpInitializeBalance, outcomeOf(err), start)
	if err != nil {
		e.logFailure(OpInitializeBalance, userID, err)
		return nil, err
	}

	if created {
		e.logger.Info("Balance initialized", map[string]any{
			"userId": userID,
		})
	}
	return balance, nil
}

// AddCredits grants credits and returns the new balance
func (e *Engine) AddCredits(ctx context.Context, req entity.GrantRequest) (int64, error) {
	result, err := e.Grant(ctx, req)
	if err != nil {
		return 0, err
	}
	return result.Balance, nil
}

// Grant increments the balance and appends the grant entry in one unit.
// Free grants get their remainder and expiry; purchases get neither.
func (e *Engine) Grant(ctx context.Context, req entity.GrantRequest) (*entity.GrantResult, error) {
	start := e.timeProvider.Now()
	if err := validateGrant(req); err != nil {
		e.observe(OpAddCredits, coreport.OutcomeInvalid, start)
		e.logFailure(OpAddCredits, req.UserID, err)
		return nil, err
	}

	var result *entity.GrantResult
	err := e.uow.Execute(ctx, func(txCtx context.Context) error {
		now := e.timeProvider.Now()
		expiresAt, err := entity.ExpiryFromDays(now, req.ExpiresInDays)
		if err != nil {
			return err
		}
		tx, err := entity.NewGrantTransaction(req.UserID, req.Amount, req.Type, req.Description, expiresAt, req.Metadata, now)
		if err != nil {
			return err
		}

		balance, err := e.uow.GetBalanceRepository(txCtx).Increment(txCtx, req.UserID, req.Amount)
		if err != nil {
			return err
		}
		if err := e.uow.GetTransactionRepository(txCtx).Append(txCtx, tx); err != nil {
			return err
		}
		if err := e.enqueueEvent(txCtx, entity.EventCreditsGranted, tx, balance, ""); err != nil {
			return err
		}

		result = &entity.GrantResult{Balance: balance, Transaction: tx}
		return nil
	})
	e.observe(OpAddCredits, outcomeOf(err), start)
	if err != nil {
		e.logFailure(OpAddCredits, req.UserID, err)
		return nil, err
	}

	e.committed(ctx, req.UserID, coreport.DirectionGranted, req.Type, req.Amount)
	e.logger.Info("Credits granted", map[string]any{
		"userId":        req.UserID,
		"amount":        req.Amount,
		"type":          string(req.Type),
		"transactionId": result.Transaction.ID,
		"newBalance":    result.Balance,
	})
	return result, nil
}
