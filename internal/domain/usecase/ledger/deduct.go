package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
)

// DeductCredits checks the balance and spends inside one unit.
// It does not touch free grant remainders.
func (e *Engine) DeductCredits(ctx context.Context, req entity.SpendRequest) (int64, error) {
	start := e.timeProvider.Now()
	if err := validateSpend(req); err != nil {
		e.observe(OpDeductCredits, coreport.OutcomeInvalid, start)
		e.logFailure(OpDeductCredits, req.UserID, err)
		return 0, err
	}

	var newBalance int64
	err := e.uow.Execute(ctx, func(txCtx context.Context) error {
		balances := e.uow.GetBalanceRepository(txCtx)
		current, err := balanceOf(txCtx, balances, req.UserID, true)
		if err != nil {
			return err
		}
		if current < req.Amount {
			return errs.NewInsufficientCreditsError(req.UserID, req.Amount, current, errs.SourceTotal)
		}

		balance, err := decrement(txCtx, balances, req.UserID, req.Amount)
		if err != nil {
			return err
		}
		if _, err := e.appendSpend(txCtx, req, req.Metadata, balance, ""); err != nil {
			return err
		}

		newBalance = balance
		return nil
	})
	e.observe(OpDeductCredits, outcomeOf(err), start)
	if err != nil {
		e.logFailure(OpDeductCredits, req.UserID, err)
		return 0, err
	}

	e.committed(ctx, req.UserID, coreport.DirectionSpent, req.Type, req.Amount)
	e.logger.Info("Credits deducted", map[string]any{
		"userId":     req.UserID,
		"amount":     req.Amount,
		"type":       string(req.Type),
		"newBalance": newBalance,
	})
	return newBalance, nil
}

// DeductCreditsAtomic spends with a single conditional decrement.
// A decrement that matches no row is reported as Success=false with a fresh balance.
func (e *Engine) DeductCreditsAtomic(ctx context.Context, req entity.SpendRequest) (*entity.AtomicDeductResult, error) {
	start := e.timeProvider.Now()
	if err := validateSpend(req); err != nil {
		e.observe(OpDeductAtomic, coreport.OutcomeInvalid, start)
		e.logFailure(OpDeductAtomic, req.UserID, err)
		return nil, err
	}

	var result *entity.AtomicDeductResult
	err := e.uow.Execute(ctx, func(txCtx context.Context) error {
		outcome, balance, err := e.uow.GetBalanceRepository(txCtx).DecrementIfSufficient(txCtx, req.UserID, req.Amount)
		if err != nil {
			return err
		}
		if outcome == persistence.OutcomeNotFound {
			return errConditionalMiss
		}

		tx, err := e.appendSpend(txCtx, req, req.Metadata, balance, "")
		if err != nil {
			return err
		}
		result = &entity.AtomicDeductResult{Success: true, Balance: balance, Transaction: tx}
		return nil
	})

	if errors.Is(err, errConditionalMiss) {
		current, ferr := e.GetBalance(ctx, req.UserID)
		if ferr != nil {
			e.observe(OpDeductAtomic, coreport.OutcomeError, start)
			return nil, ferr
		}
		e.observe(OpDeductAtomic, coreport.OutcomeInsufficient, start)
		e.logger.Warn("Atomic deduction matched no balance", map[string]any{
			"userId":   req.UserID,
			"required": req.Amount,
			"balance":  current,
		})
		return &entity.AtomicDeductResult{
			Success: false,
			Balance: current,
			Error:   errs.ErrInsufficientCredits.Error(),
		}, nil
	}

	e.observe(OpDeductAtomic, outcomeOf(err), start)
	if err != nil {
		e.logFailure(OpDeductAtomic, req.UserID, err)
		return nil, err
	}

	e.committed(ctx, req.UserID, coreport.DirectionSpent, req.Type, req.Amount)
	e.logger.Info("Credits deducted atomically", map[string]any{
		"userId":     req.UserID,
		"amount":     req.Amount,
		"type":       string(req.Type),
		"newBalance": result.Balance,
	})
	return result, nil
}

// DeductCreditsWithType spends according to preference.
// Auto draws from free grants oldest first and covers any shortfall from purchased credit;
// any free portion marks the result for a watermark.
func (e *Engine) DeductCreditsWithType(ctx context.Context, req entity.SpendRequest, preference entity.CreditPreference) (*entity.TypedDeductResult, error) {
	start := e.timeProvider.Now()
	if preference == "" {
		preference = entity.PreferAuto
	}
	err := validateSpend(req)
	if err == nil && !preference.IsValid() {
		err = errs.NewValidationError("preferredType", preference, errs.ErrInvalidCreditPreference)
	}
	if err != nil {
		e.observe(OpDeductWithType, coreport.OutcomeInvalid, start)
		e.logFailure(OpDeductWithType, req.UserID, err)
		return nil, err
	}

	var result *entity.TypedDeductResult
	err = e.uow.Execute(ctx, func(txCtx context.Context) error {
		balances := e.uow.GetBalanceRepository(txCtx)
		transactions := e.uow.GetTransactionRepository(txCtx)

		total, err := balanceOf(txCtx, balances, req.UserID, true)
		if err != nil {
			return err
		}
		now := e.timeProvider.Now()
		grants, err := transactions.ActiveGrants(txCtx, req.UserID, now)
		if err != nil {
			return err
		}
		queue := entity.NewGrantQueue(grants, now)
		breakdown, anomaly := entity.NewBalanceBreakdown(total, queue.Available())
		if anomaly {
			e.reportAnomaly(req.UserID, total, queue.Available())
		}

		var (
			plan     []entity.GrantConsumption
			freeUsed int64
		)
		switch preference {
		case entity.PreferFree:
			if breakdown.Free < req.Amount {
				return errs.NewInsufficientCreditsError(req.UserID, req.Amount, breakdown.Free, errs.SourceFree)
			}
			plan, freeUsed = queue.Plan(req.Amount)
		case entity.PreferPurchased:
			if breakdown.Purchased < req.Amount {
				return errs.NewInsufficientCreditsError(req.UserID, req.Amount, breakdown.Purchased, errs.SourcePurchased)
			}
		default:
			if total < req.Amount {
				return errs.NewInsufficientCreditsError(req.UserID, req.Amount, total, errs.SourceTotal)
			}
			plan, freeUsed = queue.Plan(req.Amount)
		}
		purchasedUsed := req.Amount - freeUsed

		balance, err := decrement(txCtx, balances, req.UserID, req.Amount)
		if err != nil {
			return err
		}
		for _, c := range plan {
			if err := transactions.ConsumeGrant(txCtx, c.TransactionID, c.Amount); err != nil {
				return err
			}
		}

		kind := entity.KindPurchased
		if freeUsed > 0 {
			kind = entity.KindFree
		}
		metadata := req.Metadata.Merge(entity.Metadata{
			"creditSource":  string(kind),
			"preference":    string(preference),
			"freeUsed":      freeUsed,
			"purchasedUsed": purchasedUsed,
		})
		tx, err := e.appendSpend(txCtx, req, metadata, balance, kind)
		if err != nil {
			return err
		}

		result = &entity.TypedDeductResult{
			Balance:        balance,
			UsedCreditType: kind,
			ApplyWatermark: freeUsed > 0,
			FreeUsed:       freeUsed,
			PurchasedUsed:  purchasedUsed,
			Consumed:       plan,
			Transaction:    tx,
		}
		return nil
	})
	e.observe(OpDeductWithType, outcomeOf(err), start)
	if err != nil {
		e.logFailure(OpDeductWithType, req.UserID, err)
		return nil, err
	}

	e.committed(ctx, req.UserID, coreport.DirectionSpent, req.Type, req.Amount)
	e.logger.Info("Credits deducted", map[string]any{
		"userId":         req.UserID,
		"amount":         req.Amount,
		"type":           string(req.Type),
		"usedCreditType": string(result.UsedCreditType),
		"freeUsed":       result.FreeUsed,
		"purchasedUsed":  result.PurchasedUsed,
		"newBalance":     result.Balance,
	})
	return result, nil
}

// decrement applies the conditional decrement after the caller already checked the balance.
// A miss here means the row changed under the unit, which the store may retry.
func decrement(ctx context.Context, balances persistence.BalanceRepository, userID string, amount int64) (int64, error) {
	outcome, balance, err := balances.DecrementIfSufficient(ctx, userID, amount)
	if err != nil {
		return 0, err
	}
	if outcome == persistence.OutcomeNotFound {
		return 0, fmt.Errorf("%w: balance changed during deduction for user %s", errs.ErrConcurrencyConflict, userID)
	}
	return balance, nil
}

func (e *Engine) appendSpend(ctx context.Context, req entity.SpendRequest, metadata entity.Metadata, balance int64, kind entity.CreditKind) (*entity.Transaction, error) {
	tx, err := entity.NewSpendTransaction(req.UserID, req.Amount, req.Type, req.Description, metadata, e.timeProvider.Now())
	if err != nil {
		return nil, err
	}
	if err := e.uow.GetTransactionRepository(ctx).Append(ctx, tx); err != nil {
		return nil, err
	}
	if err := e.enqueueEvent(ctx, entity.EventCreditsDeducted, tx, balance, kind); err != nil {
		return nil, err
	}
	return tx, nil
}
