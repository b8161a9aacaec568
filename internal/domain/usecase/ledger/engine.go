// Package ledger implements the credit ledger engine: balance queries, grants and
// the three deduction primitives over the persistence unit of work.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/cache"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
)

// Operation names used for metrics and logs
const (
	OpInitializeBalance = "initialize_balance"
	OpAddCredits        = "add_credits"
	OpDeductCredits     = "deduct_credits"
	OpDeductAtomic      = "deduct_credits_atomic"
	OpDeductWithType    = "deduct_credits_with_type"
)

// Engine implements usecase.LedgerUseCase
type Engine struct {
	uow           persistence.UnitOfWork
	timeProvider  coreport.TimeProvider
	logger        coreport.Logger
	metrics       coreport.Metrics
	statsCache    cache.StatsCache
	eventTopic    string
	expiryWindows []time.Duration
}

// Option configures optional collaborators of the Engine
type Option func(*Engine)

// WithMetrics reports operations and credit flows to m
func WithMetrics(m coreport.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithStatsCache invalidates the user's cached stats after every committed mutation
func WithStatsCache(c cache.StatsCache) Option {
	return func(e *Engine) { e.statsCache = c }
}

// WithEvents writes a ledger event to the outbox for topic with every mutation
func WithEvents(topic string) Option {
	return func(e *Engine) { e.eventTopic = topic }
}

// WithExpiryWindows sets the windows GetExpiringCredits projects when called without any
func WithExpiryWindows(windows ...time.Duration) Option {
	return func(e *Engine) {
		if len(windows) > 0 {
			e.expiryWindows = windows
		}
	}
}

var _ usecase.LedgerUseCase = (*Engine)(nil)

// NewEngine creates a ledger engine over uow
func NewEngine(
	uow persistence.UnitOfWork,
	timeProvider coreport.TimeProvider,
	logger coreport.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		uow:           uow,
		timeProvider:  timeProvider,
		logger:        logger,
		expiryWindows: entity.DefaultExpiryWindows(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// errConditionalMiss aborts an atomic deduction whose conditional decrement matched no row
var errConditionalMiss = errors.New("conditional decrement matched no rows")

func validateUserID(userID string) error {
	if userID == "" {
		return errs.NewValidationError("userId", userID, errs.ErrInvalidUserID)
	}
	return nil
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return errs.NewValidationError("amount", amount, errs.ErrInvalidAmount)
	}
	return nil
}

func validateGrant(req entity.GrantRequest) error {
	if err := validateUserID(req.UserID); err != nil {
		return err
	}
	if err := validateAmount(req.Amount); err != nil {
		return err
	}
	if !req.Type.IsGrant() {
		return errs.NewValidationError("type", req.Type, errs.ErrInvalidTransactionType)
	}
	if req.ExpiresInDays != nil && *req.ExpiresInDays <= 0 {
		return errs.NewValidationError("expiresInDays", *req.ExpiresInDays, errs.ErrInvalidExpiry)
	}
	return nil
}

func validateSpend(req entity.SpendRequest) error {
	if err := validateUserID(req.UserID); err != nil {
		return err
	}
	if err := validateAmount(req.Amount); err != nil {
		return err
	}
	if !req.Type.IsSpend() {
		return errs.NewValidationError("type", req.Type, errs.ErrInvalidTransactionType)
	}
	return nil
}

// balanceOf reads the user's balance, treating a missing row as zero
func balanceOf(ctx context.Context, repo persistence.BalanceRepository, userID string, forUpdate bool) (int64, error) {
	var (
		b   *entity.Balance
		err error
	)
	if forUpdate {
		b, err = repo.GetForUpdate(ctx, userID)
	} else {
		b, err = repo.Get(ctx, userID)
	}
	if err != nil {
		if errors.Is(err, errs.ErrBalanceNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return b.Balance, nil
}

// enqueueEvent stores the mutation's event in the same unit; a no-op without a topic
func (e *Engine) enqueueEvent(ctx context.Context, eventType string, tx *entity.Transaction, balance int64, kind entity.CreditKind) error {
	if e.eventTopic == "" {
		return nil
	}
	msg, err := entity.NewOutboxMessage(e.eventTopic, entity.LedgerEvent{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		UserID:         tx.UserID,
		TransactionID:  tx.ID,
		Type:           tx.Type,
		Amount:         tx.Amount,
		Balance:        balance,
		UsedCreditType: kind,
		OccurredAt:     tx.CreatedAt,
	})
	if err != nil {
		return err
	}
	return e.uow.GetOutboxRepository(ctx).Enqueue(ctx, msg)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return coreport.OutcomeSuccess
	case errs.IsInsufficientCreditsError(err):
		return coreport.OutcomeInsufficient
	case errs.IsValidationError(err):
		return coreport.OutcomeInvalid
	default:
		return coreport.OutcomeError
	}
}

func (e *Engine) observe(operation, outcome string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveOperation(operation, outcome, e.timeProvider.Since(start))
}

// committed runs the post-commit side effects of a successful mutation
func (e *Engine) committed(ctx context.Context, userID, direction string, txType entity.TransactionType, amount int64) {
	if e.metrics != nil {
		e.metrics.RecordCredits(direction, string(txType), amount)
	}
	if e.statsCache == nil {
		return
	}
	if err := e.statsCache.Invalidate(ctx, userID); err != nil {
		e.logger.Warn("Failed to invalidate cached credit stats", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}

// logFailure logs a failed operation at a level matching its kind
func (e *Engine) logFailure(operation, userID string, err error) {
	if detailed, ok := errs.AsInsufficientCredits(err); ok {
		fields := detailed.LogFields()
		fields["operation"] = operation
		e.logger.Warn("Insufficient credits", fields)
		return
	}

	fields := map[string]any{
		"operation": operation,
		"userId":    userID,
		"error":     err.Error(),
	}
	if errs.IsValidationError(err) {
		e.logger.Debug("Rejected ledger request", fields)
		return
	}
	fields["error_code"] = errs.ErrorCode(err)
	e.logger.Error("Ledger operation failed", fields)
}

// reportAnomaly flags a free remainder that the balance cannot cover
func (e *Engine) reportAnomaly(userID string, total, freeRemaining int64) {
	e.logger.Warn("Free credit remainder exceeds balance", map[string]any{
		"userId":        userID,
		"balance":       total,
		"freeRemaining": freeRemaining,
	})
	if e.metrics != nil {
		e.metrics.ConsistencyAnomaly(userID)
	}
}
