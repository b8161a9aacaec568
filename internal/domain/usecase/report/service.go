// Package report provides read-only views over the credit transaction log
package report

import (
	"context"
	"errors"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/cache"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
)

// Pagination bounds for history reads
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Service implements usecase.ReportUseCase
type Service struct {
	uow        persistence.UnitOfWork
	logger     coreport.Logger
	metrics    coreport.Metrics
	statsCache cache.StatsCache
}

var _ usecase.ReportUseCase = (*Service)(nil)

// NewService creates a report service; statsCache and metrics may be nil
func NewService(uow persistence.UnitOfWork, logger coreport.Logger, statsCache cache.StatsCache, metrics coreport.Metrics) *Service {
	return &Service{
		uow:        uow,
		logger:     logger,
		metrics:    metrics,
		statsCache: statsCache,
	}
}

// normalizeListOptions applies the default limit and clamps to the maximum
func normalizeListOptions(opts entity.ListOptions) (entity.ListOptions, error) {
	if opts.Limit < 0 {
		return opts, errs.NewValidationError("limit", opts.Limit, errs.ErrInvalidPagination)
	}
	if opts.Offset < 0 {
		return opts, errs.NewValidationError("offset", opts.Offset, errs.ErrInvalidPagination)
	}
	if opts.Type != "" && !opts.Type.IsValid() {
		return opts, errs.NewValidationError("type", opts.Type, errs.ErrInvalidTransactionType)
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultPageLimit
	}
	if opts.Limit > MaxPageLimit {
		opts.Limit = MaxPageLimit
	}
	return opts, nil
}

// GetCreditTransactions returns one page of history, newest first
func (s *Service) GetCreditTransactions(ctx context.Context, userID string, opts entity.ListOptions) (*entity.TransactionPage, error) {
	if userID == "" {
		return nil, errs.NewValidationError("userId", userID, errs.ErrInvalidUserID)
	}
	opts, err := normalizeListOptions(opts)
	if err != nil {
		return nil, err
	}

	txs, total, err := s.uow.GetTransactionRepository(ctx).List(ctx, userID, persistence.TransactionFilter{
		Type:   opts.Type,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
	if err != nil {
		s.logger.Error("Failed to list credit transactions", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil, err
	}

	return &entity.TransactionPage{
		Transactions: txs,
		Total:        total,
		HasMore:      int64(opts.Offset+len(txs)) < total,
	}, nil
}

// GetCreditStats aggregates the full history by type, reading through the stats cache
func (s *Service) GetCreditStats(ctx context.Context, userID string) (*entity.CreditStats, error) {
	if userID == "" {
		return nil, errs.NewValidationError("userId", userID, errs.ErrInvalidUserID)
	}

	// fill stays false unless the generation was read before the ledger
	var version int64
	fill := false
	if s.statsCache != nil {
		cached, ok, err := s.statsCache.GetStats(ctx, userID)
		if err != nil {
			s.logger.Warn("Stats cache read failed", map[string]any{
				"userId": userID,
				"error":  err.Error(),
			})
		} else if ok {
			return cached, nil
		}
		if err == nil {
			version, err = s.statsCache.Version(ctx, userID)
			if err != nil {
				s.logger.Warn("Stats cache version read failed", map[string]any{
					"userId": userID,
					"error":  err.Error(),
				})
			}
			fill = err == nil
		}
	}

	var stats entity.CreditStats
	err := s.uow.Execute(ctx, func(txCtx context.Context) error {
		balance, err := s.balance(txCtx, userID)
		if err != nil {
			return err
		}
		sums, err := s.uow.GetTransactionRepository(txCtx).SumByType(txCtx, userID)
		if err != nil {
			return err
		}
		stats = entity.NewCreditStats(balance, sums)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to aggregate credit stats", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil, err
	}

	if fill {
		stored, err := s.statsCache.SetStats(ctx, userID, version, &stats)
		switch {
		case err != nil:
			s.logger.Warn("Stats cache write failed", map[string]any{
				"userId": userID,
				"error":  err.Error(),
			})
		case !stored:
			s.logger.Debug("Stats cache fill skipped, user changed mid-read", map[string]any{
				"userId":  userID,
				"version": version,
			})
		}
	}
	return &stats, nil
}

// ReconcileBalance compares the balance row with the signed sum of the log
func (s *Service) ReconcileBalance(ctx context.Context, userID string) (*entity.Reconciliation, error) {
	if userID == "" {
		return nil, errs.NewValidationError("userId", userID, errs.ErrInvalidUserID)
	}

	result := &entity.Reconciliation{UserID: userID}
	err := s.uow.Execute(ctx, func(txCtx context.Context) error {
		balance, err := s.balance(txCtx, userID)
		if err != nil {
			return err
		}
		sum, err := s.uow.GetTransactionRepository(txCtx).SumAmounts(txCtx, userID)
		if err != nil {
			return err
		}
		result.Balance = balance
		result.LedgerSum = sum
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Consistent = result.Balance == result.LedgerSum
	if !result.Consistent {
		s.logger.Warn("Balance does not match transaction log", map[string]any{
			"userId":    userID,
			"balance":   result.Balance,
			"ledgerSum": result.LedgerSum,
		})
		if s.metrics != nil {
			s.metrics.ConsistencyAnomaly(userID)
		}
	}
	return result, nil
}

func (s *Service) balance(ctx context.Context, userID string) (int64, error) {
	b, err := s.uow.GetBalanceRepository(ctx).Get(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrBalanceNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return b.Balance, nil
}
