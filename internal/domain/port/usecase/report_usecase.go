package usecase

import (
	"context"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// ReportUseCase exposes read-only views over the transaction log
type ReportUseCase interface {
	// GetCreditTransactions returns a page of history, newest first
	GetCreditTransactions(ctx context.Context, userID string, opts entity.ListOptions) (*entity.TransactionPage, error)

	// GetCreditStats aggregates the full history by type
	GetCreditStats(ctx context.Context, userID string) (*entity.CreditStats, error)

	// ReconcileBalance compares the balance row with the sum of the log
	ReconcileBalance(ctx context.Context, userID string) (*entity.Reconciliation, error)
}
