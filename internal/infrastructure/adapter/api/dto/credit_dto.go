package dto

import (
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// BalanceResponse represents the response for a balance breakdown query
type BalanceResponse struct {
	UserID    string `json:"userId"`
	Total     int64  `json:"total"`
	Free      int64  `json:"free"`
	Purchased int64  `json:"purchased"`
}

// TransactionResponse represents one ledger entry
type TransactionResponse struct {
	ID              uint64          `json:"id"`
	Type            string          `json:"type"`
	Amount          int64           `json:"amount"`
	Description     string          `json:"description,omitempty"`
	Metadata        entity.Metadata `json:"metadata,omitempty"`
	RemainingAmount *int64          `json:"remainingAmount,omitempty"`
	ExpiresAt       *time.Time      `json:"expiresAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// TransactionPageResponse represents one page of transaction history
type TransactionPageResponse struct {
	UserID       string                `json:"userId"`
	Transactions []TransactionResponse `json:"transactions"`
	Total        int64                 `json:"total"`
	HasMore      bool                  `json:"hasMore"`
}

// ExpiryBucketResponse is the free credit lapsing within Days days
type ExpiryBucketResponse struct {
	Days   int   `json:"days"`
	Amount int64 `json:"amount"`
}

// ExpiringCreditsResponse represents the expiry projection for a user
type ExpiringCreditsResponse struct {
	UserID       string                 `json:"userId"`
	Buckets      []ExpiryBucketResponse `json:"buckets"`
	Transactions []TransactionResponse  `json:"transactions"`
}

// StatsResponse represents the aggregated history of a user
type StatsResponse struct {
	UserID string `json:"userId"`
	entity.CreditStats
}

// AdminBonusRequest represents the body of an operator bonus.
// Amount and expiry are checked by the ledger so they report their own error codes.
type AdminBonusRequest struct {
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
	ExpiresInDays *int   `json:"expiresInDays"`
}

// AdminBonusResponse represents the outcome of an operator bonus
type AdminBonusResponse struct {
	UserID      string              `json:"userId"`
	NewBalance  int64               `json:"newBalance"`
	Transaction TransactionResponse `json:"transaction"`
}

// NewTransactionResponse converts a ledger entry for the API
func NewTransactionResponse(tx *entity.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              tx.ID,
		Type:            string(tx.Type),
		Amount:          tx.Amount,
		Description:     tx.Description,
		Metadata:        tx.Metadata,
		RemainingAmount: tx.RemainingAmount,
		ExpiresAt:       tx.ExpiresAt,
		CreatedAt:       tx.CreatedAt,
	}
}

// NewTransactionResponses converts a slice of ledger entries, never returning nil
func NewTransactionResponses(txs []*entity.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, NewTransactionResponse(tx))
	}
	return out
}
