package entity

// GrantRequest describes a credit grant
type GrantRequest struct {
	UserID        string
	Amount        int64
	Type          TransactionType
	Description   string
	ExpiresInDays *int // free grants only; nil never expires
	Metadata      Metadata
}

// SpendRequest describes a credit deduction of Amount credits
type SpendRequest struct {
	UserID      string
	Amount      int64
	Type        TransactionType
	Description string
	Metadata    Metadata
}

// GrantResult is the outcome of a committed grant
type GrantResult struct {
	Balance     int64
	Transaction *Transaction
}

// AtomicDeductResult is the non-throwing outcome of a conditional deduction
type AtomicDeductResult struct {
	Success     bool
	Balance     int64
	Error       string
	Transaction *Transaction
}

// TypedDeductResult reports which kind of credit paid for a deduction
type TypedDeductResult struct {
	Balance        int64
	UsedCreditType CreditKind
	ApplyWatermark bool
	FreeUsed       int64
	PurchasedUsed  int64
	Consumed       []GrantConsumption
	Transaction    *Transaction
}

// ReferralResult carries both sides of a referral reward.
// The two grants are independent; a failed side leaves its Granted flag false.
type ReferralResult struct {
	ReferrerBalance int64
	RefereeBalance  int64
	ReferrerGranted bool
	RefereeGranted  bool
}

// AdminGrantResult is returned by an operator bonus
type AdminGrantResult struct {
	NewBalance  int64
	Transaction *Transaction
}

// ListOptions paginates and filters transaction history
type ListOptions struct {
	Limit  int
	Offset int
	Type   TransactionType // empty for all types
}

// TransactionPage is one page of history, newest first
type TransactionPage struct {
	Transactions []*Transaction
	Total        int64
	HasMore      bool
}

// CreditStats aggregates a user's full history by type.
// Spend totals are reported as positive magnitudes.
type CreditStats struct {
	Balance         int64 `json:"balance"`
	TotalAdded      int64 `json:"totalAdded"`
	TotalUsed       int64 `json:"totalUsed"`
	TotalPurchased  int64 `json:"totalPurchased"`
	TotalBonus      int64 `json:"totalBonus"`
	TotalReferral   int64 `json:"totalReferral"`
	TotalGeneration int64 `json:"totalGeneration"`
	TotalUpscale    int64 `json:"totalUpscale"`
}

// NewCreditStats folds signed per-type sums into CreditStats
func NewCreditStats(balance int64, sums map[TransactionType]int64) CreditStats {
	abs := func(v int64) int64 {
		if v < 0 {
			return -v
		}
		return v
	}

	stats := CreditStats{
		Balance:         balance,
		TotalPurchased:  sums[TypePurchase],
		TotalBonus:      sums[TypeBonus],
		TotalReferral:   sums[TypeReferral],
		TotalGeneration: abs(sums[TypeGeneration]),
		TotalUpscale:    abs(sums[TypeUpscale]),
	}
	stats.TotalAdded = stats.TotalPurchased + stats.TotalBonus + stats.TotalReferral
	stats.TotalUsed = stats.TotalGeneration + stats.TotalUpscale
	return stats
}

// Reconciliation compares the aggregate with the log it summarizes
type Reconciliation struct {
	UserID     string
	Balance    int64
	LedgerSum  int64
	Consistent bool
}
