package entity

import "time"

// Balance is the per-user aggregate, kept equal to the sum of the user's transaction amounts
type Balance struct {
	UserID    string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BalanceBreakdown splits the total into free and purchased credits
type BalanceBreakdown struct {
	Total     int64 `json:"total"`
	Free      int64 `json:"free"`
	Purchased int64 `json:"purchased"`
}

// NewBalanceBreakdown derives the breakdown from the total and the summed free remainder.
// The free part is clamped into [0, total]; the second result reports whether a clamp
// was needed, which means the ledger and the aggregate have drifted apart.
func NewBalanceBreakdown(total, freeRemaining int64) (BalanceBreakdown, bool) {
	anomaly := false
	free := freeRemaining

	ceiling := total
	if ceiling < 0 {
		ceiling = 0
		anomaly = true
	}
	if free > ceiling {
		free = ceiling
		anomaly = true
	}
	if free < 0 {
		free = 0
		anomaly = true
	}

	purchased := total - free
	if purchased < 0 {
		purchased = 0
	}

	return BalanceBreakdown{Total: total, Free: free, Purchased: purchased}, anomaly
}
