package entity

import (
	"sort"
	"time"
)

// Default projection windows
const (
	Window7Days  = 7 * 24 * time.Hour
	Window30Days = 30 * 24 * time.Hour
)

// DefaultExpiryWindows returns the windows used when a caller asks for none
func DefaultExpiryWindows() []time.Duration {
	return []time.Duration{Window7Days, Window30Days}
}

// ExpiryBucket is the free remainder expiring within Window from now
type ExpiryBucket struct {
	Window time.Duration `json:"window"`
	Amount int64         `json:"amount"`
}

// ExpiringCredits projects how much free credit lapses in each window.
// Buckets are cumulative: a longer window includes every shorter one.
type ExpiringCredits struct {
	Buckets      []ExpiryBucket
	Transactions []*Transaction
}

// BuildExpiringCredits sums the remainder of grants expiring inside each window.
// Transactions holds the grants that fall inside the widest window, soonest first.
func BuildExpiringCredits(grants []*Transaction, now time.Time, windows []time.Duration) ExpiringCredits {
	if len(windows) == 0 {
		windows = DefaultExpiryWindows()
	}
	sorted := make([]time.Duration, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	widest := now.Add(sorted[len(sorted)-1])
	var inside []*Transaction
	for _, g := range grants {
		if g == nil || !g.IsActiveGrant(now) || g.ExpiresAt == nil {
			continue
		}
		if g.ExpiresAt.After(widest) {
			continue
		}
		inside = append(inside, g)
	}
	sort.SliceStable(inside, func(i, j int) bool {
		return inside[i].ExpiresAt.Before(*inside[j].ExpiresAt)
	})

	buckets := make([]ExpiryBucket, 0, len(sorted))
	for _, w := range sorted {
		limit := now.Add(w)
		var amount int64
		for _, g := range inside {
			if !g.ExpiresAt.After(limit) {
				amount += g.Remaining()
			}
		}
		buckets = append(buckets, ExpiryBucket{Window: w, Amount: amount})
	}

	return ExpiringCredits{Buckets: buckets, Transactions: inside}
}

// Within returns the bucket amount for window, or 0 when it was not projected
func (e ExpiringCredits) Within(window time.Duration) int64 {
	for _, b := range e.Buckets {
		if b.Window == window {
			return b.Amount
		}
	}
	return 0
}

// ExpiringWithin7Days returns the 7 day bucket
func (e ExpiringCredits) ExpiringWithin7Days() int64 {
	return e.Within(Window7Days)
}

// ExpiringWithin30Days returns the 30 day bucket
func (e ExpiringCredits) ExpiringWithin30Days() int64 {
	return e.Within(Window30Days)
}
