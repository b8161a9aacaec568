package entity

import (
	"sort"
	"time"
)

// GrantConsumption is the planned draw from a single free grant
type GrantConsumption struct {
	TransactionID  uint64
	Amount         int64
	RemainingAfter int64
}

// GrantQueue is the oldest-first index of a user's active free grants.
// Order is creation time, then ID, regardless of how the store returned the rows.
type GrantQueue struct {
	grants []*Transaction
}

// NewGrantQueue keeps the grants that are active at now and orders them for consumption
func NewGrantQueue(grants []*Transaction, now time.Time) *GrantQueue {
	active := make([]*Transaction, 0, len(grants))
	for _, g := range grants {
		if g != nil && g.IsActiveGrant(now) {
			active = append(active, g)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})

	return &GrantQueue{grants: active}
}

// Len returns the number of active grants
func (q *GrantQueue) Len() int {
	return len(q.grants)
}

// Grants returns the active grants in consumption order
func (q *GrantQueue) Grants() []*Transaction {
	out := make([]*Transaction, len(q.grants))
	copy(out, q.grants)
	return out
}

// Available sums the remainder of all active grants
func (q *GrantQueue) Available() int64 {
	var total int64
	for _, g := range q.grants {
		total += g.Remaining()
	}
	return total
}

// Plan walks the queue oldest first and draws up to amount credits.
// It returns the per-grant draws and the total drawn, which is less than amount
// when the queue runs dry. The queue itself is not modified.
func (q *GrantQueue) Plan(amount int64) ([]GrantConsumption, int64) {
	if amount <= 0 {
		return nil, 0
	}

	var (
		plan []GrantConsumption
		used int64
	)
	for _, g := range q.grants {
		if used == amount {
			break
		}
		remaining := g.Remaining()
		take := amount - used
		if take > remaining {
			take = remaining
		}
		plan = append(plan, GrantConsumption{
			TransactionID:  g.ID,
			Amount:         take,
			RemainingAfter: remaining - take,
		})
		used += take
	}

	return plan, used
}
