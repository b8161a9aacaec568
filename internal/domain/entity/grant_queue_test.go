package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grant(t *testing.T, id uint64, amount int64, createdAt time.Time, expiresAt *time.Time) *Transaction {
	t.Helper()
	tx, err := NewGrantTransaction("user-1", amount, TypeBonus, "bonus", expiresAt, nil, createdAt)
	require.NoError(t, err)
	tx.ID = id
	return tx
}

func TestGrantQueue(t *testing.T) {
	now := time.Date(2023, 1, 10, 12, 0, 0, 0, time.UTC)
	later := now.AddDate(0, 0, 30)

	t.Run("Orders by creation time regardless of input order", func(t *testing.T) {
		older := grant(t, 2, 10, now.Add(-2*time.Hour), &later)
		newer := grant(t, 1, 20, now.Add(-time.Hour), &later)

		queue := NewGrantQueue([]*Transaction{newer, older}, now)

		require.Equal(t, 2, queue.Len())
		assert.Equal(t, uint64(2), queue.Grants()[0].ID)
		assert.Equal(t, uint64(1), queue.Grants()[1].ID)
		assert.Equal(t, int64(30), queue.Available())
	})

	t.Run("Breaks creation time ties by ID", func(t *testing.T) {
		created := now.Add(-time.Hour)
		a := grant(t, 7, 5, created, nil)
		b := grant(t, 3, 5, created, nil)

		queue := NewGrantQueue([]*Transaction{a, b}, now)

		assert.Equal(t, uint64(3), queue.Grants()[0].ID)
	})

	t.Run("Skips expired and exhausted grants", func(t *testing.T) {
		past := now.Add(-time.Minute)
		expired := grant(t, 1, 10, now.Add(-48*time.Hour), &past)
		exhausted := grant(t, 2, 10, now.Add(-24*time.Hour), &later)
		*exhausted.RemainingAmount = 0
		purchase, err := NewGrantTransaction("user-1", 99, TypePurchase, "top-up", nil, nil, now)
		require.NoError(t, err)
		active := grant(t, 3, 10, now.Add(-time.Hour), &later)

		queue := NewGrantQueue([]*Transaction{expired, exhausted, purchase, active}, now)

		require.Equal(t, 1, queue.Len())
		assert.Equal(t, uint64(3), queue.Grants()[0].ID)
	})

	t.Run("Plans oldest first across grants", func(t *testing.T) {
		first := grant(t, 1, 10, now.Add(-2*time.Hour), &later)
		second := grant(t, 2, 20, now.Add(-time.Hour), &later)
		queue := NewGrantQueue([]*Transaction{second, first}, now)

		plan, used := queue.Plan(15)

		assert.Equal(t, int64(15), used)
		assert.Equal(t, []GrantConsumption{
			{TransactionID: 1, Amount: 10, RemainingAfter: 0},
			{TransactionID: 2, Amount: 5, RemainingAfter: 15},
		}, plan)
		assert.Equal(t, int64(10), first.Remaining(), "planning must not mutate grants")
	})

	t.Run("Plan stops when the queue runs dry", func(t *testing.T) {
		only := grant(t, 1, 10, now.Add(-time.Hour), &later)
		queue := NewGrantQueue([]*Transaction{only}, now)

		plan, used := queue.Plan(25)

		assert.Equal(t, int64(10), used)
		require.Len(t, plan, 1)
		assert.Equal(t, int64(0), plan[0].RemainingAfter)
	})

	t.Run("Plan of nothing is empty", func(t *testing.T) {
		queue := NewGrantQueue(nil, now)

		plan, used := queue.Plan(10)

		assert.Empty(t, plan)
		assert.Equal(t, int64(0), used)
	})
}
