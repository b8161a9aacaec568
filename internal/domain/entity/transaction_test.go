package entity

import (
	"testing"
	"time"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrantTransaction(t *testing.T) {
	fixedTime := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	expiry := fixedTime.AddDate(0, 0, 30)

	t.Run("Bonus grant tracks remainder and expiry", func(t *testing.T) {
		tx, err := NewGrantTransaction("user-1", 100, TypeBonus, "Signup bonus", &expiry, Metadata{"signupType": "business"}, fixedTime)

		require.NoError(t, err)
		assert.Equal(t, "user-1", tx.UserID)
		assert.Equal(t, int64(100), tx.Amount)
		assert.Equal(t, TypeBonus, tx.Type)
		require.NotNil(t, tx.RemainingAmount)
		assert.Equal(t, int64(100), *tx.RemainingAmount)
		require.NotNil(t, tx.ExpiresAt)
		assert.Equal(t, expiry, *tx.ExpiresAt)
		assert.Equal(t, fixedTime, tx.CreatedAt)
	})

	t.Run("Purchase ignores expiry and remainder", func(t *testing.T) {
		tx, err := NewGrantTransaction("user-1", 50, TypePurchase, "top-up", &expiry, nil, fixedTime)

		require.NoError(t, err)
		assert.Nil(t, tx.RemainingAmount)
		assert.Nil(t, tx.ExpiresAt)
		assert.Equal(t, int64(0), tx.Remaining())
	})

	t.Run("Referral without expiry never expires", func(t *testing.T) {
		tx, err := NewGrantTransaction("user-1", 40, TypeReferral, "Referral", nil, nil, fixedTime)

		require.NoError(t, err)
		assert.Nil(t, tx.ExpiresAt)
		assert.True(t, tx.IsActiveGrant(fixedTime.AddDate(10, 0, 0)))
	})

	t.Run("Rejects non-positive amounts", func(t *testing.T) {
		for _, amount := range []int64{0, -10} {
			tx, err := NewGrantTransaction("user-1", amount, TypeBonus, "bad", nil, nil, fixedTime)
			assert.Nil(t, tx)
			assert.ErrorIs(t, err, errs.ErrInvalidAmount)
		}
	})

	t.Run("Rejects spend types", func(t *testing.T) {
		tx, err := NewGrantTransaction("user-1", 10, TypeGeneration, "bad", nil, nil, fixedTime)
		assert.Nil(t, tx)
		assert.ErrorIs(t, err, errs.ErrInvalidTransactionType)
	})

	t.Run("Rejects empty user", func(t *testing.T) {
		tx, err := NewGrantTransaction("", 10, TypeBonus, "bad", nil, nil, fixedTime)
		assert.Nil(t, tx)
		assert.ErrorIs(t, err, errs.ErrInvalidUserID)
	})
}

func TestNewSpendTransaction(t *testing.T) {
	fixedTime := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Stores the negated amount", func(t *testing.T) {
		tx, err := NewSpendTransaction("user-1", 20, TypeGeneration, "Image generation", Metadata{"imageCount": 4}, fixedTime)

		require.NoError(t, err)
		assert.Equal(t, int64(-20), tx.Amount)
		assert.Nil(t, tx.RemainingAmount)
		assert.Nil(t, tx.ExpiresAt)
		assert.False(t, tx.IsActiveGrant(fixedTime))
	})

	t.Run("Rejects grant types", func(t *testing.T) {
		tx, err := NewSpendTransaction("user-1", 20, TypePurchase, "bad", nil, fixedTime)
		assert.Nil(t, tx)
		assert.ErrorIs(t, err, errs.ErrInvalidTransactionType)
	})

	t.Run("Rejects zero amount", func(t *testing.T) {
		tx, err := NewSpendTransaction("user-1", 0, TypeUpscale, "bad", nil, fixedTime)
		assert.Nil(t, tx)
		assert.ErrorIs(t, err, errs.ErrInvalidAmount)
	})
}

func TestTransactionType(t *testing.T) {
	t.Run("Classifies every type", func(t *testing.T) {
		assert.True(t, TypePurchase.IsGrant())
		assert.False(t, TypePurchase.IsFree())
		assert.True(t, TypeBonus.IsFree())
		assert.True(t, TypeReferral.IsFree())
		assert.True(t, TypeGeneration.IsSpend())
		assert.True(t, TypeUpscale.IsSpend())
		assert.False(t, TransactionType("REFUND").IsValid())
	})

	t.Run("Parses case-insensitively", func(t *testing.T) {
		parsed, err := ParseTransactionType(" bonus ")
		require.NoError(t, err)
		assert.Equal(t, TypeBonus, parsed)

		_, err = ParseTransactionType("gift")
		assert.ErrorIs(t, err, errs.ErrInvalidTransactionType)
	})
}

func TestExpiryFromDays(t *testing.T) {
	fixedTime := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	expiry, err := ExpiryFromDays(fixedTime, nil)
	require.NoError(t, err)
	assert.Nil(t, expiry)

	days := 30
	expiry, err = ExpiryFromDays(fixedTime, &days)
	require.NoError(t, err)
	require.NotNil(t, expiry)
	assert.Equal(t, time.Date(2023, 1, 31, 12, 0, 0, 0, time.UTC), *expiry)

	zero := 0
	_, err = ExpiryFromDays(fixedTime, &zero)
	assert.ErrorIs(t, err, errs.ErrInvalidExpiry)
}

func TestTransactionActivity(t *testing.T) {
	fixedTime := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	expiry := fixedTime.Add(time.Hour)

	tx, err := NewGrantTransaction("user-1", 10, TypeBonus, "bonus", &expiry, nil, fixedTime)
	require.NoError(t, err)

	assert.True(t, tx.IsActiveGrant(fixedTime))
	assert.False(t, tx.IsActiveGrant(expiry), "a grant is expired at its expiry instant")

	clone := tx.Clone()
	*clone.RemainingAmount = 0
	assert.Equal(t, int64(10), tx.Remaining(), "clone must not share the remainder")
	assert.False(t, clone.IsActiveGrant(fixedTime))
}
