package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/memory"
	timeprovider "github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/time"
	mockcore "github.com/amirhossein-jamali/credit-ledger/mocks/port/core"
)

var fixedTime = time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	engine *Engine
	store  *memory.Store
	clock  *timeprovider.ManualTimeProvider
	ctx    context.Context
}

func quietLogger(t *testing.T) *mockcore.MockLogger {
	logger := mockcore.NewMockLogger(t)
	allowAllLogs(logger)
	return logger
}

func allowAllLogs(logger *mockcore.MockLogger) {
	for _, level := range []string{"Debug", "Info", "Warn", "Error"} {
		logger.On(level, mock.Anything, mock.Anything).Maybe()
	}
}

func newFixture(t *testing.T, logger coreport.Logger, opts ...Option) *fixture {
	t.Helper()
	if logger == nil {
		logger = quietLogger(t)
	}
	clock := timeprovider.NewManualTimeProvider(fixedTime)
	store := memory.NewStore(clock)
	return &fixture{
		engine: NewEngine(store, clock, logger, opts...),
		store:  store,
		clock:  clock,
		ctx:    context.Background(),
	}
}

func days(n int) *int {
	return &n
}

func (f *fixture) grant(t *testing.T, userID string, amount int64, txType entity.TransactionType, expiresInDays *int) *entity.Transaction {
	t.Helper()
	result, err := f.engine.Grant(f.ctx, entity.GrantRequest{
		UserID:        userID,
		Amount:        amount,
		Type:          txType,
		Description:   "test grant",
		ExpiresInDays: expiresInDays,
	})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	return result.Transaction
}

func (f *fixture) assertLedgerMatchesBalance(t *testing.T, userID string) {
	t.Helper()
	balance, err := f.engine.GetBalance(f.ctx, userID)
	require.NoError(t, err)
	sum, err := f.store.GetTransactionRepository(f.ctx).SumAmounts(f.ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, sum, balance, "balance must equal the sum of the log")
}

func spend(userID string, amount int64) entity.SpendRequest {
	return entity.SpendRequest{
		UserID:      userID,
		Amount:      amount,
		Type:        entity.TypeGeneration,
		Description: "test spend",
	}
}

func TestEngine_GetBalance(t *testing.T) {
	t.Run("should return zero for a user without balance", func(t *testing.T) {
		f := newFixture(t, nil)

		balance, err := f.engine.GetBalance(f.ctx, "never-charged")

		assert.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	})

	t.Run("should reject an empty user id", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := f.engine.GetBalance(f.ctx, "")

		assert.ErrorIs(t, err, errs.ErrInvalidUserID)
	})

	t.Run("should treat equality as enough credits", func(t *testing.T) {
		f := newFixture(t, nil)
		f.grant(t, "user-1", 20, entity.TypePurchase, nil)

		enough, err := f.engine.HasEnoughCredits(f.ctx, "user-1", 20)
		require.NoError(t, err)
		assert.True(t, enough)

		enough, err = f.engine.HasEnoughCredits(f.ctx, "user-1", 21)
		require.NoError(t, err)
		assert.False(t, enough)
	})
}

func TestEngine_Grant(t *testing.T) {
	t.Run("should create the balance on first purchase", func(t *testing.T) {
		f := newFixture(t, nil)

		balance, err := f.engine.AddCredits(f.ctx, entity.GrantRequest{
			UserID: "user-1", Amount: 50, Type: entity.TypePurchase, Description: "top-up",
		})

		require.NoError(t, err)
		assert.Equal(t, int64(50), balance)
		got, err := f.engine.GetBalance(f.ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(50), got)
	})

	t.Run("should track remainder and expiry for free grants only", func(t *testing.T) {
		f := newFixture(t, nil)

		bonus := f.grant(t, "user-1", 30, entity.TypeBonus, days(30))
		purchase := f.grant(t, "user-1", 10, entity.TypePurchase, days(30))

		require.NotNil(t, bonus.RemainingAmount)
		assert.Equal(t, int64(30), *bonus.RemainingAmount)
		require.NotNil(t, bonus.ExpiresAt)
		assert.Equal(t, fixedTime.AddDate(0, 0, 30), *bonus.ExpiresAt)
		assert.Nil(t, purchase.RemainingAmount)
		assert.Nil(t, purchase.ExpiresAt)
	})

	t.Run("should reject non-positive amounts without touching the store", func(t *testing.T) {
		f := newFixture(t, nil)

		for _, amount := range []int64{0, -5} {
			_, err := f.engine.AddCredits(f.ctx, entity.GrantRequest{UserID: "user-1", Amount: amount, Type: entity.TypeBonus})
			assert.ErrorIs(t, err, errs.ErrInvalidAmount)
			assert.True(t, errs.IsValidationError(err))
		}

		_, err := f.store.GetBalanceRepository(f.ctx).Get(f.ctx, "user-1")
		assert.ErrorIs(t, err, errs.ErrBalanceNotFound)
	})

	t.Run("should reject spend types", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := f.engine.AddCredits(f.ctx, entity.GrantRequest{UserID: "user-1", Amount: 5, Type: entity.TypeUpscale})

		assert.ErrorIs(t, err, errs.ErrInvalidTransactionType)
	})

	t.Run("should initialize a zero balance once", func(t *testing.T) {
		f := newFixture(t, nil)

		b, err := f.engine.InitializeBalance(f.ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), b.Balance)

		f.grant(t, "user-1", 15, entity.TypePurchase, nil)
		b, err = f.engine.InitializeBalance(f.ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(15), b.Balance)
	})
}

func TestEngine_DeductCredits(t *testing.T) {
	t.Run("should spend the exact balance down to zero", func(t *testing.T) {
		f := newFixture(t, nil)
		f.grant(t, "user-1", 50, entity.TypePurchase, nil)

		balance, err := f.engine.DeductCredits(f.ctx, spend("user-1", 50))

		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
		f.assertLedgerMatchesBalance(t, "user-1")
	})

	t.Run("should fail one credit over the balance and leave it unchanged", func(t *testing.T) {
		f := newFixture(t, nil)
		f.grant(t, "user-1", 50, entity.TypePurchase, nil)

		_, err := f.engine.DeductCredits(f.ctx, spend("user-1", 51))

		require.Error(t, err)
		detailed, ok := errs.AsInsufficientCredits(err)
		require.True(t, ok)
		assert.Equal(t, int64(50), detailed.Available)
		assert.Equal(t, int64(1), detailed.Shortfall())
		assert.False(t, errs.IsValidationError(err))

		balance, err := f.engine.GetBalance(f.ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(50), balance)
		f.assertLedgerMatchesBalance(t, "user-1")
	})

	t.Run("should fail for a user with no balance", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := f.engine.DeductCredits(f.ctx, spend("user-1", 1))

		assert.ErrorIs(t, err, errs.ErrInsufficientCredits)
	})

	t.Run("should reject grant types and non-positive amounts", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := f.engine.DeductCredits(f.ctx, entity.SpendRequest{UserID: "user-1", Amount: 5, Type: entity.TypePurchase})
		assert.ErrorIs(t, err, errs.ErrInvalidTransactionType)

		_, err = f.engine.DeductCredits(f.ctx, spend("user-1", 0))
		assert.ErrorIs(t, err, errs.ErrInvalidAmount)
	})
}

func TestEngine_DeductCreditsAtomic(t *testing.T) {
	t.Run("should report insufficient funds as a result value", func(t *testing.T) {
		f := newFixture(t, nil)
		f.grant(t, "user-1", 10, entity.TypePurchase, nil)

		result, err := f.engine.DeductCreditsAtomic(f.ctx, spend("user-1", 11))

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, int64(10), result.Balance)
		assert.Equal(t, "insufficient credits", result.Error)
		assert.Nil(t, result.Transaction)
	})

	t.Run("should return validation failures as errors", func(t *testing.T) {
		f := newFixture(t, nil)

		result, err := f.engine.DeductCreditsAtomic(f.ctx, spend("user-1", -1))

		assert.Nil(t, result)
		assert.ErrorIs(t, err, errs.ErrInvalidAmount)
	})

	t.Run("should let exactly one of two racing spends win", func(t *testing.T) {
		f := newFixture(t, nil)
		f.grant(t, "user-1", 25, entity.TypePurchase, nil)

		var wg sync.WaitGroup
		results := make([]*entity.AtomicDeductResult, 2)
		failures := make([]error, 2)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], failures[i] = f.engine.DeductCreditsAtomic(f.ctx, spend("user-1", 20))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for i, result := range results {
			require.NoError(t, failures[i])
			assert.Equal(t, int64(5), result.Balance)
			if result.Success {
				succeeded++
			} else {
				assert.Equal(t, "insufficient credits", result.Error)
			}
		}
		assert.Equal(t, 1, succeeded)
		f.assertLedgerMatchesBalance(t, "user-1")
	})
}

func TestEngine_DeductCreditsWithType(t *testing.T) {
	t.Run("should consume free grants oldest first", func(t *testing.T) {
		f := newFixture(t, nil)
		first := f.grant(t, "user-1", 10, entity.TypeBonus, days(30))
		second := f.grant(t, "user-1", 20, entity.TypeBonus, days(7))
		f.grant(t, "user-1", 30, entity.TypePurchase, nil)

		result, err := f.engine.DeductCreditsWithType(f.ctx, spend("user-1", 15), entity.PreferAuto)

		require.NoError(t, err)
		assert.Equal(t, entity.KindFree, result.UsedCreditType)
		assert.True(t, result.ApplyWatermark)
		assert.Equal(t, int64(15), result.FreeUsed)
		assert.Equal(t, int64(0), result.PurchasedUsed)
		assert.Equal(t, int64(45), result.Balance)
		assert.Equal(t, []entity.GrantConsumption{
			{TransactionID: first.ID, Amount: 10, RemainingAfter: 0},
			{TransactionID: second.ID, Amount: 5, RemainingAfter: 15},
		}, result.Consumed)

		grants, err := f.store.GetTransactionRepository(f.ctx).ActiveGrants(f.ctx, "user-1", f.clock.Now())
		require.NoError(t, err)
		require.Len(t, grants, 1)
		assert.Equal(t, second.ID, grants[0].ID)
		assert.Equal(t, int64(15), grants[0].Remaining())

		breakdown, err := f.engine.GetBalanceBreakdown(f.ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, entity.BalanceBreakdown{Total: 45, Free: 15, Purchased: 30}, *breakdown)
		f.assertLedgerMatchesBalance(t, "user-1")
	})

	t.Run("should taint a mixed spend as free", func(t *testing.T) {
		f := newFixture(t, nil)
		f.grant(t, "user-1", 10, entity.TypeReferral, days(30))
		f.grant(t, "user-1", 30, entity.TypePurchase, nil)

		result, err := f.engine.DeductCreditsWithType(f.ctx, spend("user-1", 25), "")

		require.NoError(t, err)
		assert.Equal(t, entity.KindFree, result.UsedCreditType)
		assert.True(t, result.ApplyWatermark)
		assert.Equal(t, int64(10), result.FreeUsed)
		assert.Equal(t, int64(15), result.PurchasedUsed)
		assert.Equal(t, int64(15), result.Balance)
		assert.Equal(t, "free", result.Transaction.Metadata["creditSource"])
		assert.Equal(t, int64(-25), result.Transaction.Amount)
		f.assertLedgerMatchesBalance(t, "user-1")
	})

	t.Run("should not watermark purchased-only spends", func(t *testing.T) {
		f := newFixture(t, nil)
		f.grant(t, "user-1", 50, entity.TypePurchase, nil)

		result, err := f.engine.DeductCreditsWithType(f.ctx, spend("user-1", 20), entity.PreferAuto)

		require.NoError(t, err)
		assert.Equal(t, entity.KindPurchased, result.UsedCreditType)
		assert.False(t, result.ApplyWatermark)
		assert.Empty(t, result.Consumed)
	})

	t.Run("should skip expired grants", func(t *testing.T) {
		f := newFixture(t, nil)
		f.grant(t, "user-1", 10, entity.TypeBonus, days(1))
		f.grant(t, "user-1", 20, entity.TypePurchase, nil)
		f.clock.Advance(48 * time.Hour)

		result, err := f.engine.DeductCreditsWithType(f.ctx, spend("user-1", 5), entity.PreferAuto)

		require.NoError(t, err)
		assert.Equal(t, entity.KindPurchased, result.UsedCreditType)
		assert.False(t, result.ApplyWatermark)
	})

	t.Run("should not fall back to purchased credit when free is preferred", func(t *testing.T) {
		f := newFixture(t, nil)
		f.grant(t, "user-1", 10, entity.TypeBonus, days(30))
		f.grant(t, "user-1", 50, entity.TypePurchase, nil)

		_, err := f.engine.DeductCreditsWithType(f.ctx, spend("user-1", 20), entity.PreferFree)

		detailed, ok := errs.AsInsufficientCredits(err)
		require.True(t, ok)
		assert.Equal(t, errs.SourceFree, detailed.Source)
		assert.Equal(t, int64(10), detailed.Available)
		balance, err := f.engine.GetBalance(f.ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(60), balance)
	})

	t.Run("should require purchased credit to cover a purchased preference", func(t *testing.T) {
		f := newFixture(t, nil)
		f.grant(t, "user-1", 30, entity.TypeBonus, days(30))
		f.grant(t, "user-1", 10, entity.TypePurchase, nil)

		_, err := f.engine.DeductCreditsWithType(f.ctx, spend("user-1", 20), entity.PreferPurchased)
		detailed, ok := errs.AsInsufficientCredits(err)
		require.True(t, ok)
		assert.Equal(t, errs.SourcePurchased, detailed.Source)

		result, err := f.engine.DeductCreditsWithType(f.ctx, spend("user-1", 10), entity.PreferPurchased)
		require.NoError(t, err)
		assert.Equal(t, entity.KindPurchased, result.UsedCreditType)
		assert.False(t, result.ApplyWatermark)

		free, err := f.store.GetTransactionRepository(f.ctx).SumActiveRemaining(f.ctx, "user-1", f.clock.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(30), free, "grant remainders stay untouched")
	})

	t.Run("should reject an unknown preference", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := f.engine.DeductCreditsWithType(f.ctx, spend("user-1", 5), entity.CreditPreference("cheapest"))

		assert.ErrorIs(t, err, errs.ErrInvalidCreditPreference)
	})
}

func TestEngine_GetExpiringCredits(t *testing.T) {
	f := newFixture(t, nil)
	soon := f.grant(t, "user-1", 20, entity.TypeBonus, days(5))
	later := f.grant(t, "user-1", 40, entity.TypeReferral, days(15))
	f.grant(t, "user-1", 25, entity.TypeBonus, days(60))
	f.grant(t, "user-1", 100, entity.TypePurchase, nil)

	expiring, err := f.engine.GetExpiringCredits(f.ctx, "user-1")

	require.NoError(t, err)
	assert.Equal(t, int64(20), expiring.ExpiringWithin7Days())
	assert.Equal(t, int64(60), expiring.ExpiringWithin30Days())
	require.Len(t, expiring.Transactions, 2)
	assert.Equal(t, soon.ID, expiring.Transactions[0].ID)
	assert.Equal(t, later.ID, expiring.Transactions[1].ID)

	_, err = f.engine.GetExpiringCredits(f.ctx, "user-1", -time.Hour)
	assert.ErrorIs(t, err, errs.ErrInvalidExpiry)
}

func TestEngine_BalanceBreakdownAnomaly(t *testing.T) {
	logger := mockcore.NewMockLogger(t)
	logger.On("Warn", "Free credit remainder exceeds balance", mock.MatchedBy(func(fields map[string]any) bool {
		return fields["userId"] == "user-1" && fields["freeRemaining"] == int64(30)
	})).Once()
	allowAllLogs(logger)
	metrics := new(mockcore.MockMetrics)
	metrics.On("ObserveOperation", mock.Anything, mock.Anything, mock.Anything).Maybe()
	metrics.On("RecordCredits", mock.Anything, mock.Anything, mock.Anything).Maybe()
	metrics.On("ConsistencyAnomaly", "user-1").Once()

	f := newFixture(t, logger, WithMetrics(metrics))
	f.grant(t, "user-1", 30, entity.TypeBonus, days(30))

	// the plain deduction leaves grant remainders alone
	_, err := f.engine.DeductCredits(f.ctx, spend("user-1", 25))
	require.NoError(t, err)

	breakdown, err := f.engine.GetBalanceBreakdown(f.ctx, "user-1")

	require.NoError(t, err)
	assert.Equal(t, entity.BalanceBreakdown{Total: 5, Free: 5, Purchased: 0}, *breakdown)
	metrics.AssertExpectations(t)
}

func TestEngine_LedgerInvariant(t *testing.T) {
	f := newFixture(t, nil)
	userID := "user-1"

	steps := []func() error{
		func() error { _, err := f.engine.AddCredits(f.ctx, entity.GrantRequest{UserID: userID, Amount: 40, Type: entity.TypePurchase}); return err },
		func() error { _, err := f.engine.AddCredits(f.ctx, entity.GrantRequest{UserID: userID, Amount: 30, Type: entity.TypeBonus, ExpiresInDays: days(30)}); return err },
		func() error { _, err := f.engine.DeductCreditsWithType(f.ctx, spend(userID, 35), entity.PreferAuto); return err },
		func() error { _, err := f.engine.DeductCreditsAtomic(f.ctx, spend(userID, 100)); return err },
		func() error { _, err := f.engine.DeductCredits(f.ctx, spend(userID, 10)); return err },
		func() error {
			_, err := f.engine.DeductCredits(f.ctx, spend(userID, 1000))
			if errs.IsInsufficientCreditsError(err) {
				return nil
			}
			return fmt.Errorf("expected insufficient credits, got %v", err)
		},
		func() error { _, err := f.engine.AddCredits(f.ctx, entity.GrantRequest{UserID: userID, Amount: 15, Type: entity.TypeReferral, ExpiresInDays: days(7)}); return err },
		func() error { _, err := f.engine.DeductCreditsWithType(f.ctx, spend(userID, 40), entity.PreferAuto); return err },
	}

	for _, step := range steps {
		require.NoError(t, step())
		f.assertLedgerMatchesBalance(t, userID)

		breakdown, err := f.engine.GetBalanceBreakdown(f.ctx, userID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, breakdown.Free, int64(0))
		assert.LessOrEqual(t, breakdown.Free, breakdown.Total)
		assert.Equal(t, breakdown.Total-breakdown.Free, breakdown.Purchased)
	}

	balance, err := f.engine.GetBalance(f.ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

type countingCache struct {
	mu           sync.Mutex
	invalidated  map[string]int
	statsWritten int
}

func (c *countingCache) GetStats(_ context.Context, _ string) (*entity.CreditStats, bool, error) {
	return nil, false, nil
}

func (c *countingCache) Version(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (c *countingCache) SetStats(_ context.Context, _ string, _ int64, _ *entity.CreditStats) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statsWritten++
	return true, nil
}

func (c *countingCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invalidated == nil {
		c.invalidated = make(map[string]int)
	}
	c.invalidated[userID]++
	return nil
}

func TestEngine_SideEffects(t *testing.T) {
	t.Run("should enqueue one event per committed mutation", func(t *testing.T) {
		f := newFixture(t, nil, WithEvents("ledger-events"))
		f.grant(t, "user-1", 50, entity.TypePurchase, nil)
		_, err := f.engine.DeductCreditsWithType(f.ctx, spend("user-1", 20), entity.PreferAuto)
		require.NoError(t, err)
		_, err = f.engine.DeductCredits(f.ctx, spend("user-1", 100))
		require.Error(t, err)

		pending, err := f.store.GetOutboxRepository(f.ctx).Pending(f.ctx, 10)

		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "ledger-events", pending[0].Topic)
		assert.Equal(t, "user-1", pending[0].Key)
		assert.Contains(t, pending[0].Payload, `"eventType":"credits.granted"`)
		assert.Contains(t, pending[1].Payload, `"eventType":"credits.deducted"`)
		assert.Contains(t, pending[1].Payload, `"usedCreditType":"purchased"`)
		assert.NotEqual(t, pending[0].EventID, pending[1].EventID)
	})

	t.Run("should not enqueue events without a topic", func(t *testing.T) {
		f := newFixture(t, nil)
		f.grant(t, "user-1", 50, entity.TypePurchase, nil)

		pending, err := f.store.GetOutboxRepository(f.ctx).Pending(f.ctx, 10)

		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("should invalidate cached stats after commits only", func(t *testing.T) {
		statsCache := &countingCache{}
		f := newFixture(t, nil, WithStatsCache(statsCache))
		f.grant(t, "user-1", 10, entity.TypePurchase, nil)
		_, err := f.engine.DeductCredits(f.ctx, spend("user-1", 50))
		require.Error(t, err)

		assert.Equal(t, 1, statsCache.invalidated["user-1"])
	})

	t.Run("should record operation metrics", func(t *testing.T) {
		metrics := new(mockcore.MockMetrics)
		metrics.On("ObserveOperation", OpAddCredits, coreport.OutcomeSuccess, mock.Anything).Once()
		metrics.On("RecordCredits", coreport.DirectionGranted, "PURCHASE", int64(50)).Once()
		metrics.On("ObserveOperation", OpDeductAtomic, coreport.OutcomeInsufficient, mock.Anything).Once()

		f := newFixture(t, nil, WithMetrics(metrics))
		f.grant(t, "user-1", 50, entity.TypePurchase, nil)
		result, err := f.engine.DeductCreditsAtomic(f.ctx, spend("user-1", 60))
		require.NoError(t, err)
		require.False(t, result.Success)

		metrics.AssertExpectations(t)
	})
}
