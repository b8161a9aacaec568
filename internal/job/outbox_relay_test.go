package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/memory"
	timeprovider "github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/time"
	mockcore "github.com/amirhossein-jamali/credit-ledger/mocks/port/core"
	mockmessaging "github.com/amirhossein-jamali/credit-ledger/mocks/port/messaging"
)

func newRelayFixture(t *testing.T, maxRetries int) (*OutboxRelay, *memory.Store, *mockmessaging.MockPublisher, *mockcore.MockMetrics) {
	t.Helper()
	store := memory.NewStore(timeprovider.NewManualTimeProvider(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	publisher := &mockmessaging.MockPublisher{}
	metrics := &mockcore.MockMetrics{}
	t.Cleanup(func() {
		publisher.AssertExpectations(t)
		metrics.AssertExpectations(t)
	})
	relay := NewOutboxRelay(store, publisher, logger.NewNoopLogger(), metrics, RelayConfig{
		Interval:   time.Millisecond,
		BatchSize:  10,
		MaxRetries: maxRetries,
	})
	return relay, store, publisher, metrics
}

func enqueue(t *testing.T, store *memory.Store, eventID, userID string) *entity.OutboxMessage {
	t.Helper()
	msg, err := entity.NewOutboxMessage("ledger.events", entity.LedgerEvent{
		EventID:   eventID,
		EventType: entity.EventCreditsDeducted,
		UserID:    userID,
		Amount:    -20,
	})
	require.NoError(t, err)
	require.NoError(t, store.GetOutboxRepository(context.Background()).Enqueue(context.Background(), msg))
	return msg
}

func pending(t *testing.T, store *memory.Store) []*entity.OutboxMessage {
	t.Helper()
	msgs, err := store.GetOutboxRepository(context.Background()).Pending(context.Background(), 0)
	require.NoError(t, err)
	return msgs
}

func TestOutboxRelay_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("should publish in creation order and mark messages sent", func(t *testing.T) {
		// Setup
		relay, store, publisher, metrics := newRelayFixture(t, 3)
		first := enqueue(t, store, "e-1", "user-1")
		second := enqueue(t, store, "e-2", "user-2")

		var keys []string
		publisher.On("Publish", mock.Anything, "ledger.events", mock.AnythingOfType("string"), mock.Anything).
			Run(func(args mock.Arguments) { keys = append(keys, args.String(2)) }).
			Return(nil).Twice()
		metrics.On("OutboxPublished", coreport.OutcomeSuccess).Twice()

		// Execute
		sent, err := relay.RunOnce(ctx)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 2, sent)
		assert.Equal(t, []string{first.Key, second.Key}, keys)
		assert.Empty(t, pending(t, store))
	})

	t.Run("should count a failed attempt and keep the message pending", func(t *testing.T) {
		// Setup
		relay, store, publisher, metrics := newRelayFixture(t, 3)
		enqueue(t, store, "e-1", "user-1")
		publisher.On("Publish", mock.Anything, "ledger.events", "user-1", mock.Anything).
			Return(errors.New("broker unavailable")).Once()
		metrics.On("OutboxPublished", coreport.OutcomeError).Once()

		// Execute
		sent, err := relay.RunOnce(ctx)

		// Assert
		require.NoError(t, err)
		assert.Zero(t, sent)
		msgs := pending(t, store)
		require.Len(t, msgs, 1)
		assert.Equal(t, 1, msgs[0].RetryCount)
	})

	t.Run("should give up once the last retry fails", func(t *testing.T) {
		// Setup
		relay, store, publisher, metrics := newRelayFixture(t, 2)
		enqueue(t, store, "e-1", "user-1")
		publisher.On("Publish", mock.Anything, "ledger.events", "user-1", mock.Anything).
			Return(errors.New("broker unavailable")).Twice()
		metrics.On("OutboxPublished", coreport.OutcomeError).Twice()

		// Execute
		_, err := relay.RunOnce(ctx)
		require.NoError(t, err)
		_, err = relay.RunOnce(ctx)
		require.NoError(t, err)

		// Assert
		assert.Empty(t, pending(t, store), "failed messages leave the pending queue")
		sent, err := relay.RunOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, sent)
	})

	t.Run("should hold later events for a key behind a failed one", func(t *testing.T) {
		// Setup
		relay, store, publisher, metrics := newRelayFixture(t, 3)
		enqueue(t, store, "e-1", "user-1")
		enqueue(t, store, "e-2", "user-1")
		enqueue(t, store, "e-3", "user-2")

		var delivered []string
		record := func(args mock.Arguments) {
			var event entity.LedgerEvent
			require.NoError(t, json.Unmarshal(args.Get(3).([]byte), &event))
			delivered = append(delivered, event.EventID)
		}
		publisher.On("Publish", mock.Anything, "ledger.events", "user-1", mock.Anything).
			Return(errors.New("broker unavailable")).Once()
		publisher.On("Publish", mock.Anything, "ledger.events", mock.AnythingOfType("string"), mock.Anything).
			Run(record).Return(nil).Times(3)
		metrics.On("OutboxPublished", coreport.OutcomeError).Once()
		metrics.On("OutboxPublished", coreport.OutcomeSuccess).Times(3)

		// Execute
		firstSent, err := relay.RunOnce(ctx)
		require.NoError(t, err)
		held := pending(t, store)
		secondSent, err := relay.RunOnce(ctx)
		require.NoError(t, err)

		// Assert
		assert.Equal(t, 1, firstSent)
		require.Len(t, held, 2)
		assert.Equal(t, "e-1", held[0].EventID)
		assert.Equal(t, 1, held[0].RetryCount)
		assert.Equal(t, "e-2", held[1].EventID)
		assert.Zero(t, held[1].RetryCount)
		assert.Equal(t, 2, secondSent)
		assert.Equal(t, []string{"e-3", "e-1", "e-2"}, delivered)
		assert.Empty(t, pending(t, store))
	})

	t.Run("should do nothing on an empty outbox", func(t *testing.T) {
		relay, _, _, _ := newRelayFixture(t, 3)

		sent, err := relay.RunOnce(ctx)

		require.NoError(t, err)
		assert.Zero(t, sent)
	})
}

func TestOutboxRelay_Start(t *testing.T) {
	t.Run("should drain the outbox in the background until stopped", func(t *testing.T) {
		// Setup
		relay, store, publisher, metrics := newRelayFixture(t, 3)
		enqueue(t, store, "e-1", "user-1")
		publisher.On("Publish", mock.Anything, "ledger.events", "user-1", mock.Anything).Return(nil).Once()
		metrics.On("OutboxPublished", coreport.OutcomeSuccess).Once()

		done := make(chan struct{})
		go func() {
			relay.Start(context.Background())
			close(done)
		}()

		// Assert
		assert.Eventually(t, func() bool { return len(pending(t, store)) == 0 }, time.Second, 5*time.Millisecond)
		relay.Stop()
		relay.Stop()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("relay did not stop")
		}
	})
}
