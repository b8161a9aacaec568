package job

import (
	"context"
	"sync"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/messaging"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
)

// RelayConfig tunes the polling loop
type RelayConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// DefaultRelayConfig returns the relay defaults
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Interval:   500 * time.Millisecond,
		BatchSize:  100,
		MaxRetries: 5,
	}
}

// OutboxRelay publishes pending ledger events in creation order.
// Events sharing a key are never delivered out of order.
type OutboxRelay struct {
	uow       persistence.UnitOfWork
	publisher messaging.Publisher
	logger    coreport.Logger
	metrics   coreport.Metrics
	config    RelayConfig
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewOutboxRelay creates a relay reading through uow's outbox repository
func NewOutboxRelay(
	uow persistence.UnitOfWork,
	publisher messaging.Publisher,
	logger coreport.Logger,
	metrics coreport.Metrics,
	config RelayConfig,
) *OutboxRelay {
	if config.Interval <= 0 {
		config.Interval = DefaultRelayConfig().Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultRelayConfig().BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultRelayConfig().MaxRetries
	}
	return &OutboxRelay{
		uow:       uow,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		config:    config,
		stopCh:    make(chan struct{}),
	}
}

// Start polls until ctx is done or Stop is called
func (r *OutboxRelay) Start(ctx context.Context) {
	r.logger.Info("Outbox relay started", map[string]any{
		"interval":  r.config.Interval.String(),
		"batchSize": r.config.BatchSize,
	})

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopping", map[string]any{"reason": ctx.Err().Error()})
			return
		case <-r.stopCh:
			r.logger.Info("Outbox relay stopped", nil)
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("Failed to load pending outbox messages", map[string]any{"error": err.Error()})
			}
		}
	}
}

// Stop ends the polling loop
func (r *OutboxRelay) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// RunOnce publishes one batch and returns how many messages were sent
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	outbox := r.uow.GetOutboxRepository(ctx)

	messages, err := outbox.Pending(ctx, r.config.BatchSize)
	if err != nil {
		return 0, err
	}

	// a key that failed once is held back for the rest of the batch so its
	// later events cannot overtake the one waiting for a retry
	blocked := make(map[string]struct{})
	sent := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if _, held := blocked[msg.Key]; held {
			r.logger.Debug("Outbox message held behind a failed event", map[string]any{
				"outboxId": msg.ID,
				"eventId":  msg.EventID,
				"userId":   msg.Key,
			})
			continue
		}
		if r.publish(ctx, outbox, msg) {
			sent++
			continue
		}
		blocked[msg.Key] = struct{}{}
	}
	return sent, nil
}

func (r *OutboxRelay) publish(ctx context.Context, outbox persistence.OutboxRepository, msg *entity.OutboxMessage) bool {
	fields := map[string]any{
		"outboxId": msg.ID,
		"eventId":  msg.EventID,
		"topic":    msg.Topic,
		"userId":   msg.Key,
	}

	err := r.publisher.Publish(ctx, msg.Topic, msg.Key, []byte(msg.Payload))
	if err == nil {
		r.metrics.OutboxPublished(coreport.OutcomeSuccess)
		if markErr := outbox.MarkSent(ctx, msg.ID); markErr != nil {
			fields["error"] = markErr.Error()
			r.logger.Error("Failed to mark outbox message sent", fields)
			return false
		}
		r.logger.Debug("Outbox message published", fields)
		return true
	}

	r.metrics.OutboxPublished(coreport.OutcomeError)
	fields["error"] = err.Error()
	fields["retryCount"] = msg.RetryCount + 1

	if msg.RetryCount+1 >= r.config.MaxRetries {
		if markErr := outbox.MarkFailed(ctx, msg.ID); markErr != nil {
			fields["markError"] = markErr.Error()
			r.logger.Error("Failed to mark outbox message failed", fields)
			return false
		}
		r.logger.Error("Outbox message exceeded max retries", fields)
		return false
	}

	if retryErr := outbox.IncrementRetry(ctx, msg.ID); retryErr != nil {
		fields["markError"] = retryErr.Error()
		r.logger.Error("Failed to record outbox retry", fields)
		return false
	}
	r.logger.Warn("Outbox publish failed, will retry", fields)
	return false
}
