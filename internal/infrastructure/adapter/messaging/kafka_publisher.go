package messaging

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	msgport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/messaging"
)

// KafkaConfig holds producer settings
type KafkaConfig struct {
	Brokers  []string
	ClientID string
	MaxRetry int
}

// KafkaPublisher publishes ledger events synchronously so the relay only marks
// a message sent once the broker acknowledged it
type KafkaPublisher struct {
	producer sarama.SyncProducer
	logger   coreport.Logger
}

var _ msgport.Publisher = (*KafkaPublisher)(nil)

// NewSaramaConfig returns a producer config waiting for all in-sync replicas
func NewSaramaConfig(cfg KafkaConfig) *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = cfg.MaxRetry
	config.Producer.Return.Successes = true
	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}
	return config
}

// NewKafkaPublisher dials the brokers
func NewKafkaPublisher(cfg KafkaConfig, logger coreport.Logger) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	logger.Info("Kafka producer created", map[string]any{"brokers": cfg.Brokers})
	return NewKafkaPublisherWithProducer(producer, logger), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, logger coreport.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		logger:   logger,
	}
}

// Publish sends payload keyed by key so one user's events stay on one partition
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("Ledger event published", map[string]any{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	})
	return nil
}

// Close flushes and closes the producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
