package messaging

import "context"

// Publisher delivers serialized ledger events to a message broker
type Publisher interface {
	// Publish sends payload to topic with key; it returns once the broker acknowledged it
	Publish(ctx context.Context, topic, key string, payload []byte) error
	// Close releases the broker connection
	Close() error
}
