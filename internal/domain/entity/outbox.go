package entity

import (
	"encoding/json"
	"time"
)

// Outbox message statuses
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// Ledger event types
const (
	EventCreditsGranted  = "credits.granted"
	EventCreditsDeducted = "credits.deducted"
)

// LedgerEvent is the payload published for every committed mutation
type LedgerEvent struct {
	EventID        string          `json:"eventId"`
	EventType      string          `json:"eventType"`
	UserID         string          `json:"userId"`
	TransactionID  uint64          `json:"transactionId"`
	Type           TransactionType `json:"type"`
	Amount         int64           `json:"amount"`
	Balance        int64           `json:"balance"`
	UsedCreditType CreditKind      `json:"usedCreditType,omitempty"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

// OutboxMessage is a pending event stored alongside the mutation that produced it
type OutboxMessage struct {
	ID         uint64
	EventID    string
	Topic      string
	Key        string
	Payload    string
	Status     string
	RetryCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewOutboxMessage serializes event for topic, keyed by user so partitions keep per-user order
func NewOutboxMessage(topic string, event LedgerEvent) (*OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &OutboxMessage{
		EventID:   event.EventID,
		Topic:     topic,
		Key:       event.UserID,
		Payload:   string(payload),
		Status:    OutboxStatusPending,
		CreatedAt: event.OccurredAt,
		UpdatedAt: event.OccurredAt,
	}, nil
}
