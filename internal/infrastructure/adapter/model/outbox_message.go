package model

import (
	"time"
)

// OutboxMessage is a ledger event waiting to be published
type OutboxMessage struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	EventID    string    `gorm:"uniqueIndex;not null;size:36"`
	Topic      string    `gorm:"not null;size:255"`
	MsgKey     string    `gorm:"column:msg_key;size:64"`
	Payload    string    `gorm:"type:text;not null"`
	Status     string    `gorm:"not null;size:20;index"`
	RetryCount int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName specifies the table name for OutboxMessage
func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
