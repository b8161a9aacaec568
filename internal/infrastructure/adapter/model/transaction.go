package model

import (
	"time"

	"gorm.io/datatypes"
)

// CreditTransaction is one entry of the append-only credit log
type CreditTransaction struct {
	ID              uint64            `gorm:"primaryKey;autoIncrement"`
	UserID          string            `gorm:"not null;size:64;index:idx_credit_transactions_user_created,priority:1"`
	Amount          int64             `gorm:"not null"`
	Type            string            `gorm:"not null;size:20;index"`
	Description     string            `gorm:"type:text"`
	Metadata        datatypes.JSONMap
	RemainingAmount *int64            `gorm:"check:chk_credit_transactions_remaining,remaining_amount >= 0"`
	ExpiresAt       *time.Time        `gorm:"index"`
	CreatedAt       time.Time         `gorm:"not null;index:idx_credit_transactions_user_created,priority:2"`
}

// TableName specifies the table name for CreditTransaction
func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
