package model

import (
	"time"
)

// CreditBalance is the per-user balance row
type CreditBalance struct {
	UserID    string    `gorm:"primaryKey;size:64"`
	Balance   int64     `gorm:"not null;default:0;check:chk_credit_balances_non_negative,balance >= 0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for CreditBalance
func (CreditBalance) TableName() string {
	return "credit_balances"
}
