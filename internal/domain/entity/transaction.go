package entity

import (
	"fmt"
	"strings"
	"time"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
)

// TransactionType categorizes a ledger entry
type TransactionType string

// Transaction types
const (
	TypePurchase   TransactionType = "PURCHASE"
	TypeBonus      TransactionType = "BONUS"
	TypeReferral   TransactionType = "REFERRAL"
	TypeGeneration TransactionType = "GENERATION"
	TypeUpscale    TransactionType = "UPSCALE"
)

// AllTransactionTypes lists every known type in reporting order
func AllTransactionTypes() []TransactionType {
	return []TransactionType{TypePurchase, TypeBonus, TypeReferral, TypeGeneration, TypeUpscale}
}

// ParseTransactionType converts a case-insensitive name into a TransactionType
func ParseTransactionType(value string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(value)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %s", errs.ErrInvalidTransactionType, value)
	}
	return t, nil
}

// IsValid reports whether t is a known type
func (t TransactionType) IsValid() bool {
	return t.IsGrant() || t.IsSpend()
}

// IsGrant reports whether t adds credits
func (t TransactionType) IsGrant() bool {
	return t == TypePurchase || t == TypeBonus || t == TypeReferral
}

// IsFree reports whether t grants expiring credits tracked per grant
func (t TransactionType) IsFree() bool {
	return t == TypeBonus || t == TypeReferral
}

// IsSpend reports whether t consumes credits
func (t TransactionType) IsSpend() bool {
	return t == TypeGeneration || t == TypeUpscale
}

// FreeTransactionTypes lists the expiring grant types
func FreeTransactionTypes() []TransactionType {
	return []TransactionType{TypeBonus, TypeReferral}
}

// Metadata is the open key-value bag attached to a transaction
type Metadata map[string]any

// Merge returns a copy of m with the entries of other laid over it
func (m Metadata) Merge(other Metadata) Metadata {
	merged := make(Metadata, len(m)+len(other))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Transaction is one balance-affecting ledger entry.
// Amount, Type and ExpiresAt never change after creation; only RemainingAmount
// decreases as spends consume a free grant.
type Transaction struct {
	ID              uint64
	UserID          string
	Amount          int64 // positive for grants, negative for spends
	Type            TransactionType
	Description     string
	Metadata        Metadata
	RemainingAmount *int64     // free grants only
	ExpiresAt       *time.Time // free grants only; nil never expires
	CreatedAt       time.Time
}

// NewGrantTransaction builds a positive ledger entry.
// Free grants start with RemainingAmount equal to amount; purchases carry neither
// a remainder nor an expiry.
func NewGrantTransaction(
	userID string,
	amount int64,
	txType TransactionType,
	description string,
	expiresAt *time.Time,
	metadata Metadata,
	now time.Time,
) (*Transaction, error) {
	if userID == "" {
		return nil, errs.ErrInvalidUserID
	}
	if amount <= 0 {
		return nil, errs.NewValidationError("amount", amount, errs.ErrInvalidAmount)
	}
	if !txType.IsGrant() {
		return nil, fmt.Errorf("%w: %s is not a grant type", errs.ErrInvalidTransactionType, txType)
	}

	tx := &Transaction{
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   now,
	}

	if txType.IsFree() {
		remaining := amount
		tx.RemainingAmount = &remaining
		if expiresAt != nil {
			expiry := *expiresAt
			tx.ExpiresAt = &expiry
		}
	}

	return tx, nil
}

// NewSpendTransaction builds a negative ledger entry for a deduction of amount credits
func NewSpendTransaction(
	userID string,
	amount int64,
	txType TransactionType,
	description string,
	metadata Metadata,
	now time.Time,
) (*Transaction, error) {
	if userID == "" {
		return nil, errs.ErrInvalidUserID
	}
	if amount <= 0 {
		return nil, errs.NewValidationError("amount", amount, errs.ErrInvalidAmount)
	}
	if !txType.IsSpend() {
		return nil, fmt.Errorf("%w: %s is not a spend type", errs.ErrInvalidTransactionType, txType)
	}

	return &Transaction{
		UserID:      userID,
		Amount:      -amount,
		Type:        txType,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   now,
	}, nil
}

// ExpiryFromDays converts an optional day count into an absolute expiry.
// nil means the grant never expires.
func ExpiryFromDays(now time.Time, days *int) (*time.Time, error) {
	if days == nil {
		return nil, nil
	}
	if *days <= 0 {
		return nil, errs.NewValidationError("expiresInDays", *days, errs.ErrInvalidExpiry)
	}
	expiry := now.AddDate(0, 0, *days)
	return &expiry, nil
}

// Remaining returns the unconsumed part of a free grant, or 0
func (t *Transaction) Remaining() int64 {
	if t.RemainingAmount == nil {
		return 0
	}
	return *t.RemainingAmount
}

// IsExpired reports whether the grant has expired at now
func (t *Transaction) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// IsActiveGrant reports whether the transaction still holds spendable free credit at now
func (t *Transaction) IsActiveGrant(now time.Time) bool {
	return t.Type.IsFree() && t.Remaining() > 0 && !t.IsExpired(now)
}

// Clone returns a deep copy so stores can hand out entries without sharing pointers
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.RemainingAmount != nil {
		remaining := *t.RemainingAmount
		c.RemainingAmount = &remaining
	}
	if t.ExpiresAt != nil {
		expiry := *t.ExpiresAt
		c.ExpiresAt = &expiry
	}
	if t.Metadata != nil {
		c.Metadata = t.Metadata.Merge(nil)
	}
	return &c
}
