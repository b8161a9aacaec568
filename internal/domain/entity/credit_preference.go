package entity

import (
	"fmt"
	"strings"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
)

// CreditPreference selects which sub-balance a typed deduction draws from
type CreditPreference string

// Credit preferences
const (
	PreferFree      CreditPreference = "free"
	PreferPurchased CreditPreference = "purchased"
	PreferAuto      CreditPreference = "auto"
)

// ParseCreditPreference validates a preference; the empty string means auto
func ParseCreditPreference(value string) (CreditPreference, error) {
	p := CreditPreference(strings.ToLower(strings.TrimSpace(value)))
	if p == "" {
		return PreferAuto, nil
	}
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %s", errs.ErrInvalidCreditPreference, value)
	}
	return p, nil
}

// IsValid reports whether p is a known preference
func (p CreditPreference) IsValid() bool {
	return p == PreferFree || p == PreferPurchased || p == PreferAuto
}

// CreditKind labels which kind of credit paid for a spend
type CreditKind string

// Credit kinds
const (
	KindFree      CreditKind = "free"
	KindPurchased CreditKind = "purchased"
)

// SignupType selects the signup bonus tier
type SignupType string

// Signup types
const (
	SignupGeneral  SignupType = "general"
	SignupBusiness SignupType = "business"
)

// ParseSignupType validates a signup tier
func ParseSignupType(value string) (SignupType, error) {
	s := SignupType(strings.ToLower(strings.TrimSpace(value)))
	if s != SignupGeneral && s != SignupBusiness {
		return "", fmt.Errorf("%w: %s", errs.ErrInvalidSignupType, value)
	}
	return s, nil
}
