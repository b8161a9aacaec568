package error

import (
	"errors"
	"fmt"
)

// Error codes for standardized API responses
const (
	// 4xxx - Client errors
	CodeInsufficientCredits     = 4001
	CodeInvalidAmount           = 4002
	CodeInvalidUserID           = 4003
	CodeInvalidRequest          = 4004
	CodeInvalidExpiry           = 4006
	CodeInvalidTransactionType  = 4007
	CodeInvalidCreditPreference = 4008
	CodeInvalidPagination       = 4009
	CodeInvalidSignupType       = 4010
	CodeInvalidImageCount       = 4011
	CodeNotFound                = 4040
	CodeConcurrencyConflict     = 4090

	// 5xxx - Server errors
	CodeInternalServer     = 5000
	CodeDatabaseConnection = 5030
)

// Base error types
var (
	// ErrInsufficientCredits is returned when a balance (or the requested sub-balance) cannot cover a spend
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount is returned when a grant or spend amount is not positive
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidUserID is returned when the user ID is empty
	ErrInvalidUserID = errors.New("user ID cannot be empty")

	// ErrInvalidTransactionType is returned when the type is unknown or not allowed for the operation
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	// ErrInvalidCreditPreference is returned when the preferred credit type is not free, purchased or auto
	ErrInvalidCreditPreference = errors.New("invalid credit preference")

	// ErrInvalidExpiry is returned when an expiry window is not positive
	ErrInvalidExpiry = errors.New("expiry window must be positive")

	// ErrInvalidSignupType is returned for signup types other than general and business
	ErrInvalidSignupType = errors.New("invalid signup type")

	// ErrInvalidImageCount is returned when a generation is requested for an unpriced image count
	ErrInvalidImageCount = errors.New("unsupported image count")

	// ErrInvalidPagination is returned when limit or offset are negative
	ErrInvalidPagination = errors.New("invalid pagination parameters")

	// ErrInvalidRequest is returned when the request format is invalid
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBalanceNotFound is returned by repositories when no balance row exists for a user
	ErrBalanceNotFound = errors.New("balance not found")

	// ErrTransactionNotFound is returned when the requested transaction doesn't exist
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrOutboxMessageNotFound is returned when an outbox message ID is unknown
	ErrOutboxMessageNotFound = errors.New("outbox message not found")

	// ErrConcurrencyConflict is returned when the store aborted a unit of work because of a concurrent writer
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")

	// ErrDatabaseConnection is returned when there's a problem talking to the database
	ErrDatabaseConnection = errors.New("database connection error")

	// ErrConstraintViolation is returned when a database constraint is violated
	ErrConstraintViolation = errors.New("database constraint violation")

	// ErrInternalServer is returned for unexpected server-side errors
	ErrInternalServer = errors.New("internal server error")
)

// ErrorCode returns standardized error codes for known errors
func ErrorCode(err error) int {
	switch {
	case errors.Is(err, ErrInsufficientCredits):
		return CodeInsufficientCredits
	case errors.Is(err, ErrInvalidAmount):
		return CodeInvalidAmount
	case errors.Is(err, ErrInvalidUserID):
		return CodeInvalidUserID
	case errors.Is(err, ErrInvalidTransactionType):
		return CodeInvalidTransactionType
	case errors.Is(err, ErrInvalidCreditPreference):
		return CodeInvalidCreditPreference
	case errors.Is(err, ErrInvalidExpiry):
		return CodeInvalidExpiry
	case errors.Is(err, ErrInvalidSignupType):
		return CodeInvalidSignupType
	case errors.Is(err, ErrInvalidImageCount):
		return CodeInvalidImageCount
	case errors.Is(err, ErrInvalidPagination):
		return CodeInvalidPagination
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrBalanceNotFound), errors.Is(err, ErrTransactionNotFound), errors.Is(err, ErrOutboxMessageNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConcurrencyConflict):
		return CodeConcurrencyConflict
	case errors.Is(err, ErrDatabaseConnection), errors.Is(err, ErrConstraintViolation):
		return CodeDatabaseConnection
	default:
		return CodeInternalServer
	}
}

// ValidationError describes a rejected input field
type ValidationError struct {
	Field string
	Value any
	Err   error
}

// Error implements the error interface for ValidationError
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s (%v): %v", e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying sentinel
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// LogFields returns a map of fields for structured logging
func (e *ValidationError) LogFields() map[string]any {
	return map[string]any{
		"error_type": "validation_error",
		"field":      e.Field,
		"value":      e.Value,
		"error":      e.Err.Error(),
		"error_code": ErrorCode(e.Err),
	}
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field string, value any, err error) error {
	return &ValidationError{Field: field, Value: value, Err: err}
}

// CreditSource names the sub-balance an insufficient-credits check was made against
type CreditSource string

// Credit sources
const (
	SourceTotal     CreditSource = "total"
	SourceFree      CreditSource = "free"
	SourcePurchased CreditSource = "purchased"
)

// InsufficientCreditsError provides detailed information for a rejected spend
type InsufficientCreditsError struct {
	UserID    string
	Required  int64
	Available int64
	Source    CreditSource
}

// Error implements the error interface
func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient %s credits for user %s: required %d, available %d",
		e.Source, e.UserID, e.Required, e.Available)
}

// Is checks if the target error is an ErrInsufficientCredits
func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// Shortfall returns how many more credits the user needs
func (e *InsufficientCreditsError) Shortfall() int64 {
	if e.Available >= e.Required {
		return 0
	}
	return e.Required - e.Available
}

// LogFields returns a map of fields for structured logging
func (e *InsufficientCreditsError) LogFields() map[string]any {
	return map[string]any{
		"error_type": "insufficient_credits",
		"userId":     e.UserID,
		"required":   e.Required,
		"available":  e.Available,
		"source":     string(e.Source),
		"error_code": CodeInsufficientCredits,
	}
}

// NewInsufficientCreditsError creates a new detailed insufficient credits error
func NewInsufficientCreditsError(userID string, required, available int64, source CreditSource) error {
	return &InsufficientCreditsError{
		UserID:    userID,
		Required:  required,
		Available: available,
		Source:    source,
	}
}

// AsInsufficientCredits extracts the detailed error, if present
func AsInsufficientCredits(err error) (*InsufficientCreditsError, bool) {
	var target *InsufficientCreditsError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsInsufficientCreditsError checks if the error is related to insufficient credits
func IsInsufficientCreditsError(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}

// IsValidationError checks if the error is any input validation failure
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidTransactionType) ||
		errors.Is(err, ErrInvalidCreditPreference) ||
		errors.Is(err, ErrInvalidExpiry) ||
		errors.Is(err, ErrInvalidSignupType) ||
		errors.Is(err, ErrInvalidImageCount) ||
		errors.Is(err, ErrInvalidPagination) ||
		errors.Is(err, ErrInvalidRequest)
}

// IsNotFoundError checks if the error is any "not found" type of error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrBalanceNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrOutboxMessageNotFound)
}

// IsConcurrencyConflict checks if the error is a retryable store conflict
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
