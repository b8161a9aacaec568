package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
)

// ErrorType represents the type of database error that occurred
type ErrorType string

const (
	DuplicateKeyError ErrorType = "duplicate_key"
	TransientError    ErrorType = "transient"
	LockError         ErrorType = "lock"
	ConnectionError   ErrorType = "connection"
	ConstraintError   ErrorType = "constraint"
)

// ErrorClassifier provides methods to classify database errors
type ErrorClassifier struct{}

// NewErrorClassifier creates a new ErrorClassifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// Classify returns the type of error
func (c *ErrorClassifier) Classify(err error) ErrorType {
	switch {
	case err == nil:
		return ""
	case c.IsDuplicateKeyError(err):
		return DuplicateKeyError
	case c.IsLockError(err):
		return LockError
	case c.IsConstraintError(err):
		return ConstraintError
	case c.IsTransientError(err):
		return TransientError
	case c.IsConnectionError(err):
		return ConnectionError
	default:
		return ""
	}
}

func containsAny(err error, markers ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsDuplicateKeyError checks if the error is a duplicate key error
func (c *ErrorClassifier) IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		containsAny(err, "duplicate key", "unique constraint", "duplicate entry")
}

// IsTransientError checks if an error is transient and can be retried
func (c *ErrorClassifier) IsTransientError(err error) bool {
	return containsAny(err,
		"connection reset",
		"connection refused",
		"timeout",
		"eof",
		"server closed",
		"broken pipe",
	)
}

// IsLockError checks if the error is due to locking or serialization
func (c *ErrorClassifier) IsLockError(err error) bool {
	return containsAny(err,
		"deadlock",
		"lock wait timeout",
		"could not serialize access",
		"serialization failure",
		"database is locked",
		"sqlite_busy",
	)
}

// IsConnectionError checks if the error is related to database connectivity
func (c *ErrorClassifier) IsConnectionError(err error) bool {
	return containsAny(err, "connection", "dial", "network") || c.IsTransientError(err)
}

// IsConstraintError checks if the error is related to constraint violations
func (c *ErrorClassifier) IsConstraintError(err error) bool {
	return errors.Is(err, gorm.ErrCheckConstraintViolated) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		containsAny(err, "constraint", "violates", "foreign key", "not null") ||
		c.IsDuplicateKeyError(err)
}

// MapError converts a driver error into the domain error taxonomy.
// Lock and serialization failures become ErrConcurrencyConflict so the unit of work can retry them.
func (c *ErrorClassifier) MapError(err error) error {
	if err == nil {
		return nil
	}
	switch c.Classify(err) {
	case LockError:
		return fmt.Errorf("%w: %s", errs.ErrConcurrencyConflict, err.Error())
	case DuplicateKeyError, ConstraintError:
		return fmt.Errorf("%w: %s", errs.ErrConstraintViolation, err.Error())
	default:
		return fmt.Errorf("%w: %s", errs.ErrDatabaseConnection, err.Error())
	}
}
