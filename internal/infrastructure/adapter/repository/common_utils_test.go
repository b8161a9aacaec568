package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
)

func TestErrorClassifier(t *testing.T) {
	c := NewErrorClassifier()

	testCases := []struct {
		name     string
		err      error
		expected ErrorType
		mapped   error
	}{
		{"postgres serialization", errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)"), LockError, errs.ErrConcurrencyConflict},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), LockError, errs.ErrConcurrencyConflict},
		{"duplicate key", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), DuplicateKeyError, errs.ErrConstraintViolation},
		{"check constraint", errors.New("CHECK constraint failed: chk_credit_balances_non_negative"), ConstraintError, errs.ErrConstraintViolation},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), TransientError, errs.ErrDatabaseConnection},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, c.Classify(tc.err))
			assert.ErrorIs(t, c.MapError(tc.err), tc.mapped)
		})
	}

	t.Run("should pass nil through", func(t *testing.T) {
		assert.NoError(t, c.MapError(nil))
	})
}
