package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/repository"
)

// DefaultSlowQueryThreshold marks queries worth a warning
const DefaultSlowQueryThreshold = 200 * time.Millisecond

var ledgerTables = []string{"credit_balances", "credit_transactions", "outbox_messages", "migration_versions"}

// GormLogger writes GORM's output through the core logger.
// Lock and serialization failures are logged at warn because the unit of work retries them.
type GormLogger struct {
	coreLogger    coreport.Logger
	logLevel      logger.LogLevel
	slowThreshold time.Duration
	timeProvider  coreport.TimeProvider
	classifier    *repository.ErrorClassifier
}

// ParseGormLogLevel converts a configured level name into GORM's level
func ParseGormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn", "warning":
		return logger.Warn
	default:
		return logger.Info
	}
}

// NewGormLogger creates a GORM logger writing through coreLogger
func NewGormLogger(coreLogger coreport.Logger, timeProvider coreport.TimeProvider, level string) *GormLogger {
	return &GormLogger{
		coreLogger:    coreLogger,
		logLevel:      ParseGormLogLevel(level),
		slowThreshold: DefaultSlowQueryThreshold,
		timeProvider:  timeProvider,
		classifier:    repository.NewErrorClassifier(),
	}
}

// LogMode returns a copy at level
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

// WithSlowThreshold returns a copy that warns above threshold; zero disables slow query warnings
func (l *GormLogger) WithSlowThreshold(threshold time.Duration) *GormLogger {
	clone := *l
	clone.slowThreshold = threshold
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.logLevel >= logger.Info {
		l.coreLogger.Info(fmt.Sprintf(msg, data...), map[string]any{"source": "gorm"})
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.logLevel >= logger.Warn {
		l.coreLogger.Warn(fmt.Sprintf(msg, data...), map[string]any{"source": "gorm"})
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.logLevel >= logger.Error {
		l.coreLogger.Error(fmt.Sprintf(msg, data...), map[string]any{"source": "gorm"})
	}
}

// Trace logs one statement: failures at error, retryable conflicts and slow queries at warn, the rest at debug
func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := l.timeProvider.Since(begin)
	statement, rows := fc()

	fields := map[string]any{
		"source":    "gorm",
		"elapsedMs": elapsed.Milliseconds(),
		"rows":      rows,
		"sql":       statement,
	}
	if verb := statementVerb(statement); verb != "" {
		fields["verb"] = verb
	}
	if table := ledgerTable(statement); table != "" {
		fields["table"] = table
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	switch {
	// a missed First is a lookup result
	case err != nil && errors.Is(err, gorm.ErrRecordNotFound):
		if l.logLevel >= logger.Info {
			l.coreLogger.Debug("SQL query found no rows", fields)
		}
	case err != nil && l.classifier.IsLockError(err):
		if l.logLevel >= logger.Warn {
			l.coreLogger.Warn("SQL conflict, unit of work will retry", fields)
		}
	case err != nil:
		if l.logLevel >= logger.Error {
			l.coreLogger.Error("SQL error", fields)
		}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		if l.logLevel >= logger.Warn {
			l.coreLogger.Warn("Slow SQL query", fields)
		}
	case l.logLevel >= logger.Info:
		l.coreLogger.Debug("SQL query", fields)
	}
}

func statementVerb(statement string) string {
	upper := strings.ToUpper(strings.TrimSpace(statement))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(upper, verb) {
			return verb
		}
	}
	return ""
}

// ledgerTable returns the first ledger table the statement mentions
func ledgerTable(statement string) string {
	for _, table := range ledgerTables {
		if strings.Contains(statement, table) {
			return table
		}
	}
	return ""
}
