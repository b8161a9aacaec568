package database

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// DefaultApplicationName is reported to postgres in pg_stat_activity
const DefaultApplicationName = "credit-ledger"

var (
	validLogLevels = map[string]bool{"silent": true, "debug": true, "info": true, "warn": true, "error": true}
	validSSLModes  = map[string]bool{"disable": true, "allow": true, "prefer": true, "require": true, "verify-ca": true, "verify-full": true}
)

// Config holds the connection, pool and retry settings of the ledger store
type Config struct {
	Driver          string
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	ApplicationName string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
	LogLevel        string
	RetryAttempts   int           // connection attempts, including the first
	RetryDelay      time.Duration // between connection attempts
	Retry           RetryConfig   // serialization conflict retries inside a unit of work
}

// DefaultConfig returns pool and retry defaults for postgres.
// Credentials are never defaulted.
func DefaultConfig() *Config {
	return &Config{
		Driver:          DriverPostgres,
		Port:            5432,
		SSLMode:         "disable",
		ApplicationName: DefaultApplicationName,
		SQLitePath:      "credit_ledger.db",
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    10 * time.Second,
		LogLevel:        "info",
		RetryAttempts:   3,
		RetryDelay:      5 * time.Second,
		Retry:           DefaultRetryConfig(),
	}
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var problems []error

	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverPostgres:
		problems = append(problems, c.validatePostgres()...)
	case DriverSQLite:
		if c.SQLitePath == "" {
			problems = append(problems, errors.New("sqlite path is required"))
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Driver)
	}

	if c.MaxOpenConns <= 0 {
		problems = append(problems, fmt.Errorf("max open connections must be positive, got: %d", c.MaxOpenConns))
	}
	if c.MaxIdleConns <= 0 {
		problems = append(problems, fmt.Errorf("max idle connections must be positive, got: %d", c.MaxIdleConns))
	}
	if c.QueryTimeout <= 0 {
		problems = append(problems, errors.New("query timeout must be positive"))
	}
	if c.RetryAttempts < 1 {
		problems = append(problems, fmt.Errorf("retry attempts must be at least 1, got: %d", c.RetryAttempts))
	}
	if c.RetryDelay < 0 {
		problems = append(problems, fmt.Errorf("retry delay must be non-negative, got: %s", c.RetryDelay))
	}
	if c.Retry.MaxRetries < 0 {
		problems = append(problems, fmt.Errorf("serialization retries must be non-negative, got: %d", c.Retry.MaxRetries))
	}
	if !validLogLevels[c.LogLevel] {
		problems = append(problems, fmt.Errorf("invalid log level: %s", c.LogLevel))
	}

	return errors.Join(problems...)
}

func (c *Config) validatePostgres() []error {
	var problems []error
	if c.Host == "" {
		problems = append(problems, errors.New("database host is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Errorf("invalid port number: %d", c.Port))
	}
	if c.Username == "" {
		problems = append(problems, errors.New("database username is required"))
	}
	if c.Password == "" {
		problems = append(problems, errors.New("database password is required"))
	}
	if c.Database == "" {
		problems = append(problems, errors.New("database name is required"))
	}
	if !validSSLModes[c.SSLMode] {
		problems = append(problems, fmt.Errorf("invalid SSL mode: %s", c.SSLMode))
	}
	return problems
}

// DSN returns the connection string for the configured driver
func (c *Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.SQLitePath
	}
	return c.postgresDSN(c.Password)
}

// RedactedDSN is DSN with the password masked, for logs
func (c *Config) RedactedDSN() string {
	if c.Driver != DriverPostgres {
		return c.DSN()
	}
	return c.postgresDSN("xxxxx")
}

func (c *Config) postgresDSN(password string) string {
	parts := []string{
		"host=" + dsnValue(c.Host),
		fmt.Sprintf("port=%d", c.Port),
		"user=" + dsnValue(c.Username),
		"password=" + dsnValue(password),
		"dbname=" + dsnValue(c.Database),
		"sslmode=" + dsnValue(c.SSLMode),
	}
	if c.ApplicationName != "" {
		parts = append(parts, "application_name="+dsnValue(c.ApplicationName))
	}
	return strings.Join(parts, " ")
}

// dsnValue quotes a libpq keyword value when it contains spaces, quotes or backslashes
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// IsInMemorySQLite reports whether the sqlite database lives only as long as its connection
func (c *Config) IsInMemorySQLite() bool {
	return c.Driver == DriverSQLite &&
		(c.SQLitePath == ":memory:" || strings.Contains(c.SQLitePath, "mode=memory"))
}
