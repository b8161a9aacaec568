// Package config loads the service configuration from YAML, .env files and the environment
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Logger      LoggerConfig   `mapstructure:"logger"`
	Ledger      LedgerConfig   `mapstructure:"ledger"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"readTimeout"`       // seconds
	WriteTimeout      time.Duration `mapstructure:"writeTimeout"`      // seconds
	IdleTimeout       time.Duration `mapstructure:"idleTimeout"`       // seconds
	ReadHeaderTimeout time.Duration `mapstructure:"readHeaderTimeout"` // seconds
	ShutdownTimeout   time.Duration `mapstructure:"shutdownTimeout"`   // seconds
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslMode"`
	SQLitePath      string        `mapstructure:"sqlitePath"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"` // minutes
	ConnMaxIdleTime time.Duration `mapstructure:"connMaxIdleTime"` // minutes
	QueryTimeout    time.Duration `mapstructure:"queryTimeout"`    // seconds
	RetryAttempts   int           `mapstructure:"retryAttempts"`
	RetryDelay      time.Duration `mapstructure:"retryDelay"` // seconds
	LogLevel        string        `mapstructure:"logLevel"`

	// Retries of a unit of work aborted by a serialization failure or deadlock
	ConflictRetries       int           `mapstructure:"conflictRetries"`
	ConflictRetryInterval time.Duration `mapstructure:"conflictRetryInterval"` // milliseconds
	ConflictRetryMax      time.Duration `mapstructure:"conflictRetryMax"`      // milliseconds
}

// LoggerConfig contains logger settings
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	CallerInfo bool   `mapstructure:"callerInfo"`
}

// LedgerConfig contains prices, grant amounts and projection windows
type LedgerConfig struct {
	GenerationPrice4    int64 `mapstructure:"generationPrice4"`
	GenerationPrice2    int64 `mapstructure:"generationPrice2"`
	UpscalePrice        int64 `mapstructure:"upscalePrice"`
	SignupBonusGeneral  int64 `mapstructure:"signupBonusGeneral"`
	SignupBonusBusiness int64 `mapstructure:"signupBonusBusiness"`
	ReferralReward      int64 `mapstructure:"referralReward"`
	BonusExpiryDays     int   `mapstructure:"bonusExpiryDays"`
	ExpiringWindowDays  []int `mapstructure:"expiringWindowDays"`
}

// ExpiringWindows converts the configured day counts into durations
func (l LedgerConfig) ExpiringWindows() []time.Duration {
	windows := make([]time.Duration, 0, len(l.ExpiringWindowDays))
	for _, days := range l.ExpiringWindowDays {
		windows = append(windows, time.Duration(days)*24*time.Hour)
	}
	return windows
}

// RedisConfig contains the stats cache settings
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"` // seconds
	KeyPrefix string        `mapstructure:"keyPrefix"`
}

// KafkaConfig contains the ledger event settings
type KafkaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Brokers         []string      `mapstructure:"brokers"`
	ClientID        string        `mapstructure:"clientId"`
	Topic           string        `mapstructure:"topic"`
	ProducerRetries int           `mapstructure:"producerRetries"`
	RelayInterval   time.Duration `mapstructure:"relayInterval"` // milliseconds
	RelayBatchSize  int           `mapstructure:"relayBatchSize"`
	RelayMaxRetries int           `mapstructure:"relayMaxRetries"`
}

// MetricsConfig contains the prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Validate ensures all required configuration values are present
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == 0 {
		missing = append(missing, "server.port")
	}
	if c.Server.ShutdownTimeout == 0 {
		missing = append(missing, "server.shutdownTimeout")
	}
	if c.Logger.Level == "" {
		missing = append(missing, "logger.level")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			missing = append(missing, "database.host (or CL_DB_HOST)")
		}
		if c.Database.Username == "" {
			missing = append(missing, "database.username (or CL_DB_USERNAME)")
		}
		if c.Database.Database == "" {
			missing = append(missing, "database.database (or CL_DB_NAME)")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			missing = append(missing, "database.sqlitePath")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid database driver: %s, must be one of: postgres, sqlite, memory", c.Database.Driver)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		missing = append(missing, "redis.addr")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			missing = append(missing, "kafka.brokers")
		}
		if c.Kafka.Topic == "" {
			missing = append(missing, "kafka.topic")
		}
	}

	switch c.Environment {
	case Development, Production, Test:
	default:
		return fmt.Errorf("invalid environment value: %s, must be one of: %s, %s, or %s",
			c.Environment, Development, Production, Test)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configurations: %s", strings.Join(missing, ", "))
	}

	for _, days := range c.Ledger.ExpiringWindowDays {
		if days <= 0 {
			return fmt.Errorf("ledger.expiringWindowDays must be positive, got %d", days)
		}
	}
	return nil
}
