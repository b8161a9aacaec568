package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment constants
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CL"

// ConfigPaths defines the paths to look for config files
var ConfigPaths = []string{
	"./configs",
	"../configs",
	"../../configs",
}

// DotEnvPaths defines the paths to look for .env files
var DotEnvPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"./configs/.env",
	"../configs/.env",
}

// LoadConfig loads configuration for the environment named by CL_ENV.
// A missing <env>.yaml is tolerated and leaves the defaults in place.
func LoadConfig() (*Config, error) {
	// .env files are optional
	_ = loadDotEnvFile()

	env := getEnvironment()

	v := viper.New()
	v.SetConfigName(env)
	v.SetConfigType("yaml")
	for _, path := range ConfigPaths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	processEnvOverrides(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.Environment = env

	processDurations(&config)

	return &config, nil
}

func loadDotEnvFile() error {
	var lastError error
	for _, path := range DotEnvPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			lastError = err
			continue
		}
		return nil
	}
	if lastError != nil {
		return fmt.Errorf("could not load any .env file: %w", lastError)
	}
	return errors.New("no .env file found in search paths")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 15)
	v.SetDefault("server.writeTimeout", 15)
	v.SetDefault("server.idleTimeout", 60)
	v.SetDefault("server.readHeaderTimeout", 10)
	v.SetDefault("server.shutdownTimeout", 10)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.sqlitePath", "credit_ledger.db")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 25)
	v.SetDefault("database.connMaxLifetime", 5)
	v.SetDefault("database.connMaxIdleTime", 5)
	v.SetDefault("database.queryTimeout", 10)
	v.SetDefault("database.retryAttempts", 3)
	v.SetDefault("database.retryDelay", 5)
	v.SetDefault("database.logLevel", "warn")
	v.SetDefault("database.conflictRetries", 5)
	v.SetDefault("database.conflictRetryInterval", 10)
	v.SetDefault("database.conflictRetryMax", 500)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.callerInfo", true)

	v.SetDefault("ledger.generationPrice4", 20)
	v.SetDefault("ledger.generationPrice2", 10)
	v.SetDefault("ledger.upscalePrice", 10)
	v.SetDefault("ledger.signupBonusGeneral", 30)
	v.SetDefault("ledger.signupBonusBusiness", 100)
	v.SetDefault("ledger.referralReward", 40)
	v.SetDefault("ledger.bonusExpiryDays", 30)
	v.SetDefault("ledger.expiringWindowDays", []int{7, 30})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 60)
	v.SetDefault("redis.keyPrefix", "credit-ledger:stats:")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.clientId", "credit-ledger")
	v.SetDefault("kafka.topic", "credit-ledger.events")
	v.SetDefault("kafka.producerRetries", 3)
	v.SetDefault("kafka.relayInterval", 500)
	v.SetDefault("kafka.relayBatchSize", 100)
	v.SetDefault("kafka.relayMaxRetries", 5)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// getEnvironment reads CL_ENV, defaulting to development
func getEnvironment() string {
	env := os.Getenv(EnvPrefix + "_ENV")
	if env == "" {
		env = Development
	}
	return strings.ToLower(env)
}

// processEnvOverrides applies the short-form variables used by deployments for secrets and endpoints
func processEnvOverrides(v *viper.Viper) {
	strOverrides := map[string]string{
		"CL_DB_DRIVER":      "database.driver",
		"CL_DB_HOST":        "database.host",
		"CL_DB_USERNAME":    "database.username",
		"CL_DB_PASSWORD":    "database.password",
		"CL_DB_NAME":        "database.database",
		"CL_DB_SSL_MODE":    "database.sslMode",
		"CL_DB_SQLITE_PATH": "database.sqlitePath",
		"CL_SERVER_HOST":    "server.host",
		"CL_LOGGER_LEVEL":   "logger.level",
		"CL_REDIS_ADDR":     "redis.addr",
		"CL_REDIS_PASSWORD": "redis.password",
		"CL_KAFKA_TOPIC":    "kafka.topic",
	}
	for env, key := range strOverrides {
		if val := os.Getenv(env); val != "" {
			v.Set(key, val)
		}
	}

	intOverrides := map[string]string{
		"CL_DB_PORT":           "database.port",
		"CL_DB_MAX_OPEN_CONNS": "database.maxOpenConns",
		"CL_DB_MAX_IDLE_CONNS": "database.maxIdleConns",
		"CL_SERVER_PORT":       "server.port",
	}
	for env, key := range intOverrides {
		if val := getEnvInt(env, 0); val > 0 {
			v.Set(key, val)
		}
	}

	if brokers := os.Getenv("CL_KAFKA_BROKERS"); brokers != "" {
		v.Set("kafka.brokers", strings.Split(brokers, ","))
	}
	if enabled, err := strconv.ParseBool(os.Getenv("CL_REDIS_ENABLED")); err == nil {
		v.Set("redis.enabled", enabled)
	}
	if enabled, err := strconv.ParseBool(os.Getenv("CL_KAFKA_ENABLED")); err == nil {
		v.Set("kafka.enabled", enabled)
	}
}

func getEnvInt(name string, defaultVal int) int {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

// processDurations converts the integer units used in the files into durations
func processDurations(config *Config) {
	config.Server.ReadTimeout = time.Duration(config.Server.ReadTimeout) * time.Second
	config.Server.WriteTimeout = time.Duration(config.Server.WriteTimeout) * time.Second
	config.Server.IdleTimeout = time.Duration(config.Server.IdleTimeout) * time.Second
	config.Server.ReadHeaderTimeout = time.Duration(config.Server.ReadHeaderTimeout) * time.Second
	config.Server.ShutdownTimeout = time.Duration(config.Server.ShutdownTimeout) * time.Second

	config.Database.ConnMaxLifetime = time.Duration(config.Database.ConnMaxLifetime) * time.Minute
	config.Database.ConnMaxIdleTime = time.Duration(config.Database.ConnMaxIdleTime) * time.Minute
	config.Database.QueryTimeout = time.Duration(config.Database.QueryTimeout) * time.Second
	config.Database.RetryDelay = time.Duration(config.Database.RetryDelay) * time.Second
	config.Database.ConflictRetryInterval = time.Duration(config.Database.ConflictRetryInterval) * time.Millisecond
	config.Database.ConflictRetryMax = time.Duration(config.Database.ConflictRetryMax) * time.Millisecond

	config.Redis.TTL = time.Duration(config.Redis.TTL) * time.Second
	config.Kafka.RelayInterval = time.Duration(config.Kafka.RelayInterval) * time.Millisecond
}
