// Package app assembles the ledger, its persistence and its optional adapters from configuration
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cacheport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/cache"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	msgport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/messaging"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/usecase/ledger"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/usecase/policy"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/usecase/report"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/handler"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/routes"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/cache"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/database"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/memory"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/messaging"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/metrics"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/config"
	"github.com/amirhossein-jamali/credit-ledger/internal/job"
)

// Container holds every long-lived component of a running ledger
type Container struct {
	Config       *config.Config
	Logger       coreport.Logger
	TimeProvider coreport.TimeProvider
	Registry     *prometheus.Registry
	Metrics      coreport.Metrics

	DB         *database.Manager // nil for the memory driver
	UnitOfWork persistence.UnitOfWork
	StatsCache *cache.RedisStatsCache // nil when redis is disabled
	Publisher  msgport.Publisher      // nil when kafka is disabled
	Relay      *job.OutboxRelay       // nil when kafka is disabled

	Ledger *ledger.Engine
	Policy *policy.Service
	Report *report.Service

	closers []func() error
}

// Option overrides a component New would otherwise build from configuration
type Option func(*options)

type options struct {
	publisher msgport.Publisher
}

// WithPublisher uses p for ledger events instead of dialing the configured brokers
func WithPublisher(p msgport.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// New connects the configured stores and builds the use cases.
// On error every component opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, logger coreport.Logger, timeProvider coreport.TimeProvider, opts ...Option) (c *Container, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	built := &Container{
		Config:       cfg,
		Logger:       logger,
		TimeProvider: timeProvider,
	}
	c = built
	defer func() {
		if err != nil {
			_ = built.Close()
			c = nil
		}
	}()

	c.Metrics = metrics.NewNoopMetrics()
	if cfg.Metrics.Enabled {
		c.Registry = prometheus.NewRegistry()
		c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		c.Metrics = metrics.NewPrometheusMetrics(c.Registry)
	}

	if err = c.openPersistence(ctx); err != nil {
		return nil, err
	}

	engineOpts := []ledger.Option{
		ledger.WithMetrics(c.Metrics),
		ledger.WithExpiryWindows(cfg.Ledger.ExpiringWindows()...),
	}

	var statsCache cacheport.StatsCache
	if cfg.Redis.Enabled {
		c.StatsCache = cache.NewRedisStatsCache(cache.NewRedisClient(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), cfg.Redis.TTL, cfg.Redis.KeyPrefix)
		c.closers = append(c.closers, c.StatsCache.Close)
		if pingErr := c.StatsCache.Ping(ctx); pingErr != nil {
			logger.Warn("Redis is unreachable, stats will be computed from the ledger", map[string]any{
				"addr":  cfg.Redis.Addr,
				"error": pingErr.Error(),
			})
		}
		statsCache = c.StatsCache
		engineOpts = append(engineOpts, ledger.WithStatsCache(statsCache))
	}

	if cfg.Kafka.Enabled {
		if err = c.openPublisher(o.publisher); err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, ledger.WithEvents(cfg.Kafka.Topic))
		c.Relay = job.NewOutboxRelay(c.UnitOfWork, c.Publisher, logger, c.Metrics, job.RelayConfig{
			Interval:   cfg.Kafka.RelayInterval,
			BatchSize:  cfg.Kafka.RelayBatchSize,
			MaxRetries: cfg.Kafka.RelayMaxRetries,
		})
	}

	c.Ledger = ledger.NewEngine(c.UnitOfWork, timeProvider, logger, engineOpts...)
	c.Policy = policy.NewService(c.Ledger, logger, PolicyConfig(cfg.Ledger))
	c.Report = report.NewService(c.UnitOfWork, logger, statsCache, c.Metrics)

	logger.Info("Credit ledger assembled", map[string]any{
		"driver":  cfg.Database.Driver,
		"redis":   cfg.Redis.Enabled,
		"kafka":   cfg.Kafka.Enabled,
		"metrics": cfg.Metrics.Enabled,
	})
	return c, nil
}

func (c *Container) openPersistence(ctx context.Context) error {
	dbConfig := DatabaseConfig(c.Config.Database, c.Config.Logger.Level)
	if err := dbConfig.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if dbConfig.Driver == database.DriverMemory {
		c.UnitOfWork = memory.NewStore(c.TimeProvider)
		return nil
	}

	c.DB = database.NewManager(dbConfig, c.Logger, c.TimeProvider)
	if _, err := c.DB.Connect(ctx); err != nil {
		return err
	}
	c.closers = append(c.closers, c.DB.Close)

	if c.Registry != nil {
		sqlDB, err := c.DB.DB().DB()
		if err != nil {
			return err
		}
		c.Registry.MustRegister(collectors.NewDBStatsCollector(sqlDB, dbConfig.Driver))
	}

	if err := c.DB.Migrate(ctx); err != nil {
		return err
	}
	c.UnitOfWork = c.DB.CreateUnitOfWork()
	return nil
}

func (c *Container) openPublisher(injected msgport.Publisher) error {
	if injected != nil {
		c.Publisher = injected
	} else {
		publisher, err := messaging.NewKafkaPublisher(messaging.KafkaConfig{
			Brokers:  c.Config.Kafka.Brokers,
			ClientID: c.Config.Kafka.ClientID,
			MaxRetry: c.Config.Kafka.ProducerRetries,
		}, c.Logger)
		if err != nil {
			return err
		}
		c.Publisher = publisher
	}
	c.closers = append(c.closers, c.Publisher.Close)
	return nil
}

// DatabaseConfig maps the loaded settings onto the database adapter
func DatabaseConfig(cfg config.DatabaseConfig, loggerLevel string) *database.Config {
	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = loggerLevel
	}
	retry := database.DefaultRetryConfig()
	retry.MaxRetries = cfg.ConflictRetries
	if cfg.ConflictRetryInterval > 0 {
		retry.RetryInterval = cfg.ConflictRetryInterval
	}
	if cfg.ConflictRetryMax > 0 {
		retry.MaxInterval = cfg.ConflictRetryMax
	}

	return &database.Config{
		Driver:          cfg.Driver,
		Host:            cfg.Host,
		Port:            cfg.Port,
		Username:        cfg.Username,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		ApplicationName: database.DefaultApplicationName,
		SQLitePath:      cfg.SQLitePath,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		QueryTimeout:    cfg.QueryTimeout,
		LogLevel:        logLevel,
		RetryAttempts:   cfg.RetryAttempts,
		RetryDelay:      cfg.RetryDelay,
		Retry:           retry,
	}
}

// PolicyConfig maps the loaded prices and grant amounts onto the policy service
func PolicyConfig(cfg config.LedgerConfig) policy.Config {
	pc := policy.DefaultConfig()
	if cfg.GenerationPrice4 > 0 {
		pc.GenerationPrices[4] = cfg.GenerationPrice4
	}
	if cfg.GenerationPrice2 > 0 {
		pc.GenerationPrices[2] = cfg.GenerationPrice2
	}
	if cfg.UpscalePrice > 0 {
		pc.UpscalePrice = cfg.UpscalePrice
	}
	if cfg.SignupBonusGeneral > 0 {
		pc.SignupBonusGeneral = cfg.SignupBonusGeneral
	}
	if cfg.SignupBonusBusiness > 0 {
		pc.SignupBonusBusiness = cfg.SignupBonusBusiness
	}
	if cfg.ReferralReward > 0 {
		pc.ReferralReward = cfg.ReferralReward
	}
	if cfg.BonusExpiryDays > 0 {
		pc.BonusExpiryDays = cfg.BonusExpiryDays
	}
	return pc
}

// HealthChecks probes the database and the stats cache when they are in use
func (c *Container) HealthChecks() []handler.HealthCheck {
	var checks []handler.HealthCheck
	if c.DB != nil {
		checks = append(checks, handler.HealthCheck{Name: "database", Check: c.DB.Ping})
	}
	if c.StatsCache != nil {
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: c.StatsCache.Ping})
	}
	return checks
}

// MetricsHandler serves the container's registry, or nil when metrics are disabled
func (c *Container) MetricsHandler() http.Handler {
	if c.Registry == nil {
		return nil
	}
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// Router builds the gin engine serving the HTTP surface
func (c *Container) Router() *gin.Engine {
	router := gin.New()
	routes.SetupMiddlewares(router, c.Logger, c.TimeProvider)
	routes.SetupRoutes(router, routes.Handlers{
		Credit:  handler.NewCreditHandler(c.Ledger, c.Report, c.Logger),
		Admin:   handler.NewAdminHandler(c.Policy, c.Logger),
		Health:  handler.NewHealthHandler(c.TimeProvider, c.Logger, c.Config.Database.QueryTimeout, c.HealthChecks()...),
		Metrics: c.MetricsHandler(),
	})
	return router
}

// StartBackground launches the outbox relay and the pool monitor when they are configured
func (c *Container) StartBackground(ctx context.Context) {
	if c.Relay != nil {
		go c.Relay.Start(ctx)
	}
	if c.DB != nil {
		c.DB.StartMonitoring(ctx, database.DefaultMonitorInterval)
	}
}

// Close stops background work and releases every connection in reverse opening order
func (c *Container) Close() error {
	if c.Relay != nil {
		c.Relay.Stop()
	}

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil

	if flushErr := c.Logger.Flush(); flushErr != nil {
		c.Logger.Debug("Logger flush failed", map[string]any{"error": flushErr.Error()})
	}
	return errors.Join(errs...)
}
