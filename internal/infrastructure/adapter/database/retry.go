package database

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxInterval   time.Duration `mapstructure:"max_interval"`
	JitterFactor  float32       `mapstructure:"jitter_factor"` // 0.0-1.0
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    5,
		RetryInterval: 10 * time.Millisecond,
		MaxInterval:   500 * time.Millisecond,
		JitterFactor:  0.2,
	}
}

// NewRetryPolicy builds an exponential backoff policy that retries while retryable returns true
func NewRetryPolicy(config RetryConfig, retryable func(error) bool) retrypolicy.RetryPolicy[any] {
	builder := retrypolicy.NewBuilder[any]().
		WithMaxRetries(config.MaxRetries).
		HandleIf(func(_ any, err error) bool {
			return err != nil && retryable(err)
		})

	if config.RetryInterval > 0 && config.MaxInterval > config.RetryInterval {
		builder = builder.WithBackoff(config.RetryInterval, config.MaxInterval)
	} else {
		builder = builder.WithDelay(config.RetryInterval)
	}
	if config.RetryInterval > 0 && config.JitterFactor > 0 {
		builder = builder.WithJitterFactor(float64(config.JitterFactor))
	}

	return builder.Build()
}

// runWithRetry executes operation under policy and returns the operation's last
// error rather than the policy's exceeded wrapper.
func runWithRetry(
	ctx context.Context,
	policy retrypolicy.RetryPolicy[any],
	logger coreport.Logger,
	name string,
	operation func() error,
) error {
	var lastErr error
	attempt := 0
	err := failsafe.With(policy).WithContext(ctx).Run(func() error {
		attempt++
		if attempt > 1 {
			logger.Warn("Retrying database operation", map[string]any{
				"operation": name,
				"attempt":   attempt,
				"error":     lastErr.Error(),
			})
		}
		lastErr = operation()
		return lastErr
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if lastErr != nil {
		return lastErr
	}
	return err
}
