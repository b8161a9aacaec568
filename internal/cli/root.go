// Package cli implements creditctl, the operator command line for the credit ledger
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amirhossein-jamali/credit-ledger/internal/app"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	timeprovider "github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/time"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/config"
)

// Opener builds the container a command runs against
type Opener func(ctx context.Context, opts GlobalOptions) (*app.Container, error)

// GlobalOptions are the persistent flags shared by every command
type GlobalOptions struct {
	Env      string
	Output   string
	LogLevel string
}

// NewRootCmd returns the creditctl root command; a nil opener loads the service configuration
func NewRootCmd(open Opener) *cobra.Command {
	if open == nil {
		open = OpenFromConfig
	}
	opts := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:           "creditctl",
		Short:         "Inspect and adjust user credit balances",
		Long:          "creditctl runs ledger operations directly against the configured store, using the same engine as the API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Output != outputText && opts.Output != outputJSON {
				return fmt.Errorf("invalid output format %q: must be text or json", opts.Output)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.Env, "env", "", "configuration environment (overrides CL_ENV)")
	rootCmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", outputText, "output format: text|json")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level written to stderr")

	r := &runner{open: open, opts: opts}
	rootCmd.AddCommand(
		newBalanceCmd(r),
		newBreakdownCmd(r),
		newExpiringCmd(r),
		newHistoryCmd(r),
		newStatsCmd(r),
		newReconcileCmd(r),
		newGrantCmd(r),
		newDeductCmd(r),
		newMigrateCmd(r),
	)

	return rootCmd
}

// OpenFromConfig loads the configuration the API would use and assembles a container
func OpenFromConfig(ctx context.Context, opts GlobalOptions) (*app.Container, error) {
	if opts.Env != "" {
		if err := os.Setenv(config.EnvPrefix+"_ENV", opts.Env); err != nil {
			return nil, err
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// the relay belongs to the service
	cfg.Kafka.Enabled = false
	cfg.Metrics.Enabled = false

	appLogger := logger.NewZapLoggerWithOptions(logger.Options{
		Production: cfg.Environment == config.Production,
		Level:      opts.LogLevel,
		Output:     "stderr",
	})
	return app.New(ctx, cfg, appLogger, timeprovider.NewRealTimeProvider())
}

type runner struct {
	open Opener
	opts *GlobalOptions
}

// run opens a container for the duration of fn
func (r *runner) run(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := r.open(ctx, *r.opts)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() { _ = c.Close() }()

	return fn(ctx, c)
}
