package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amirhossein-jamali/credit-ledger/internal/app"
)

func newMigrateCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema to the current version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// opening the container runs the migrations
			return r.run(cmd, func(ctx context.Context, c *app.Container) error {
				if c.DB == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "memory driver: nothing to migrate")
					return nil
				}
				version, err := c.DB.MigrationManager().GetCurrentVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %s\n", version)
				return nil
			})
		},
	}
}
