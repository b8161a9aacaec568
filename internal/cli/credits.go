package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amirhossein-jamali/credit-ledger/internal/app"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

func newBalanceCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <userId>",
		Short: "Print a user's total balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, c *app.Container) error {
				balance, err := c.Ledger.GetBalance(ctx, args[0])
				if err != nil {
					return err
				}
				if r.isJSON() {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"userId": args[0], "balance": balance})
				}
				fmt.Fprintln(cmd.OutOrStdout(), balance)
				return nil
			})
		},
	}
}

func newBreakdownCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "breakdown <userId>",
		Short: "Split a user's balance into free and purchased credits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, c *app.Container) error {
				b, err := c.Ledger.GetBalanceBreakdown(ctx, args[0])
				if err != nil {
					return err
				}
				if r.isJSON() {
					return writeJSON(cmd.OutOrStdout(), b)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "total:     %d\nfree:      %d\npurchased: %d\n", b.Total, b.Free, b.Purchased)
				return nil
			})
		},
	}
}

func newExpiringCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "expiring <userId>",
		Short: "Show free credit that lapses in the configured windows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, c *app.Container) error {
				expiring, err := c.Ledger.GetExpiringCredits(ctx, args[0])
				if err != nil {
					return err
				}
				if r.isJSON() {
					return writeJSON(cmd.OutOrStdout(), expiring)
				}
				for _, b := range expiring.Buckets {
					fmt.Fprintf(cmd.OutOrStdout(), "within %dd: %d\n", int(b.Window.Hours()/24), b.Amount)
				}
				return writeTransactions(cmd.OutOrStdout(), expiring.Transactions)
			})
		},
	}
}

func newHistoryCmd(r *runner) *cobra.Command {
	var (
		limit  int
		offset int
		txType string
	)

	cmd := &cobra.Command{
		Use:   "history <userId>",
		Short: "List a user's transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := entity.ListOptions{Limit: limit, Offset: offset}
			if txType != "" {
				parsed, err := entity.ParseTransactionType(txType)
				if err != nil {
					return err
				}
				opts.Type = parsed
			}

			return r.run(cmd, func(ctx context.Context, c *app.Container) error {
				page, err := c.Report.GetCreditTransactions(ctx, args[0], opts)
				if err != nil {
					return err
				}
				if r.isJSON() {
					return writeJSON(cmd.OutOrStdout(), page)
				}
				if err := writeTransactions(cmd.OutOrStdout(), page.Transactions); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d shown\n", len(page.Transactions), page.Total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default 20, max 100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	cmd.Flags().StringVar(&txType, "type", "", "only this transaction type")
	return cmd
}

func newStatsCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <userId>",
		Short: "Aggregate a user's history by type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, c *app.Container) error {
				stats, err := c.Report.GetCreditStats(ctx, args[0])
				if err != nil {
					return err
				}
				if r.isJSON() {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "balance:    %d\n", stats.Balance)
				fmt.Fprintf(out, "added:      %d (purchase %d, bonus %d, referral %d)\n",
					stats.TotalAdded, stats.TotalPurchased, stats.TotalBonus, stats.TotalReferral)
				fmt.Fprintf(out, "used:       %d (generation %d, upscale %d)\n",
					stats.TotalUsed, stats.TotalGeneration, stats.TotalUpscale)
				return nil
			})
		},
	}
}

func newReconcileCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <userId>",
		Short: "Compare the balance with the sum of the transaction log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, c *app.Container) error {
				rec, err := c.Report.ReconcileBalance(ctx, args[0])
				if err != nil {
					return err
				}
				if r.isJSON() {
					if err := writeJSON(cmd.OutOrStdout(), rec); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "balance: %d\nledger:  %d\n", rec.Balance, rec.LedgerSum)
				}
				if !rec.Consistent {
					return fmt.Errorf("balance of %s drifted from the ledger by %d", rec.UserID, rec.Balance-rec.LedgerSum)
				}
				return nil
			})
		},
	}
}
