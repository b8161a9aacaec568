package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amirhossein-jamali/credit-ledger/internal/app"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

func newGrantCmd(r *runner) *cobra.Command {
	var (
		amount      int64
		txType      string
		description string
		expiresDays int
		adminID     string
	)

	cmd := &cobra.Command{
		Use:   "grant <userId>",
		Short: "Grant credits to a user",
		Example: `  creditctl grant u1 --amount 100 --type purchase
  creditctl grant u1 --amount 50 --type bonus --expires-in-days 30 --admin ops@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := entity.ParseTransactionType(txType)
			if err != nil {
				return err
			}
			var expires *int
			if cmd.Flags().Changed("expires-in-days") {
				expires = &expiresDays
			}

			return r.run(cmd, func(ctx context.Context, c *app.Container) error {
				var result *entity.GrantResult
				if parsed == entity.TypeBonus && adminID != "" {
					granted, err := c.Policy.GrantAdminBonus(ctx, adminID, args[0], amount, description, expires)
					if err != nil {
						return err
					}
					result = &entity.GrantResult{Balance: granted.NewBalance, Transaction: granted.Transaction}
				} else {
					result, err = c.Ledger.Grant(ctx, entity.GrantRequest{
						UserID:        args[0],
						Amount:        amount,
						Type:          parsed,
						Description:   description,
						ExpiresInDays: expires,
					})
					if err != nil {
						return err
					}
				}

				if r.isJSON() {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "granted %d %s credits to %s, balance %d\n", amount, parsed, args[0], result.Balance)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&amount, "amount", 0, "credits to grant")
	cmd.Flags().StringVar(&txType, "type", string(entity.TypeBonus), "purchase|bonus|referral")
	cmd.Flags().StringVar(&description, "description", "", "ledger description")
	cmd.Flags().IntVar(&expiresDays, "expires-in-days", 0, "expiry of a free grant; omit to never expire")
	cmd.Flags().StringVar(&adminID, "admin", "", "record the grant as an admin bonus by this operator")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newDeductCmd(r *runner) *cobra.Command {
	var (
		amount      int64
		txType      string
		description string
		prefer      string
	)

	cmd := &cobra.Command{
		Use:   "deduct <userId>",
		Short: "Spend credits from a user's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := entity.ParseTransactionType(txType)
			if err != nil {
				return err
			}
			if !parsed.IsSpend() {
				return errors.New("deduct needs a spend type: generation or upscale")
			}
			preference, err := entity.ParseCreditPreference(prefer)
			if err != nil {
				return err
			}

			return r.run(cmd, func(ctx context.Context, c *app.Container) error {
				result, err := c.Ledger.DeductCreditsWithType(ctx, entity.SpendRequest{
					UserID:      args[0],
					Amount:      amount,
					Type:        parsed,
					Description: description,
				}, preference)
				if err != nil {
					return err
				}
				if r.isJSON() {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deducted %d from %s (free %d, purchased %d), balance %d\n",
					amount, args[0], result.FreeUsed, result.PurchasedUsed, result.Balance)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&amount, "amount", 0, "credits to spend")
	cmd.Flags().StringVar(&txType, "type", string(entity.TypeGeneration), "generation|upscale")
	cmd.Flags().StringVar(&description, "description", "", "ledger description")
	cmd.Flags().StringVar(&prefer, "prefer", string(entity.PreferAuto), "free|purchased|auto")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
