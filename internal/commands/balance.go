package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
)

func newBalanceCommand(g *globalFlags) *cobra.Command {
	var email string
	var recompute bool
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print a user's balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("email", email); err != nil {
				return err
			}
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			account, err := a.account(ctx, email)
			if err != nil {
				return err
			}
			defer a.registry.Release(account)
			balance := account.Balance()
			if recompute {
				if balance, err = account.GetBalance(ctx); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), core.FormatAmount(a.cfg.CurrencySymbol, balance))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&recompute, "recompute", false, "recompute from the ledgers instead of the cached value")
	return cmd
}
