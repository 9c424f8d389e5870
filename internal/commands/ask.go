package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCommand(g *globalFlags) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask for budgeting advice based on a user's ledgers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("email", email); err != nil {
				return err
			}
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("question is empty")
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
			snap, err := account.FormatForSummary(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.advisor(ctx).Answer(ctx, query, snap))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}
