package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRegisterCommand(g *globalFlags) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("email", email); err != nil {
				return err
			}
			if err := requireFlag("password", password); err != nil {
				return err
			}

			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.auth.Register(commandContext(cmd), email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", strings.ToLower(strings.TrimSpace(email)))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}
