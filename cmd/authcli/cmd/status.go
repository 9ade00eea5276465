package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		stk, err := buildStack(cmd.Context())
		if err != nil {
			return err
		}
		defer stk.close()

		if !stk.br.IsHealthy() {
			fmt.Println("authenticator: unreachable")
		} else {
			fmt.Println("authenticator: healthy")
		}
		printState(stk.sub.Current())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out of the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		stk, err := buildStack(cmd.Context())
		if err != nil {
			return err
		}
		defer stk.close()

		if !stk.actions.SignOut(cmd.Context()) {
			return errors.Errorf("signing out: %s", stk.sub.Current().Err)
		}
		fmt.Println("signed out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logoutCmd)
}
