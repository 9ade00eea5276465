package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "Email one-time-code flow",
}

var emailRequestCmd = &cobra.Command{
	Use:   "request <address>",
	Short: "Request a verification code for an email address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stk, err := buildStack(cmd.Context())
		if err != nil {
			return err
		}
		defer stk.close()

		if !stk.actions.RequestEmailCode(cmd.Context(), args[0]) {
			return errors.Errorf("requesting code: %s", stk.sub.Current().Err)
		}
		fmt.Printf("verification code sent to %s\n", args[0])
		return nil
	},
}

var emailVerifyCmd = &cobra.Command{
	Use:   "verify <address> <code>",
	Short: "Submit a verification code and log in",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		stk, err := buildStack(cmd.Context())
		if err != nil {
			return err
		}
		defer stk.close()

		if !stk.actions.VerifyEmailCode(cmd.Context(), args[0], args[1]) {
			return errors.Errorf("verifying code: %s", stk.sub.Current().Err)
		}
		printState(stk.sub.Current())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(emailCmd)
	emailCmd.AddCommand(emailRequestCmd)
	emailCmd.AddCommand(emailVerifyCmd)
}
