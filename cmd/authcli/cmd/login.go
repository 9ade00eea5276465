package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/GrowGrammers/authbridge/bridge"
	"github.com/GrowGrammers/authbridge/session"
)

var loginProvider string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Start an OAuth provider flow and wait for it to conclude",
	RunE:  runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginProvider, "provider", "google", "provider to authenticate with")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	stk, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer stk.close()

	done := make(chan session.AuthState, 1)
	unsubscribe := stk.sub.Subscribe(func(state session.AuthState) {
		if state.LastEvent == nil {
			return
		}
		switch state.LastEvent.Status {
		case bridge.StatusSuccess, bridge.StatusError:
			select {
			case done <- state:
			default:
			}
		}
	})
	defer unsubscribe()

	if !stk.actions.StartOAuth(ctx, loginProvider) {
		return errors.Errorf("starting %s flow: %s", loginProvider, stk.sub.Current().Err)
	}
	fmt.Printf("started %s flow, waiting for completion...\n", loginProvider)

	select {
	case state := <-done:
		if state.Err != "" {
			return errors.Errorf("%s flow failed: %s", loginProvider, state.Err)
		}
		printState(state)
		return nil
	case <-time.After(30 * time.Second):
		return errors.New("timed out waiting for the flow to conclude")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printState(state session.AuthState) {
	if !state.IsLoggedIn {
		fmt.Println("not logged in")
		if state.Err != "" {
			fmt.Printf("error: %s\n", state.Err)
		}
		return
	}
	fmt.Printf("logged in as %s (%s via %s)\n", state.User.Nickname, state.User.Email, state.User.Provider)
}
