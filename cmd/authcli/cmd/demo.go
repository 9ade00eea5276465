package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GrowGrammers/authbridge/bridge"
	"github.com/GrowGrammers/authbridge/bridge/simbridge"
	"github.com/GrowGrammers/authbridge/session"
)

// demoCmd walks every flow against the simulated bridge, printing each state
// transition as the reducer applies it. Useful for eyeballing the event
// protocol without an authenticator.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run every simulated flow end to end, printing state transitions",
	RunE:  runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	banner("authbridge")

	forceSim = true
	stk, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer stk.close()

	unsubscribe := stk.sub.Subscribe(func(state session.AuthState) {
		status := bridge.Status("(none)")
		if state.LastEvent != nil {
			status = state.LastEvent.Status
		}
		fmt.Printf("  [%-17s] loggedIn=%-5v loading=%-5v oauth=%-5v err=%q\n",
			status, state.IsLoggedIn, state.IsLoading, state.IsOAuthInProgress, state.Err)
	})
	defer unsubscribe()

	fmt.Println("== OAuth flow ==")
	stk.actions.StartOAuth(ctx, "google")
	waitFor(stk, func(s session.AuthState) bool { return s.IsLoggedIn })

	fmt.Println("== sign out (twice, idempotent) ==")
	stk.actions.SignOut(ctx)
	stk.actions.SignOut(ctx)

	fmt.Println("== email flow, wrong code first ==")
	stk.actions.RequestEmailCode(ctx, "demo@example.com")
	stk.actions.VerifyEmailCode(ctx, "demo@example.com", "000000")
	stk.actions.VerifyEmailCode(ctx, "demo@example.com", simbridge.TestVerificationCode)

	fmt.Println("== protected call ==")
	resp, err := stk.actions.CallProtectedAPI(ctx, bridge.APIRequest{URL: "/api/profile", Method: "GET"})
	if err != nil {
		return err
	}
	fmt.Printf("  protected call: status=%d user=%s\n", resp.Status, resp.Headers["X-Authenticated-User"])

	stk.actions.SignOut(ctx)
	return nil
}

func waitFor(stk *stack, pred func(session.AuthState) bool) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if pred(stk.sub.Current()) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
