package cmd

import (
	"context"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GrowGrammers/authbridge/actions"
	"github.com/GrowGrammers/authbridge/bridge"
	"github.com/GrowGrammers/authbridge/bridge/httpbridge"
	"github.com/GrowGrammers/authbridge/bridge/simbridge"
	"github.com/GrowGrammers/authbridge/internal/config"
	"github.com/GrowGrammers/authbridge/providers"
	"github.com/GrowGrammers/authbridge/session"
)

var (
	configPath string
	forceSim   bool
)

var rootCmd = &cobra.Command{
	Use:   "authcli",
	Short: "Session synchronization client for the GrowGrammers authenticator",
	Long: `authcli drives the authbridge session core from the command line.

By default it runs against the in-process simulated authenticator, which
fabricates every flow deterministically. Point it at a real authenticator
with a config file:

  authcli --config authbridge.yaml login --provider google`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	},
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&forceSim, "sim", false, "force the simulated bridge regardless of config")
}

func banner(appName string) {
	figure.NewFigure(appName, "", true).Print()
}

// stack is the assembled core: one bridge, one subscription, one action
// layer, torn down in order by close.
type stack struct {
	br      bridge.Bridge
	sub     *session.Subscription
	actions *actions.Service
	close   func()
}

// buildStack loads config and assembles the core. The caller owns the
// returned handle; nothing here is process-global.
func buildStack(ctx context.Context) (*stack, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if forceSim {
		cfg.Mode = config.ModeSim
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	br, err := buildBridge(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sub, err := session.NewSubscription(ctx, br)
	if err != nil {
		br.Cleanup()
		return nil, err
	}

	svc, err := actions.New(br, sub)
	if err != nil {
		sub.Close()
		br.Cleanup()
		return nil, err
	}

	return &stack{
		br:      br,
		sub:     sub,
		actions: svc,
		close: func() {
			sub.Close()
			br.Cleanup()
		},
	}, nil
}

func buildBridge(ctx context.Context, cfg config.Config) (bridge.Bridge, error) {
	if cfg.Mode == config.ModeSim {
		opts := []simbridge.Option{}
		if cfg.OAuthDelayMS > 0 {
			opts = append(opts, simbridge.WithOAuthDelay(time.Duration(cfg.OAuthDelayMS)*time.Millisecond))
		}
		return simbridge.New(opts...), nil
	}

	var registry *providers.Registry
	if len(cfg.Providers) > 0 {
		var err error
		registry, err = providers.NewRegistry(ctx, cfg.Providers)
		if err != nil {
			return nil, err
		}
	}

	return httpbridge.New(httpbridge.Config{
		BaseURL:  cfg.AuthenticatorURL,
		Registry: registry,
	})
}
