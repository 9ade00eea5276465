// Package config loads the CLI configuration from a YAML file with
// environment overrides. The zero config selects the simulated bridge, so
// the tool works out of the box with no file at all.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/GrowGrammers/authbridge/providers"
)

const (
	// ModeSim selects the in-process simulated bridge.
	ModeSim = "sim"
	// ModeHTTP selects the real transport against an external authenticator.
	ModeHTTP = "http"
)

// Config is the CLI-facing configuration.
type Config struct {
	// Mode is "sim" or "http".
	Mode string `yaml:"mode"`

	// AuthenticatorURL is the external authenticator base address (http mode).
	AuthenticatorURL string `yaml:"authenticatorUrl"`

	// OAuthDelayMS tunes the simulated provider round trip (sim mode).
	OAuthDelayMS int `yaml:"oauthDelayMs"`

	// Providers configures the OAuth2/OIDC registry (http mode).
	Providers []providers.Entry `yaml:"providers"`

	// LogLevel is a zerolog level name; defaults to "info".
	LogLevel string `yaml:"logLevel"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Mode:     ModeSim,
		LogLevel: "info",
	}
}

// Load reads path (when non-empty), applies defaults, then environment
// overrides AUTHBRIDGE_MODE and AUTHBRIDGE_URL.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "[config.Load] reading %s", path)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "[config.Load] parsing %s", path)
		}
	}

	if mode := os.Getenv("AUTHBRIDGE_MODE"); mode != "" {
		cfg.Mode = mode
	}
	if addr := os.Getenv("AUTHBRIDGE_URL"); addr != "" {
		cfg.AuthenticatorURL = addr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Mode {
	case ModeSim:
		return nil
	case ModeHTTP:
		if c.AuthenticatorURL == "" {
			return errors.New("[config.validate] http mode requires authenticatorUrl")
		}
		return nil
	default:
		return errors.Errorf("[config.validate] unknown mode %q", c.Mode)
	}
}
