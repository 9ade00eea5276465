// Package providers holds the OAuth2/OIDC provider registry the real bridge
// consults when starting a provider flow. Entries that name an issuer are
// discovered through OIDC and get an ID-token verifier; entries with literal
// endpoint URLs are plain OAuth2.
package providers

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

var UnknownProviderErr = errors.New("unknown provider")

// Entry is the configuration for one provider.
type Entry struct {
	Name         string   `yaml:"name"`
	IssuerURL    string   `yaml:"issuerUrl"`
	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret"`
	RedirectURL  string   `yaml:"redirectUrl"`
	Scopes       []string `yaml:"scopes"`

	// AuthURL/TokenURL configure a plain OAuth2 provider when no issuer is
	// set.
	AuthURL  string `yaml:"authUrl"`
	TokenURL string `yaml:"tokenUrl"`
}

// Provider is a configured provider ready to hand out authorization URLs.
type Provider struct {
	Name     string
	OAuth2   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// AuthCodeURL builds the provider authorization URL for the given state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.OAuth2.AuthCodeURL(state)
}

// VerifyIDToken checks a raw ID token against the provider's OIDC verifier.
func (p *Provider) VerifyIDToken(ctx context.Context, raw string) (*oidc.IDToken, error) {
	if p.verifier == nil {
		return nil, errors.Errorf("[Provider.VerifyIDToken] provider %q has no OIDC verifier", p.Name)
	}
	token, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.VerifyIDToken] verify")
	}
	return token, nil
}

// Registry maps provider names to configured providers.
type Registry struct {
	providers map[string]*Provider
}

// NewRegistry builds the registry, performing OIDC discovery for entries
// that carry an issuer URL.
func NewRegistry(ctx context.Context, entries []Entry) (*Registry, error) {
	r := &Registry{providers: make(map[string]*Provider, len(entries))}

	for _, entry := range entries {
		if entry.Name == "" {
			return nil, errors.New("[NewRegistry] provider name is required")
		}
		if entry.ClientID == "" {
			return nil, errors.Errorf("[NewRegistry] provider %q has no client id", entry.Name)
		}

		p, err := buildProvider(ctx, entry)
		if err != nil {
			return nil, errors.Wrapf(err, "[NewRegistry] provider %q", entry.Name)
		}
		r.providers[entry.Name] = p
	}

	return r, nil
}

func buildProvider(ctx context.Context, entry Entry) (*Provider, error) {
	scopes := entry.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	cfg := &oauth2.Config{
		ClientID:     entry.ClientID,
		ClientSecret: entry.ClientSecret,
		RedirectURL:  entry.RedirectURL,
		Scopes:       scopes,
	}

	if entry.IssuerURL == "" {
		if entry.AuthURL == "" || entry.TokenURL == "" {
			return nil, errors.New("either issuerUrl or authUrl+tokenUrl is required")
		}
		cfg.Endpoint = oauth2.Endpoint{AuthURL: entry.AuthURL, TokenURL: entry.TokenURL}
		return &Provider{Name: entry.Name, OAuth2: cfg}, nil
	}

	discovered, err := oidc.NewProvider(ctx, entry.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "oidc discovery")
	}
	cfg.Endpoint = discovered.Endpoint()

	return &Provider{
		Name:     entry.Name,
		OAuth2:   cfg,
		verifier: discovered.Verifier(&oidc.Config{ClientID: entry.ClientID}),
	}, nil
}

// Get looks up a provider by name.
func (r *Registry) Get(name string) (*Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, errors.Wrapf(UnknownProviderErr, "[Registry.Get] %q", name)
	}
	return p, nil
}

// Names lists the configured provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// State generates a random state parameter for an authorization request.
func State() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "[providers.State] rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
