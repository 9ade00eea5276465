// Package simbridge provides an in-process Bridge implementation that
// fabricates realistic asynchronous authenticator behavior: timer-driven
// OAuth completion, canned request routing, and verification-code checks,
// with no network or native code behind it. Every instance owns its own
// state; two bridges never observe each other's flows.
package simbridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/GrowGrammers/authbridge/bridge"
)

const (
	// TestVerificationCode is the one code the simulated authenticator
	// accepts for email flows.
	TestVerificationCode = "123456"

	// DefaultOAuthDelay models the provider round trip between the started
	// and success emissions.
	DefaultOAuthDelay = 1500 * time.Millisecond

	defaultTokenTTL = time.Hour
)

var _ bridge.Bridge = (*SimBridge)(nil)

// SimBridge is the simulated authenticator. The zero value is not usable;
// construct with New.
type SimBridge struct {
	clock      clockwork.Clock
	logger     zerolog.Logger
	notifier   *bridge.Notifier
	oauthDelay time.Duration
	signingKey []byte
	codeHash   []byte

	mu       sync.Mutex
	loggedIn bool
	user     *bridge.UserInfo
	token    string
	cleaned  bool
}

// Option configures a SimBridge.
type Option func(*SimBridge)

// WithClock substitutes the wall clock, letting tests drive the fabricated
// OAuth delay under virtual time.
func WithClock(clock clockwork.Clock) Option {
	return func(b *SimBridge) { b.clock = clock }
}

// WithLogger overrides the default global logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *SimBridge) { b.logger = logger }
}

// WithOAuthDelay overrides the fabricated provider round-trip delay.
func WithOAuthDelay(d time.Duration) Option {
	return func(b *SimBridge) { b.oauthDelay = d }
}

// WithSigningKey sets the HS256 key used to mint simulated session tokens.
func WithSigningKey(key []byte) Option {
	return func(b *SimBridge) { b.signingKey = key }
}

// New builds a simulated bridge with its own private state and listener
// registry.
func New(options ...Option) *SimBridge {
	b := &SimBridge{
		clock:      clockwork.NewRealClock(),
		logger:     log.Logger,
		oauthDelay: DefaultOAuthDelay,
		signingKey: []byte("simbridge-dev-key"),
	}
	for _, opt := range options {
		opt(b)
	}
	b.notifier = bridge.NewNotifier(b.logger)

	hash, err := bcrypt.GenerateFromPassword([]byte(TestVerificationCode), bcrypt.MinCost)
	if err != nil {
		// bcrypt on a six-digit constant cannot fail at MinCost.
		b.logger.Error().Err(err).Msg("hashing test verification code")
	}
	b.codeHash = hash

	return b
}

// StartOAuth emits started synchronously and schedules the fabricated
// success after the configured delay. Internal logged-in state flips at the
// moment of the later emission, not at call time, so a synchronous caller
// observes only the started effects. There is no cancellation: a sign-out
// racing the pending completion still sees the late success applied.
func (b *SimBridge) StartOAuth(ctx context.Context, provider string) (bool, error) {
	if provider == "" {
		return false, errors.Wrap(bridge.InvalidRequestErr, "[SimBridge.StartOAuth] provider is required")
	}
	if err := ctx.Err(); err != nil {
		return false, errors.Wrap(err, "[SimBridge.StartOAuth] context")
	}

	b.emit(bridge.StatusStarted, &bridge.EventData{Provider: provider})

	b.clock.AfterFunc(b.oauthDelay, func() {
		user := fabricateUser(provider)

		b.mu.Lock()
		b.loggedIn = true
		b.user = &user
		b.token = b.mintToken(user)
		b.mu.Unlock()

		b.emit(bridge.StatusSuccess, &bridge.EventData{Provider: provider, User: &user})
	})

	return true, nil
}

// GetSession reports the live internal state, never a cache.
func (b *SimBridge) GetSession(ctx context.Context) (bridge.SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return bridge.SessionInfo{}, errors.Wrap(err, "[SimBridge.GetSession] context")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	info := bridge.SessionInfo{IsLoggedIn: b.loggedIn}
	if b.user != nil {
		u := *b.user
		info.User = &u
	}
	return info, nil
}

// SignOut clears the session and emits signed_out. Idempotent: a second call
// while already signed out still succeeds and still emits.
func (b *SimBridge) SignOut(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.Wrap(err, "[SimBridge.SignOut] context")
	}

	b.signOut()
	return true, nil
}

func (b *SimBridge) signOut() {
	b.mu.Lock()
	b.loggedIn = false
	b.user = nil
	b.token = ""
	b.mu.Unlock()

	b.emit(bridge.StatusSignedOut, nil)
}

// IsHealthy reports true until Cleanup.
func (b *SimBridge) IsHealthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.cleaned
}

// AddStatusListener registers fn with this instance's registry.
func (b *SimBridge) AddStatusListener(fn bridge.StatusListener) bridge.ListenerID {
	return b.notifier.Add(fn)
}

// RemoveStatusListener unregisters a listener by handle.
func (b *SimBridge) RemoveStatusListener(id bridge.ListenerID) {
	b.notifier.Remove(id)
}

// Cleanup drops all listeners and resets session state. Pending OAuth timers
// are not cancelled; their emissions land in an empty registry.
func (b *SimBridge) Cleanup() {
	b.notifier.Clear()

	b.mu.Lock()
	b.loggedIn = false
	b.user = nil
	b.token = ""
	b.cleaned = true
	b.mu.Unlock()
}

func (b *SimBridge) emit(status bridge.Status, data *bridge.EventData) {
	b.notifier.Broadcast(bridge.NewStatusEvent(status, b.clock.Now(), data))
}

func (b *SimBridge) mintToken(user bridge.UserInfo) string {
	now := b.clock.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"email":    user.Email,
		"provider": user.Provider,
		"iat":      now.Unix(),
		"exp":      now.Add(defaultTokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.signingKey)
	if err != nil {
		b.logger.Error().Err(err).Msg("minting simulated session token")
		return ""
	}
	return signed
}

func fabricateUser(provider string) bridge.UserInfo {
	id := uuid.New().String()
	short := strings.SplitN(id, "-", 2)[0]
	return bridge.UserInfo{
		ID:       id,
		Email:    short + "@" + provider + ".example.com",
		Nickname: provider + "-user",
		Provider: provider,
	}
}

func marshalEnvelope(env bridge.Envelope) []byte {
	body, err := json.Marshal(env)
	if err != nil {
		return []byte(`{"success":false,"message":"encoding failure"}`)
	}
	return body
}
