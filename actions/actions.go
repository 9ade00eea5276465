// Package actions is the orchestration surface screens call into. Each verb
// drives the bridge, reconciles the outcome with the session snapshot, and
// reports success as a plain bool; the human-readable reason for a failure
// travels through the snapshot's error field, never as a Go error (except
// CallProtectedAPI, which is a pass-through).
package actions

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GrowGrammers/authbridge/bridge"
	"github.com/GrowGrammers/authbridge/session"
)

// FlowKind names which logical session a sign-out should be routed to.
type FlowKind string

const (
	FlowKindNone  FlowKind = ""
	FlowKindEmail FlowKind = "email"
	FlowKindOAuth FlowKind = "oauth"
)

// Service wraps one bridge and one subscription. It is stateless across
// calls apart from the remembered current flow kind.
type Service struct {
	br     bridge.Bridge
	sub    *session.Subscription
	logger zerolog.Logger

	mu   sync.Mutex
	flow FlowKind
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger overrides the default global logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// New validates the collaborators and builds the action layer.
func New(br bridge.Bridge, sub *session.Subscription, options ...ServiceOption) (*Service, error) {
	if br == nil {
		return nil, errors.New("[actions.New] bridge is required")
	}
	if sub == nil {
		return nil, errors.New("[actions.New] subscription is required")
	}

	s := &Service{br: br, sub: sub, logger: log.Logger}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Flow reports the remembered current flow kind.
func (s *Service) Flow() FlowKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow
}

func (s *Service) setFlow(kind FlowKind) {
	s.mu.Lock()
	s.flow = kind
	s.mu.Unlock()
}

// StartOAuth marks the flow started optimistically, then asks the bridge. A
// bridge-reported refusal is surfaced synchronously as an error snapshot and
// clears the in-progress flags, independent of whatever the bridge emits
// later.
func (s *Service) StartOAuth(ctx context.Context, provider string) bool {
	if provider == "" {
		s.fail("provider is required")
		return false
	}

	s.sub.ApplyLocal(bridge.StatusStarted, &bridge.EventData{Provider: provider})

	ok, err := s.br.StartOAuth(ctx, provider)
	if err != nil {
		s.logger.Error().Err(err).Str("provider", provider).Msg("starting oauth flow")
		s.fail("could not reach the authenticator")
		return false
	}
	if !ok {
		s.fail("the authenticator refused to start the " + provider + " flow")
		return false
	}

	s.setFlow(FlowKindOAuth)
	return true
}

// RequestEmailCode asks the authenticator to send a verification code.
func (s *Service) RequestEmailCode(ctx context.Context, email string) bool {
	if email == "" {
		s.fail("email is required")
		return false
	}

	_, ok := s.callEnvelope(ctx, bridge.APIRequest{
		URL:    bridge.PathRequestCode,
		Method: "POST",
		Body:   mustJSON(emailBody{Email: email}),
	})
	if !ok {
		return false
	}

	s.setFlow(FlowKindEmail)
	return true
}

// VerifyEmailCode submits the code for an email login. On a match the bridge
// establishes the session and emits success; on a mismatch the bridge emits
// nothing and the reason lands in the snapshot's error field here.
func (s *Service) VerifyEmailCode(ctx context.Context, email, code string) bool {
	if email == "" || code == "" {
		s.fail("email and verification code are required")
		return false
	}

	_, ok := s.callEnvelope(ctx, bridge.APIRequest{
		URL:    bridge.PathEmailLogin,
		Method: "POST",
		Body:   mustJSON(emailBody{Email: email, VerifyCode: code}),
	})
	if !ok {
		return false
	}

	s.setFlow(FlowKindEmail)
	return true
}

// SignOut clears the session, routed by the remembered flow kind: an email
// session ends through the logout endpoint, anything else through the
// bridge's native sign-out. On success the logged-in fields are cleared
// immediately by replaying signed_out locally; the bridge's own signed_out
// emission is a tolerated duplicate.
func (s *Service) SignOut(ctx context.Context) bool {
	s.sub.MarkLoading()

	if s.Flow() == FlowKindEmail {
		if _, ok := s.callEnvelope(ctx, bridge.APIRequest{URL: bridge.PathLogout, Method: "POST"}); !ok {
			return false
		}
	} else {
		ok, err := s.br.SignOut(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("signing out")
			s.fail("could not reach the authenticator")
			return false
		}
		if !ok {
			s.fail("sign-out was refused")
			return false
		}
	}

	s.sub.ApplyLocal(bridge.StatusSignedOut, nil)
	s.setFlow(FlowKindNone)
	return true
}

// CallProtectedAPI is a pure pass-through to the bridge's authenticated
// call. Failures propagate to the caller instead of becoming state.
func (s *Service) CallProtectedAPI(ctx context.Context, req bridge.APIRequest) (*bridge.APIResponse, error) {
	resp, err := s.br.CallAuthenticated(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.CallProtectedAPI] CallAuthenticated")
	}
	return resp, nil
}

// RefreshSession re-reads bridge ground truth and republishes it.
func (s *Service) RefreshSession(ctx context.Context) bool {
	if err := s.sub.RefreshSession(ctx); err != nil {
		s.logger.Error().Err(err).Msg("refreshing session")
		s.fail("could not read the current session")
		return false
	}
	return true
}

// fail surfaces reason through the reducer's error row, which also lowers
// the loading and in-progress flags.
func (s *Service) fail(reason string) {
	s.sub.ApplyLocal(bridge.StatusError, &bridge.EventData{Error: reason})
}

// callEnvelope issues req and folds every failure shape (transport error,
// non-OK response, success:false envelope) into a single populated-error
// outcome.
func (s *Service) callEnvelope(ctx context.Context, req bridge.APIRequest) (bridge.Envelope, bool) {
	resp, err := s.br.CallAuthenticated(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Str("url", req.URL).Msg("authenticated call")
		s.fail("could not reach the authenticator")
		return bridge.Envelope{}, false
	}

	var env bridge.Envelope
	if err := resp.JSON(&env); err != nil {
		s.logger.Error().Err(err).Str("url", req.URL).Msg("decoding authenticator response")
		s.fail("the authenticator returned an unreadable response")
		return bridge.Envelope{}, false
	}

	if !resp.OK || !env.Success {
		reason := env.Message
		if reason == "" {
			reason = "the request was refused (" + resp.StatusText + ")"
		}
		s.fail(reason)
		return env, false
	}

	return env, true
}

type emailBody struct {
	Email      string `json:"email"`
	VerifyCode string `json:"verifyCode"`
}

func mustJSON(v any) []byte {
	body, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return body
}
