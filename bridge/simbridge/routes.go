package simbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/GrowGrammers/authbridge/bridge"
)

type emailRequest struct {
	Email      string `json:"email"`
	VerifyCode string `json:"verifyCode"`
}

// CallAuthenticated routes a request against the canned endpoint table.
// Expected failures (wrong code, malformed body) come back as non-OK
// responses; only a malformed request or a cleaned-up bridge returns an
// error.
func (b *SimBridge) CallAuthenticated(ctx context.Context, req bridge.APIRequest) (*bridge.APIResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, "[SimBridge.CallAuthenticated]")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "[SimBridge.CallAuthenticated] context")
	}

	b.mu.Lock()
	cleaned := b.cleaned
	b.mu.Unlock()
	if cleaned {
		return nil, errors.Wrap(bridge.BridgeUnavailableErr, "[SimBridge.CallAuthenticated] bridge cleaned up")
	}

	switch {
	case strings.HasSuffix(req.URL, bridge.PathRequestCode):
		return b.handleRequestCode(req), nil
	case strings.HasSuffix(req.URL, bridge.PathVerifyCode):
		return b.handleVerifyCode(req), nil
	case strings.HasSuffix(req.URL, bridge.PathEmailLogin):
		return b.handleEmailLogin(req), nil
	case strings.HasSuffix(req.URL, bridge.PathLogout):
		return b.handleLogout(), nil
	default:
		return b.handleProtected(), nil
	}
}

// handleRequestCode always reports success: the simulated authenticator
// "sends" a code to any destination.
func (b *SimBridge) handleRequestCode(req bridge.APIRequest) *bridge.APIResponse {
	var body emailRequest
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return badRequest("malformed request body")
	}

	b.logger.Debug().Str("email", body.Email).Msg("verification code requested")
	return okEnvelope("verification code sent")
}

// handleVerifyCode checks the submitted code without establishing a session.
// A mismatch is a client-visible failure, not a status event.
func (b *SimBridge) handleVerifyCode(req bridge.APIRequest) *bridge.APIResponse {
	var body emailRequest
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return badRequest("malformed request body")
	}
	if !b.codeMatches(body.VerifyCode) {
		return unauthorized("invalid verification code")
	}
	return okEnvelope("verification code accepted")
}

// handleEmailLogin checks the code and, on a match, establishes the session
// and emits success. On a mismatch nothing is emitted and internal state is
// untouched.
func (b *SimBridge) handleEmailLogin(req bridge.APIRequest) *bridge.APIResponse {
	var body emailRequest
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return badRequest("malformed request body")
	}
	if body.Email == "" {
		return badRequest("email is required")
	}
	if !b.codeMatches(body.VerifyCode) {
		return unauthorized("invalid verification code")
	}

	user := bridge.UserInfo{
		ID:       uuid.New().String(),
		Email:    body.Email,
		Nickname: strings.SplitN(body.Email, "@", 2)[0],
		Provider: "email",
	}

	b.mu.Lock()
	b.loggedIn = true
	b.user = &user
	b.token = b.mintToken(user)
	b.mu.Unlock()

	b.emit(bridge.StatusSuccess, &bridge.EventData{Provider: "email", User: &user})
	return okEnvelope("logged in")
}

// handleLogout mirrors SignOut through the endpoint table. Idempotent.
func (b *SimBridge) handleLogout() *bridge.APIResponse {
	b.signOut()
	return okEnvelope("signed out")
}

// handleProtected stands in for any other authenticated endpoint. When a
// session exists its token is validated the way the real backend would, and
// the resolved subject is echoed in a header.
func (b *SimBridge) handleProtected() *bridge.APIResponse {
	b.mu.Lock()
	token := b.token
	b.mu.Unlock()

	headers := map[string]string{}
	if token != "" {
		if sub, err := b.tokenSubject(token); err == nil {
			headers["X-Authenticated-User"] = sub
		} else {
			b.logger.Warn().Err(err).Msg("simulated session token failed validation")
		}
	}

	resp := okEnvelope("ok")
	resp.Headers = headers
	return resp
}

func (b *SimBridge) codeMatches(code string) bool {
	return bcrypt.CompareHashAndPassword(b.codeHash, []byte(code)) == nil
}

func (b *SimBridge) tokenSubject(raw string) (string, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return b.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errors.Wrap(err, "[SimBridge.tokenSubject] parse")
	}
	return parsed.Claims.GetSubject()
}

func okEnvelope(message string) *bridge.APIResponse {
	body := marshalEnvelope(bridge.Envelope{Success: true, Message: message})
	return bridge.NewAPIResponse(true, http.StatusOK, http.StatusText(http.StatusOK), nil, body)
}

func badRequest(message string) *bridge.APIResponse {
	body := marshalEnvelope(bridge.Envelope{Success: false, Message: message})
	return bridge.NewAPIResponse(false, http.StatusBadRequest, http.StatusText(http.StatusBadRequest), nil, body)
}

func unauthorized(message string) *bridge.APIResponse {
	body := marshalEnvelope(bridge.Envelope{Success: false, Message: message})
	return bridge.NewAPIResponse(false, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized), nil, body)
}
