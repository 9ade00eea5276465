package bridge

import (
	"context"

	"github.com/pkg/errors"
)

var (
	BridgeUnavailableErr = errors.New("bridge unavailable")
	InvalidRequestErr    = errors.New("invalid request")
)

// SessionInfo is the bridge-reported ground truth about the current session.
// It always wins over any state derived from events: an explicit refresh
// overwrites the derived logged-in/user fields with what the bridge reports.
type SessionInfo struct {
	IsLoggedIn bool      `json:"isLoggedIn"`
	User       *UserInfo `json:"user,omitempty"`
}

// Bridge is the contract any authentication transport satisfies. Two
// implementations exist: an in-process simulated authenticator
// (bridge/simbridge) and a real out-of-process one reached over HTTP
// (bridge/httpbridge). Callers select one at construction time and thread it
// through explicitly; there is no process-wide current bridge.
//
// Expected failure modes never cross this boundary as Go errors. A bridge
// call that reaches the authenticator and is refused resolves with a false
// result or an error status event. A returned error means the bridge itself
// is absent or the input was malformed.
type Bridge interface {
	// StartOAuth begins a provider flow. The started event is emitted before
	// the call returns; completion arrives later as a success or error event.
	StartOAuth(ctx context.Context, provider string) (bool, error)

	// GetSession reports the authenticator's live session truth.
	GetSession(ctx context.Context) (SessionInfo, error)

	// SignOut clears the session. Idempotent: signing out while already
	// signed out still succeeds and still emits a signed_out event.
	SignOut(ctx context.Context) (bool, error)

	// CallAuthenticated issues a request through the authenticator, attaching
	// session credentials when present. Safe to invoke while a flow is in
	// flight; the result is independent of flow progress.
	CallAuthenticated(ctx context.Context, req APIRequest) (*APIResponse, error)

	// AddStatusListener registers fn for every subsequently emitted event and
	// returns the identity handle used to remove it.
	AddStatusListener(fn StatusListener) ListenerID

	// RemoveStatusListener unregisters a listener; events emitted afterwards
	// no longer reach it.
	RemoveStatusListener(id ListenerID)

	// IsHealthy reports whether the transport is usable.
	IsHealthy() bool

	// Cleanup clears all listeners and internal flow state. The bridge is not
	// usable afterwards.
	Cleanup()
}
