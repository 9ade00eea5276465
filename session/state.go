package session

import (
	"time"

	"github.com/GrowGrammers/authbridge/bridge"
)

// AuthState is the single reduced snapshot consumed by presentation layers.
// It is a value: every reduction produces a fresh snapshot, the previous one
// is never mutated in place, so handing a copy to read-only observers is safe.
//
// Invariants: IsLoggedIn implies User != nil (for bridge-sourced successes);
// IsOAuthInProgress implies IsLoading.
type AuthState struct {
	IsLoggedIn        bool
	IsLoading         bool
	IsOAuthInProgress bool
	OAuthProvider     string
	User              *bridge.UserInfo
	Err               string
	LastEvent         *LastEvent
}

// LastEvent records the most recently applied status, locally synthesized
// ones included. A session refresh does not synthesize an event and leaves it
// untouched.
type LastEvent struct {
	Status    bridge.Status
	Timestamp time.Time
	Data      *bridge.EventData
}

const genericAuthError = "authentication failed"

// Reduce folds one status event into the prior snapshot and returns the next
// one. It is the only place AuthState flow fields change; nothing outside
// this table mutates them (session refresh and error clearing are the two
// sanctioned imperative exceptions on the adapter).
//
// Reduce never rejects an event. Unknown statuses pass through updating only
// LastEvent, so a newer bridge can introduce statuses without breaking older
// consumers. signed_out and success are safe to replay: the action layer
// applies them locally before the bridge's own emission arrives.
func Reduce(prior AuthState, ev bridge.StatusEvent) AuthState {
	next := prior

	switch ev.Status {
	case bridge.StatusStarted:
		next.IsLoading = true
		next.IsOAuthInProgress = true
		next.Err = ""
		if ev.Data != nil && ev.Data.Provider != "" {
			next.OAuthProvider = ev.Data.Provider
		}

	case bridge.StatusCallbackReceived:
		next.IsLoading = true

	case bridge.StatusSuccess:
		next.IsLoggedIn = true
		next.IsLoading = false
		next.IsOAuthInProgress = false
		next.Err = ""
		if ev.Data != nil && ev.Data.User != nil {
			u := *ev.Data.User
			next.User = &u
		}
		if ev.Data != nil && ev.Data.Provider != "" {
			next.OAuthProvider = ev.Data.Provider
		}

	case bridge.StatusError:
		next.IsLoading = false
		next.IsOAuthInProgress = false
		next.Err = genericAuthError
		if ev.Data != nil && ev.Data.Error != "" {
			next.Err = ev.Data.Error
		}

	case bridge.StatusTokenRefreshed:
		// Credential rotation only; no visible state change.

	case bridge.StatusSignedOut:
		next.IsLoggedIn = false
		next.IsLoading = false
		next.IsOAuthInProgress = false
		next.OAuthProvider = ""
		next.User = nil
		next.Err = ""
	}

	next.LastEvent = &LastEvent{Status: ev.Status, Timestamp: ev.Timestamp, Data: ev.Data}
	return next
}
