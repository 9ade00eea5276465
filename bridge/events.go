package bridge

import "time"

// Status identifies the kind of progress notification a bridge emits while
// an authentication flow moves through its lifecycle.
type Status string

const (
	StatusStarted          Status = "started"
	StatusCallbackReceived Status = "callback_received"
	StatusSuccess          Status = "success"
	StatusError            Status = "error"
	StatusTokenRefreshed   Status = "token_refreshed"
	StatusSignedOut        Status = "signed_out"
)

// UserInfo is the identity record the authenticator reports for a logged-in
// user. Provider names the flow the identity came from ("google", "email", ...).
type UserInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Provider string `json:"provider"`
}

// EventData carries the optional payload of a status event. Which fields are
// populated depends on the Status: started/success carry Provider, success
// carries User, error carries Error and sometimes Provider.
type EventData struct {
	Provider string    `json:"provider,omitempty"`
	User     *UserInfo `json:"user,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// StatusEvent is a single tagged notification emitted by a bridge. Events for
// one flow may interleave with events from concurrent flows; consumers must
// not assume strict causal ordering across flows.
type StatusEvent struct {
	Status    Status     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Data      *EventData `json:"data,omitempty"`
}

// NewStatusEvent stamps an event with the supplied time.
func NewStatusEvent(status Status, at time.Time, data *EventData) StatusEvent {
	return StatusEvent{Status: status, Timestamp: at, Data: data}
}
