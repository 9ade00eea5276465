package bridge

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Envelope is the JSON body shape the authenticator uses for routed auth
// operations (verification requests, logins, logout).
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var allowedMethods = map[string]struct{}{
	"GET":    {},
	"POST":   {},
	"PUT":    {},
	"DELETE": {},
	"PATCH":  {},
}

// APIRequest describes a call routed through CallAuthenticated. URL may be
// absolute or a path relative to the authenticator base.
type APIRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

// Validate reports whether the request is well formed enough to route.
func (r APIRequest) Validate() error {
	if r.URL == "" {
		return errors.Wrap(InvalidRequestErr, "[APIRequest.Validate] url is required")
	}
	if _, ok := allowedMethods[r.Method]; !ok {
		return errors.Wrapf(InvalidRequestErr, "[APIRequest.Validate] unsupported method %q", r.Method)
	}
	return nil
}

// APIResponse is the transport-neutral result of an authenticated call.
// OK mirrors an HTTP 2xx/3xx status; a false OK is an expected failure, not
// an error.
type APIResponse struct {
	OK         bool
	Status     int
	StatusText string
	Headers    map[string]string
	body       []byte
}

// NewAPIResponse builds a response around a raw body.
func NewAPIResponse(ok bool, status int, statusText string, headers map[string]string, body []byte) *APIResponse {
	if headers == nil {
		headers = map[string]string{}
	}
	return &APIResponse{OK: ok, Status: status, StatusText: statusText, Headers: headers, body: body}
}

// JSON decodes the body into v. The error names the status and a body prefix
// when the payload is not parseable JSON.
func (r *APIResponse) JSON(v any) error {
	if err := json.Unmarshal(r.body, v); err != nil {
		preview := r.body
		if len(preview) > 64 {
			preview = preview[:64]
		}
		return errors.Wrapf(err, "[APIResponse.JSON] status %d body is not valid JSON: %q", r.Status, string(preview))
	}
	return nil
}

// Text returns the raw body as a string.
func (r *APIResponse) Text() string {
	return string(r.body)
}
