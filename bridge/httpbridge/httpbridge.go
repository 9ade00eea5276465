// Package httpbridge implements the Bridge contract against a real,
// out-of-process authenticator reached over HTTP. The contract is
// deliberately minimal: four auth routes, a session read, a health probe,
// and a server-sent event stream that feeds the same status-event protocol
// the simulated bridge fabricates.
//
// The authenticator owns retry and backoff for its upstream providers; this
// bridge makes one attempt per call and reports what it saw.
package httpbridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GrowGrammers/authbridge/bridge"
	"github.com/GrowGrammers/authbridge/providers"
)

const (
	routeOAuthStart = "/auth/oauth/start"
	routeSession    = "/auth/session"
	routeSignOut    = "/auth/signout"
	routeRefresh    = "/auth/refresh"
	routeEvents     = "/auth/events"
	routeHealth     = "/healthz"

	defaultCallTimeout = 10 * time.Second
	defaultRefreshLead = 30 * time.Second
)

var _ bridge.Bridge = (*HTTPBridge)(nil)

// Config configures an HTTPBridge.
type Config struct {
	// BaseURL is the authenticator's base address, e.g. "http://127.0.0.1:9550".
	BaseURL string

	// Registry supplies provider authorization URLs for StartOAuth. Optional:
	// without it the authenticator builds its own.
	Registry *providers.Registry

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	// Clock overrides the wall clock (for refresh scheduling in tests).
	Clock clockwork.Clock

	// RefreshLead is how long before token expiry a refresh is attempted.
	RefreshLead time.Duration

	Logger *zerolog.Logger
}

// HTTPBridge routes bridge calls to an external authenticator.
type HTTPBridge struct {
	baseURL     *url.URL
	client      *http.Client
	registry    *providers.Registry
	clock       clockwork.Clock
	refreshLead time.Duration
	logger      zerolog.Logger
	notifier    *bridge.Notifier

	streamCancel context.CancelFunc
	streamDone   chan struct{}

	mu           sync.Mutex
	token        string
	refreshTimer clockwork.Timer
	cleaned      bool
}

// New validates the config, opens the event stream, and returns the bridge.
// A connection-refused event stream is reported asynchronously through the
// log, not here: the authenticator may come up after the client.
func New(cfg Config) (*HTTPBridge, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Wrapf(bridge.BridgeUnavailableErr, "[httpbridge.New] invalid base URL %q", cfg.BaseURL)
	}

	b := &HTTPBridge{
		baseURL:     base,
		client:      cfg.HTTPClient,
		registry:    cfg.Registry,
		clock:       cfg.Clock,
		refreshLead: cfg.RefreshLead,
		logger:      log.Logger,
		streamDone:  make(chan struct{}),
	}
	if b.client == nil {
		b.client = &http.Client{}
	}
	if b.clock == nil {
		b.clock = clockwork.NewRealClock()
	}
	if b.refreshLead <= 0 {
		b.refreshLead = defaultRefreshLead
	}
	if cfg.Logger != nil {
		b.logger = *cfg.Logger
	}
	b.notifier = bridge.NewNotifier(b.logger)

	streamCtx, cancel := context.WithCancel(context.Background())
	b.streamCancel = cancel
	go b.readEventStream(streamCtx)

	return b, nil
}

// StartOAuth posts the flow request to the authenticator. A refusal becomes
// an error status event and a false result, not a Go error.
func (b *HTTPBridge) StartOAuth(ctx context.Context, provider string) (bool, error) {
	if provider == "" {
		return false, errors.Wrap(bridge.InvalidRequestErr, "[HTTPBridge.StartOAuth] provider is required")
	}

	payload := map[string]string{"provider": provider}
	if b.registry != nil {
		if p, err := b.registry.Get(provider); err == nil {
			state, err := providers.State()
			if err != nil {
				return false, errors.Wrap(err, "[HTTPBridge.StartOAuth] state")
			}
			payload["state"] = state
			payload["authorizationUrl"] = p.AuthCodeURL(state)
		}
	}

	resp, err := b.postJSON(ctx, routeOAuthStart, payload)
	if err != nil {
		return false, errors.Wrap(err, "[HTTPBridge.StartOAuth]")
	}
	defer drain(resp)

	if resp.StatusCode >= 400 {
		b.notifier.Broadcast(bridge.NewStatusEvent(bridge.StatusError, b.clock.Now(), &bridge.EventData{
			Provider: provider,
			Error:    envelopeMessage(resp, "the authenticator refused to start the flow"),
		}))
		return false, nil
	}
	return true, nil
}

// GetSession reads the authenticator's session truth.
func (b *HTTPBridge) GetSession(ctx context.Context) (bridge.SessionInfo, error) {
	resp, err := b.do(ctx, http.MethodGet, routeSession, nil)
	if err != nil {
		return bridge.SessionInfo{}, errors.Wrap(err, "[HTTPBridge.GetSession]")
	}
	defer drain(resp)

	if resp.StatusCode >= 400 {
		// No session endpoint is a config error, not an expected outcome.
		return bridge.SessionInfo{}, errors.Wrapf(bridge.BridgeUnavailableErr,
			"[HTTPBridge.GetSession] authenticator returned %s", resp.Status)
	}

	var info bridge.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return bridge.SessionInfo{}, errors.Wrap(err, "[HTTPBridge.GetSession] decode")
	}
	return info, nil
}

// SignOut posts the sign-out. The signed_out event arrives on the stream.
func (b *HTTPBridge) SignOut(ctx context.Context) (bool, error) {
	resp, err := b.postJSON(ctx, routeSignOut, nil)
	if err != nil {
		return false, errors.Wrap(err, "[HTTPBridge.SignOut]")
	}
	defer drain(resp)

	if resp.StatusCode >= 400 {
		return false, nil
	}

	b.mu.Lock()
	b.token = ""
	b.mu.Unlock()
	return true, nil
}

// CallAuthenticated forwards req with the current bearer token attached.
func (b *HTTPBridge) CallAuthenticated(ctx context.Context, req bridge.APIRequest) (*bridge.APIResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, "[HTTPBridge.CallAuthenticated]")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, b.resolve(req.URL), strings.NewReader(string(req.Body)))
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPBridge.CallAuthenticated] building request")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Content-Type") == "" && len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	b.mu.Lock()
	token := b.token
	b.mu.Unlock()
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPBridge.CallAuthenticated] round trip")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPBridge.CallAuthenticated] reading body")
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return bridge.NewAPIResponse(resp.StatusCode < 400, resp.StatusCode, resp.Status, headers, body), nil
}

// IsHealthy probes the authenticator health endpoint.
func (b *HTTPBridge) IsHealthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := b.do(ctx, http.MethodGet, routeHealth, nil)
	if err != nil {
		return false
	}
	defer drain(resp)
	return resp.StatusCode == http.StatusOK
}

// AddStatusListener registers fn with this instance's registry.
func (b *HTTPBridge) AddStatusListener(fn bridge.StatusListener) bridge.ListenerID {
	return b.notifier.Add(fn)
}

// RemoveStatusListener unregisters a listener by handle.
func (b *HTTPBridge) RemoveStatusListener(id bridge.ListenerID) {
	b.notifier.Remove(id)
}

// Cleanup tears down the event stream, cancels any pending refresh, and
// drops all listeners.
func (b *HTTPBridge) Cleanup() {
	b.streamCancel()
	<-b.streamDone
	b.notifier.Clear()

	b.mu.Lock()
	if b.refreshTimer != nil {
		b.refreshTimer.Stop()
		b.refreshTimer = nil
	}
	b.token = ""
	b.cleaned = true
	b.mu.Unlock()
}

func (b *HTTPBridge) resolve(target string) string {
	parsed, err := url.Parse(target)
	if err == nil && parsed.IsAbs() {
		return target
	}
	return b.baseURL.JoinPath(target).String()
}

func (b *HTTPBridge) postJSON(ctx context.Context, route string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "encoding payload")
		}
		body = strings.NewReader(string(raw))
	}
	return b.do(ctx, http.MethodPost, route, body)
}

func (b *HTTPBridge) do(ctx context.Context, method, route string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL.JoinPath(route).String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	b.mu.Lock()
	token := b.token
	b.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(bridge.BridgeUnavailableErr, err.Error())
	}
	return resp, nil
}

func envelopeMessage(resp *http.Response, fallback string) string {
	var env bridge.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Message != "" {
		return env.Message
	}
	return fallback
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
