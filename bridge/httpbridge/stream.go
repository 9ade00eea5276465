package httpbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GrowGrammers/authbridge/bridge"
)

// wireEvent is the frame shape carried on the authenticator's event stream.
// Tokens ride alongside success/token_refreshed frames; they never reach
// listeners.
type wireEvent struct {
	Status bridge.Status     `json:"status"`
	Data   *bridge.EventData `json:"data,omitempty"`
	Token  string            `json:"token,omitempty"`
}

// readEventStream consumes the server-sent event stream and dispatches each
// frame through the notifier. One attempt per stream: when the stream drops,
// the termination is logged and the bridge keeps serving direct calls. The
// authenticator owns reconnection policy end to end.
func (b *HTTPBridge) readEventStream(ctx context.Context) {
	defer close(b.streamDone)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL.JoinPath(routeEvents).String(), nil)
	if err != nil {
		b.logger.Error().Err(err).Msg("building event stream request")
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Warn().Err(err).Msg("event stream unavailable")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.logger.Warn().Str("status", resp.Status).Msg("event stream refused")
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		b.dispatchFrame(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		b.logger.Warn().Err(err).Msg("event stream closed")
	}
}

func (b *HTTPBridge) dispatchFrame(raw string) {
	var frame wireEvent
	if err := json.Unmarshal([]byte(raw), &frame); err != nil {
		b.logger.Warn().Err(err).Str("frame", raw).Msg("dropping unreadable event frame")
		return
	}

	if frame.Token != "" {
		b.adoptToken(frame.Token)
	}
	if frame.Status == bridge.StatusSignedOut {
		b.mu.Lock()
		b.token = ""
		if b.refreshTimer != nil {
			b.refreshTimer.Stop()
			b.refreshTimer = nil
		}
		b.mu.Unlock()
	}

	b.notifier.Broadcast(bridge.NewStatusEvent(frame.Status, b.clock.Now(), frame.Data))
}

// adoptToken stores a fresh bearer token and schedules a refresh shortly
// before its expiry, read from the unverified JWT claims. Tokens without a
// readable expiry are stored but never proactively refreshed.
func (b *HTTPBridge) adoptToken(token string) {
	b.mu.Lock()
	b.token = token
	if b.refreshTimer != nil {
		b.refreshTimer.Stop()
		b.refreshTimer = nil
	}
	b.mu.Unlock()

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		b.logger.Debug().Err(err).Msg("token is not a parseable JWT; skipping refresh scheduling")
		return
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}

	wait := exp.Sub(b.clock.Now()) - b.refreshLead
	if wait < 0 {
		wait = 0
	}

	b.mu.Lock()
	if !b.cleaned {
		b.refreshTimer = b.clock.AfterFunc(wait, b.refreshToken)
	}
	b.mu.Unlock()
}

// refreshToken asks the authenticator for a fresh token and emits
// token_refreshed on success. Failure is logged and dropped: the next
// authenticated call will surface the stale credential as a non-OK result.
func (b *HTTPBridge) refreshToken() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := b.postJSON(ctx, routeRefresh, nil)
	if err != nil {
		b.logger.Warn().Err(err).Msg("token refresh failed")
		return
	}
	defer drain(resp)

	if resp.StatusCode >= 400 {
		b.logger.Warn().Str("status", resp.Status).Msg("token refresh refused")
		return
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Token == "" {
		b.logger.Warn().Err(err).Msg("token refresh returned no token")
		return
	}

	b.adoptToken(payload.Token)
	b.notifier.Broadcast(bridge.NewStatusEvent(bridge.StatusTokenRefreshed, b.clock.Now(), nil))
}
