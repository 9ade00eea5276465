package simbridge_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/GrowGrammers/authbridge/bridge"
	"github.com/GrowGrammers/authbridge/bridge/simbridge"
)

const (
	testEmail     = "john.doe@example.com"
	wrongTestCode = "000000"
)

// collector is a concurrency-safe status listener for assertions. Fabricated
// completions fire from timer callbacks, so access is guarded.
type collector struct {
	mu     sync.Mutex
	events []bridge.StatusEvent
}

func (c *collector) listen(ev bridge.StatusEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) statuses() []bridge.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bridge.Status, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Status
	}
	return out
}

func (c *collector) count(status bridge.Status) int {
	n := 0
	for _, s := range c.statuses() {
		if s == status {
			n++
		}
	}
	return n
}

func (c *collector) last() (bridge.StatusEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return bridge.StatusEvent{}, false
	}
	return c.events[len(c.events)-1], true
}

func setupBridge(t *testing.T) (*simbridge.SimBridge, *clockwork.FakeClock, *collector) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	b := simbridge.New(simbridge.WithClock(clock))
	t.Cleanup(b.Cleanup)

	c := &collector{}
	b.AddStatusListener(c.listen)
	return b, clock, c
}

func emailLogin(t *testing.T, b *simbridge.SimBridge, email, code string) *bridge.APIResponse {
	t.Helper()

	resp, err := b.CallAuthenticated(context.Background(), bridge.APIRequest{
		URL:    bridge.PathEmailLogin,
		Method: "POST",
		Body:   []byte(`{"email":"` + email + `","verifyCode":"` + code + `"}`),
	})
	require.NoError(t, err)
	return resp
}

func TestStartOAuthEmitsStartedSynchronously(t *testing.T) {
	b, clock, c := setupBridge(t)

	ok, err := b.StartOAuth(context.Background(), "google")
	require.NoError(t, err)
	require.True(t, ok)

	// Only the started effects are visible before the timer fires.
	require.Equal(t, []bridge.Status{bridge.StatusStarted}, c.statuses())
	info, err := b.GetSession(context.Background())
	require.NoError(t, err)
	require.False(t, info.IsLoggedIn)

	clock.Advance(simbridge.DefaultOAuthDelay)

	require.Eventually(t, func() bool {
		return c.count(bridge.StatusSuccess) == 1
	}, time.Second, 5*time.Millisecond)

	last, _ := c.last()
	require.Equal(t, "google", last.Data.Provider)
	require.Equal(t, "google", last.Data.User.Provider)

	info, err = b.GetSession(context.Background())
	require.NoError(t, err)
	require.True(t, info.IsLoggedIn)
	require.Equal(t, "google", info.User.Provider)
}

func TestStartOAuthRequiresProvider(t *testing.T) {
	b, _, c := setupBridge(t)

	ok, err := b.StartOAuth(context.Background(), "")
	require.ErrorIs(t, err, bridge.InvalidRequestErr)
	require.False(t, ok)
	require.Empty(t, c.statuses())
}

func TestLoggedInStateFlipsAtEmissionTimeNotCallTime(t *testing.T) {
	b, clock, _ := setupBridge(t)

	_, err := b.StartOAuth(context.Background(), "google")
	require.NoError(t, err)

	// Partway through the fabricated round trip the session is still absent.
	clock.Advance(simbridge.DefaultOAuthDelay / 2)
	info, err := b.GetSession(context.Background())
	require.NoError(t, err)
	require.False(t, info.IsLoggedIn)

	clock.Advance(simbridge.DefaultOAuthDelay)
	require.Eventually(t, func() bool {
		info, err := b.GetSession(context.Background())
		return err == nil && info.IsLoggedIn
	}, time.Second, 5*time.Millisecond)
}

func TestRequestCodeAlwaysSucceeds(t *testing.T) {
	b, _, c := setupBridge(t)

	resp, err := b.CallAuthenticated(context.Background(), bridge.APIRequest{
		URL:    bridge.PathRequestCode,
		Method: "POST",
		Body:   []byte(`{"email":"` + testEmail + `"}`),
	})
	require.NoError(t, err)
	require.True(t, resp.OK)

	var env bridge.Envelope
	require.NoError(t, resp.JSON(&env))
	require.True(t, env.Success)
	require.Empty(t, c.statuses(), "requesting a code emits nothing")
}

func TestEmailLoginWithCorrectCode(t *testing.T) {
	b, _, c := setupBridge(t)

	resp := emailLogin(t, b, testEmail, simbridge.TestVerificationCode)
	require.True(t, resp.OK)

	require.Equal(t, []bridge.Status{bridge.StatusSuccess}, c.statuses())
	last, _ := c.last()
	require.Equal(t, testEmail, last.Data.User.Email)
	require.Equal(t, "email", last.Data.User.Provider)

	info, err := b.GetSession(context.Background())
	require.NoError(t, err)
	require.True(t, info.IsLoggedIn)
	require.Equal(t, testEmail, info.User.Email)
}

func TestEmailLoginWithWrongCodeIsCallFailureNotEvent(t *testing.T) {
	b, _, c := setupBridge(t)

	resp := emailLogin(t, b, testEmail, wrongTestCode)
	require.False(t, resp.OK)
	require.Equal(t, 401, resp.Status)

	var env bridge.Envelope
	require.NoError(t, resp.JSON(&env))
	require.False(t, env.Success)
	require.NotEmpty(t, env.Message)

	require.Empty(t, c.statuses(), "a mismatch must not synthesize an event")
	info, err := b.GetSession(context.Background())
	require.NoError(t, err)
	require.False(t, info.IsLoggedIn)
}

func TestVerifyEndpointValidatesWithoutLogin(t *testing.T) {
	b, _, c := setupBridge(t)

	resp, err := b.CallAuthenticated(context.Background(), bridge.APIRequest{
		URL:    bridge.PathVerifyCode,
		Method: "POST",
		Body:   []byte(`{"verifyCode":"` + simbridge.TestVerificationCode + `"}`),
	})
	require.NoError(t, err)
	require.True(t, resp.OK)

	require.Empty(t, c.statuses())
	info, err := b.GetSession(context.Background())
	require.NoError(t, err)
	require.False(t, info.IsLoggedIn, "verify checks the code without establishing a session")
}

func TestSignOutIsIdempotent(t *testing.T) {
	b, _, c := setupBridge(t)
	emailLogin(t, b, testEmail, simbridge.TestVerificationCode)

	for i := 0; i < 2; i++ {
		ok, err := b.SignOut(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.Equal(t, 2, c.count(bridge.StatusSignedOut))
	info, err := b.GetSession(context.Background())
	require.NoError(t, err)
	require.False(t, info.IsLoggedIn)
	require.Nil(t, info.User)
}

func TestLogoutEndpointWhileSignedOut(t *testing.T) {
	b, _, c := setupBridge(t)

	resp, err := b.CallAuthenticated(context.Background(), bridge.APIRequest{
		URL:    bridge.PathLogout,
		Method: "POST",
	})
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, 1, c.count(bridge.StatusSignedOut))
}

func TestUnknownPathReturnsGenericSuccess(t *testing.T) {
	b, _, _ := setupBridge(t)

	resp, err := b.CallAuthenticated(context.Background(), bridge.APIRequest{URL: "/api/profile", Method: "GET"})
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, 200, resp.Status)

	var env bridge.Envelope
	require.NoError(t, resp.JSON(&env))
	require.True(t, env.Success)
}

func TestProtectedCallEchoesAuthenticatedUser(t *testing.T) {
	b, _, _ := setupBridge(t)
	emailLogin(t, b, testEmail, simbridge.TestVerificationCode)

	info, err := b.GetSession(context.Background())
	require.NoError(t, err)

	resp, err := b.CallAuthenticated(context.Background(), bridge.APIRequest{URL: "/api/profile", Method: "GET"})
	require.NoError(t, err)
	require.Equal(t, info.User.ID, resp.Headers["X-Authenticated-User"])
}

func TestListenerRemovalStopsDelivery(t *testing.T) {
	b, _, c := setupBridge(t)

	removable := &collector{}
	id := b.AddStatusListener(removable.listen)

	_, err := b.StartOAuth(context.Background(), "google")
	require.NoError(t, err)
	require.Equal(t, 1, removable.count(bridge.StatusStarted))

	b.RemoveStatusListener(id)

	_, err = b.StartOAuth(context.Background(), "github")
	require.NoError(t, err)
	require.Equal(t, 1, removable.count(bridge.StatusStarted), "removed listener saw the second flow")
	require.Equal(t, 2, c.count(bridge.StatusStarted))
}

func TestInstancesAreIsolated(t *testing.T) {
	clockA := clockwork.NewFakeClock()
	a := simbridge.New(simbridge.WithClock(clockA))
	t.Cleanup(a.Cleanup)
	other := simbridge.New(simbridge.WithClock(clockwork.NewFakeClock()))
	t.Cleanup(other.Cleanup)

	eventsA, eventsB := &collector{}, &collector{}
	a.AddStatusListener(eventsA.listen)
	other.AddStatusListener(eventsB.listen)

	_, err := a.StartOAuth(context.Background(), "google")
	require.NoError(t, err)

	resp, err := other.CallAuthenticated(context.Background(), bridge.APIRequest{
		URL:    bridge.PathRequestCode,
		Method: "POST",
		Body:   []byte(`{"email":"` + testEmail + `"}`),
	})
	require.NoError(t, err)
	require.True(t, resp.OK)

	clockA.Advance(simbridge.DefaultOAuthDelay)
	require.Eventually(t, func() bool { return eventsA.count(bridge.StatusSuccess) == 1 }, time.Second, 5*time.Millisecond)

	require.Empty(t, eventsB.statuses(), "second bridge observed the first bridge's flow")
	info, err := other.GetSession(context.Background())
	require.NoError(t, err)
	require.False(t, info.IsLoggedIn)
}

func TestLateOAuthSuccessAfterSignOutResurrectsSession(t *testing.T) {
	b, clock, c := setupBridge(t)

	_, err := b.StartOAuth(context.Background(), "google")
	require.NoError(t, err)

	ok, err := b.SignOut(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// No cancellation: the pending fabricated completion still fires and is
	// applied at face value.
	clock.Advance(simbridge.DefaultOAuthDelay)
	require.Eventually(t, func() bool { return c.count(bridge.StatusSuccess) == 1 }, time.Second, 5*time.Millisecond)

	info, err := b.GetSession(context.Background())
	require.NoError(t, err)
	require.True(t, info.IsLoggedIn)
}

func TestCleanupClearsListenersAndState(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := simbridge.New(simbridge.WithClock(clock))
	c := &collector{}
	b.AddStatusListener(c.listen)
	emailLogin(t, b, testEmail, simbridge.TestVerificationCode)

	b.Cleanup()

	require.False(t, b.IsHealthy())
	_, err := b.CallAuthenticated(context.Background(), bridge.APIRequest{URL: "/api/profile", Method: "GET"})
	require.ErrorIs(t, err, bridge.BridgeUnavailableErr)

	before := len(c.statuses())
	_, err = b.SignOut(context.Background())
	require.NoError(t, err)
	require.Len(t, c.statuses(), before, "cleared listener still received events")
}

func TestMalformedBodyIsExpectedFailure(t *testing.T) {
	b, _, _ := setupBridge(t)

	resp, err := b.CallAuthenticated(context.Background(), bridge.APIRequest{
		URL:    bridge.PathEmailLogin,
		Method: "POST",
		Body:   []byte("{not json"),
	})
	require.NoError(t, err, "a malformed body is a client-visible failure, not an error")
	require.False(t, resp.OK)
	require.Equal(t, 400, resp.Status)
}
