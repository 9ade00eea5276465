package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GrowGrammers/authbridge/bridge"
)

// Subscription wires a bridge's event emitter to the reducer and owns the
// live AuthState snapshot. It registers exactly one bridge listener on
// construction and removes it on Close.
//
// On construction it seeds the snapshot from GetSession so a process that
// starts with an existing session sees it before the first event arrives.
type Subscription struct {
	br      bridge.Bridge
	logger  zerolog.Logger
	nowTime func() time.Time

	mu         sync.Mutex
	state      AuthState
	observers  []observer
	nextObsID  uint64
	listenerID bridge.ListenerID
	closed     bool
}

type observer struct {
	id uint64
	fn func(AuthState)
}

// SubscriptionOption configures a Subscription.
type SubscriptionOption func(*Subscription)

// WithLogger overrides the default global logger.
func WithLogger(logger zerolog.Logger) SubscriptionOption {
	return func(s *Subscription) { s.logger = logger }
}

// WithNowTime sets the time source for locally synthesized events
// (primarily for testing).
func WithNowTime(nowFunc func() time.Time) SubscriptionOption {
	return func(s *Subscription) { s.nowTime = nowFunc }
}

// NewSubscription activates a subscription against br: seeds the snapshot
// from GetSession, then registers the one listener that threads every bridge
// event through Reduce.
func NewSubscription(ctx context.Context, br bridge.Bridge, options ...SubscriptionOption) (*Subscription, error) {
	if br == nil {
		return nil, errors.Wrap(bridge.BridgeUnavailableErr, "[NewSubscription] bridge is required")
	}

	s := &Subscription{
		br:      br,
		logger:  log.Logger,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	info, err := br.GetSession(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[NewSubscription] initial GetSession")
	}
	s.state = seedState(info)

	s.listenerID = br.AddStatusListener(s.onEvent)
	return s, nil
}

func seedState(info bridge.SessionInfo) AuthState {
	state := AuthState{IsLoggedIn: info.IsLoggedIn}
	if info.User != nil {
		u := *info.User
		state.User = &u
	}
	return state
}

func (s *Subscription) onEvent(ev bridge.StatusEvent) {
	s.mu.Lock()
	s.state = Reduce(s.state, ev)
	snapshot := s.state
	obs := s.observerSnapshot()
	s.mu.Unlock()

	publish(obs, snapshot)
}

// Current returns the live snapshot.
func (s *Subscription) Current() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers an observer for every subsequent snapshot and returns
// the function that unregisters it. Observers are notified in registration
// order.
func (s *Subscription) Subscribe(fn func(AuthState)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, observer{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// ApplyLocal synthesizes a status event and folds it through the reducer,
// exactly as if the bridge had emitted it. The action layer uses this for
// optimistic transitions and for surfacing transport-reported failures.
func (s *Subscription) ApplyLocal(status bridge.Status, data *bridge.EventData) AuthState {
	ev := bridge.NewStatusEvent(status, s.nowTime(), data)

	s.mu.Lock()
	s.state = Reduce(s.state, ev)
	snapshot := s.state
	obs := s.observerSnapshot()
	s.mu.Unlock()

	publish(obs, snapshot)
	return snapshot
}

// RefreshSession re-reads bridge ground truth and overwrites the logged-in
// and user fields, clearing any error. This is the one sanctioned write path
// outside the reducer besides ClearError and MarkLoading; it synthesizes no
// event and leaves LastEvent untouched.
func (s *Subscription) RefreshSession(ctx context.Context) error {
	info, err := s.br.GetSession(ctx)
	if err != nil {
		return errors.Wrap(err, "[Subscription.RefreshSession] GetSession")
	}

	s.mu.Lock()
	s.state.IsLoggedIn = info.IsLoggedIn
	s.state.User = nil
	if info.User != nil {
		u := *info.User
		s.state.User = &u
	}
	s.state.Err = ""
	snapshot := s.state
	obs := s.observerSnapshot()
	s.mu.Unlock()

	publish(obs, snapshot)
	return nil
}

// ClearError clears the error field without touching anything else.
func (s *Subscription) ClearError() {
	s.mu.Lock()
	s.state.Err = ""
	snapshot := s.state
	obs := s.observerSnapshot()
	s.mu.Unlock()

	publish(obs, snapshot)
}

// MarkLoading raises the loading flag ahead of a bridge call whose outcome
// will lower it (via a reduced event or a refresh).
func (s *Subscription) MarkLoading() {
	s.mu.Lock()
	s.state.IsLoading = true
	snapshot := s.state
	obs := s.observerSnapshot()
	s.mu.Unlock()

	publish(obs, snapshot)
}

// Close removes the bridge listener and drops all observers. The final
// snapshot remains readable through Current.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.observers = nil
	id := s.listenerID
	s.mu.Unlock()

	s.br.RemoveStatusListener(id)
}

// observerSnapshot must be called with mu held.
func (s *Subscription) observerSnapshot() []observer {
	obs := make([]observer, len(s.observers))
	copy(obs, s.observers)
	return obs
}

func publish(obs []observer, snapshot AuthState) {
	for _, o := range obs {
		o.fn(snapshot)
	}
}
