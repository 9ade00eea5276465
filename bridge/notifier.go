package bridge

import (
	"sync"

	"github.com/rs/zerolog"
)

// StatusListener receives every status event emitted after registration.
type StatusListener func(StatusEvent)

// ListenerID is the identity handle returned by AddStatusListener. Function
// values are not comparable in Go, so removal goes through the handle rather
// than the function itself.
type ListenerID uint64

// Notifier is the listener registry shared by bridge implementations. A
// broadcast delivers to a snapshot of the listeners registered at dispatch
// time, synchronously and in registration order, so a listener that adds or
// removes listeners mid-broadcast never perturbs the in-flight delivery.
type Notifier struct {
	logger zerolog.Logger

	mu        sync.Mutex
	nextID    ListenerID
	listeners []registration
}

type registration struct {
	id ListenerID
	fn StatusListener
}

func NewNotifier(logger zerolog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Add registers fn at the end of the delivery order.
func (n *Notifier) Add(fn StatusListener) ListenerID {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.listeners = append(n.listeners, registration{id: n.nextID, fn: fn})
	return n.nextID
}

// Remove unregisters the listener with the given handle. Unknown handles are
// ignored.
func (n *Notifier) Remove(id ListenerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, reg := range n.listeners {
		if reg.id == id {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

// Broadcast delivers ev to every currently registered listener. A panicking
// listener is recovered and logged; delivery continues to the rest.
func (n *Notifier) Broadcast(ev StatusEvent) {
	n.mu.Lock()
	snapshot := make([]registration, len(n.listeners))
	copy(snapshot, n.listeners)
	n.mu.Unlock()

	for _, reg := range snapshot {
		n.deliver(reg, ev)
	}
}

func (n *Notifier) deliver(reg registration, ev StatusEvent) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error().
				Uint64("listener", uint64(reg.id)).
				Str("status", string(ev.Status)).
				Interface("panic", r).
				Msg("status listener panicked")
		}
	}()
	reg.fn(ev)
}

// Clear drops every registered listener.
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = nil
}

// Len reports the number of registered listeners.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}
