package bridge_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/GrowGrammers/authbridge/bridge"
)

func testEvent(status bridge.Status) bridge.StatusEvent {
	return bridge.NewStatusEvent(status, time.Now(), nil)
}

func TestNotifierDeliversInRegistrationOrder(t *testing.T) {
	n := bridge.NewNotifier(zerolog.Nop())

	var order []string
	n.Add(func(bridge.StatusEvent) { order = append(order, "first") })
	n.Add(func(bridge.StatusEvent) { order = append(order, "second") })
	n.Add(func(bridge.StatusEvent) { order = append(order, "third") })

	n.Broadcast(testEvent(bridge.StatusStarted))

	require.Equal(t, []string{"first", "second", "third"}, order)
}

func TestNotifierRemoveStopsDelivery(t *testing.T) {
	n := bridge.NewNotifier(zerolog.Nop())

	var kept, removed int
	n.Add(func(bridge.StatusEvent) { kept++ })
	id := n.Add(func(bridge.StatusEvent) { removed++ })

	n.Broadcast(testEvent(bridge.StatusStarted))
	n.Remove(id)
	n.Broadcast(testEvent(bridge.StatusSuccess))

	require.Equal(t, 2, kept)
	require.Equal(t, 1, removed)
}

func TestNotifierRemoveUnknownIDIsNoOp(t *testing.T) {
	n := bridge.NewNotifier(zerolog.Nop())
	n.Add(func(bridge.StatusEvent) {})

	n.Remove(bridge.ListenerID(999))
	require.Equal(t, 1, n.Len())
}

func TestNotifierPanickingListenerDoesNotAbortDelivery(t *testing.T) {
	n := bridge.NewNotifier(zerolog.Nop())

	var after int
	n.Add(func(bridge.StatusEvent) { panic("listener bug") })
	n.Add(func(bridge.StatusEvent) { after++ })

	require.NotPanics(t, func() {
		n.Broadcast(testEvent(bridge.StatusStarted))
	})
	require.Equal(t, 1, after)
}

func TestNotifierListenerMutatingRegistryMidBroadcast(t *testing.T) {
	n := bridge.NewNotifier(zerolog.Nop())

	var calls []string
	var firstID bridge.ListenerID
	firstID = n.Add(func(bridge.StatusEvent) {
		calls = append(calls, "self-remover")
		n.Remove(firstID)
	})
	n.Add(func(bridge.StatusEvent) { calls = append(calls, "stable") })

	// The in-flight broadcast uses a snapshot: both listeners still run.
	n.Broadcast(testEvent(bridge.StatusStarted))
	require.Equal(t, []string{"self-remover", "stable"}, calls)

	// The next broadcast no longer reaches the removed listener.
	n.Broadcast(testEvent(bridge.StatusSuccess))
	require.Equal(t, []string{"self-remover", "stable", "stable"}, calls)
}

func TestNotifierClear(t *testing.T) {
	n := bridge.NewNotifier(zerolog.Nop())
	n.Add(func(bridge.StatusEvent) { t.Fatal("cleared listener must not run") })

	n.Clear()
	require.Zero(t, n.Len())
	n.Broadcast(testEvent(bridge.StatusStarted))
}
