package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_DispatchInOrder(t *testing.T) {
	bus := NewBus()
	var calls []string
	bus.Subscribe("quoteUpdated", func(Event) { calls = append(calls, "first") })
	bus.Subscribe("quoteUpdated", func(Event) { calls = append(calls, "second") })
	bus.Subscribe("storage", func(Event) { calls = append(calls, "storage") })

	bus.Dispatch(Event{Name: "quoteUpdated"})

	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	count := 0
	unsubscribe := bus.Subscribe("quoteUpdated", func(Event) { count++ })

	bus.Dispatch(Event{Name: "quoteUpdated"})
	unsubscribe()
	unsubscribe()
	bus.Dispatch(Event{Name: "quoteUpdated"})

	assert.Equal(t, 1, count)
	assert.Zero(t, bus.Listeners("quoteUpdated"))
}

func TestBus_ListenerAddedDuringDispatchWaitsForNextEvent(t *testing.T) {
	bus := NewBus()
	late := 0
	bus.Subscribe("quoteUpdated", func(Event) {
		bus.Subscribe("quoteUpdated", func(Event) { late++ })
	})

	bus.Dispatch(Event{Name: "quoteUpdated"})
	assert.Zero(t, late)

	bus.Dispatch(Event{Name: "quoteUpdated"})
	assert.Equal(t, 1, late)
}

func TestNewOriginID_Unique(t *testing.T) {
	assert.NotEqual(t, NewOriginID(), NewOriginID())
}

func TestBus_ListenerRemovedDuringDispatchIsSkipped(t *testing.T) {
	bus := NewBus()
	var calls []string
	var removeSecond func()
	bus.Subscribe("quoteUpdated", func(Event) {
		calls = append(calls, "first")
		removeSecond()
	})
	removeSecond = bus.Subscribe("quoteUpdated", func(Event) { calls = append(calls, "second") })
	bus.Subscribe("quoteUpdated", func(Event) { calls = append(calls, "third") })

	bus.Dispatch(Event{Name: "quoteUpdated"})

	assert.Equal(t, []string{"first", "third"}, calls)
	assert.Equal(t, 2, bus.Listeners("quoteUpdated"))
}
