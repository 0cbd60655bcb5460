package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDispatchesInRegistrationOrder(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.Subscribe(EventPlayerJoined, func(Event) error { order = append(order, "first"); return nil })
	bus.Subscribe(EventPlayerJoined, func(Event) error { order = append(order, "second"); return errors.New("boom") })
	bus.Subscribe(EventPlayerJoined, func(Event) error { order = append(order, "third"); return nil })
	bus.Subscribe(EventPlayerLeft, func(Event) error { order = append(order, "other"); return nil })

	bus.Publish(Event{Type: EventPlayerJoined})

	assert.Equal(t, []string{"first", "second", "third"}, order, "a failing handler must not stop dispatch")
}

func TestBusSubscribeMany(t *testing.T) {
	bus := NewBus()
	var got []EventType
	bus.SubscribeMany(func(e Event) error { got = append(got, e.Type); return nil },
		EventLobbyClosed, EventLobbyDeleted)

	bus.Publish(Event{Type: EventLobbyDeleted})
	bus.Publish(Event{Type: EventLobbyClosed})
	bus.Publish(Event{Type: EventGameStarted})

	assert.Equal(t, []EventType{EventLobbyDeleted, EventLobbyClosed}, got)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(EventRaceOver))
	assert.True(t, Known(EventChannelStatus))
	assert.False(t, Known(EventType("GameOver")))
}
