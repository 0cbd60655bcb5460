package hub

import (
	"encoding/json"
	"time"

	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

// Bind routes every server event dec knows onto bus as canonical events,
// and reports transport status as EventChannelStatus. Events that fail to
// decode are counted and dropped.
func Bind(ch *Channel, dec *Decoder, bus *events.Bus) {
	for _, wire := range dec.WireNames() {
		wire := wire
		ch.On(wire, func(args []json.RawMessage) {
			evt, err := dec.Decode(wire, args)
			if err != nil {
				telemetry.Metrics.DecodeErrors.Inc()
				telemetry.Warnf("[hub %s] %v", ch.Path(), err)
				return
			}
			bus.Publish(evt)
		})
	}

	ch.OnStatus(func(connected bool, attempt int) {
		bus.Publish(events.Event{
			Type:      events.EventChannelStatus,
			Room:      dec.Room(),
			Timestamp: time.Now(),
			Payload:   events.ChannelStatusEvent{Path: ch.Path(), Connected: connected, Attempt: attempt},
		})
	})
}
