package reducer

import (
	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

// AddLobby inserts l unless a lobby with the same id is already listed.
// The creator sees both its own create response and the broadcast, so
// this must tolerate the second copy.
func AddLobby(list []events.LobbySummary, l events.LobbySummary) []events.LobbySummary {
	if l.ID == "" || indexLobby(list, l.ID) >= 0 {
		telemetry.Metrics.DuplicateEvents.Inc()
		return list
	}
	out := make([]events.LobbySummary, len(list), len(list)+1)
	copy(out, list)
	return append(out, l)
}

func RemoveLobby(list []events.LobbySummary, id string) []events.LobbySummary {
	idx := indexLobby(list, id)
	if idx < 0 {
		telemetry.Metrics.DuplicateEvents.Inc()
		return list
	}
	out := make([]events.LobbySummary, 0, len(list)-1)
	out = append(out, list[:idx]...)
	return append(out, list[idx+1:]...)
}

func indexLobby(list []events.LobbySummary, id string) int {
	for i, l := range list {
		if l.ID == id {
			return i
		}
	}
	return -1
}
