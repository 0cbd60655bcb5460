// Package reducer holds the pure, idempotent state updates applied to
// server-broadcast events. Applying the same event twice is a no-op.
package reducer

import (
	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

// AddPlayer appends p in join order unless its id is already present.
func AddPlayer(roster []events.Player, p events.Player) []events.Player {
	if p.ID == "" || indexPlayer(roster, p.ID) >= 0 {
		telemetry.Metrics.DuplicateEvents.Inc()
		return roster
	}
	out := make([]events.Player, len(roster), len(roster)+1)
	copy(out, roster)
	return append(out, p)
}

// RemovePlayer drops the player with id; absent ids leave roster unchanged.
func RemovePlayer(roster []events.Player, id string) []events.Player {
	idx := indexPlayer(roster, id)
	if idx < 0 {
		telemetry.Metrics.DuplicateEvents.Inc()
		return roster
	}
	out := make([]events.Player, 0, len(roster)-1)
	out = append(out, roster[:idx]...)
	return append(out, roster[idx+1:]...)
}

// IsHost derives host status from the roster: the first player joined is host.
func IsHost(roster []events.Player, playerID string) bool {
	return playerID != "" && len(roster) > 0 && roster[0].ID == playerID
}

func HasPlayer(roster []events.Player, id string) bool {
	return indexPlayer(roster, id) >= 0
}

func indexPlayer(roster []events.Player, id string) int {
	for i, p := range roster {
		if p.ID == id {
			return i
		}
	}
	return -1
}
