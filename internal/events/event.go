package events

import "time"

// Room identifies which hub an event arrived on.
type Room string

const (
	RoomLobby       Room = "lobby"
	RoomConnect4    Room = "connect4"
	RoomSpeedTyping Room = "speedtyping"
)

// Event is the envelope that flows through the event bus.
// Payload is always one of the canonical structs in types.go, never a raw frame.
type Event struct {
	ID        string
	Type      EventType
	Room      Room
	Wire      string // server event name the payload was decoded from
	Timestamp time.Time
	Payload   any
}

type EventType string

const (
	// Lobby hub
	EventPlayerJoined EventType = "player_joined"
	EventPlayerLeft   EventType = "player_left"
	EventLobbyCreated EventType = "lobby_created"
	EventLobbyDeleted EventType = "lobby_deleted"
	EventLobbyClosed  EventType = "lobby_closed"
	EventGameStarted  EventType = "game_started"

	// Connect 4 hub
	EventBoardInitialized EventType = "board_initialized"
	EventPieceDropped     EventType = "piece_dropped"
	EventBoardGameOver    EventType = "board_game_over"

	// SpeedTyping hub
	EventRaceInitialized EventType = "race_initialized"
	EventCountdownTick   EventType = "countdown_tick"
	EventRaceStarted     EventType = "race_started"
	EventProgressUpdated EventType = "progress_updated"
	EventPlayerFinished  EventType = "player_finished"
	EventRaceOver        EventType = "race_over"

	// Shared by the game hubs
	EventInvalidMove EventType = "invalid_move"
	EventGameError   EventType = "game_error"

	// Local transport status, never sent by the server
	EventChannelStatus EventType = "channel_status"
)

// Known reports whether t is one of the canonical event types.
func Known(t EventType) bool {
	switch t {
	case EventPlayerJoined, EventPlayerLeft, EventLobbyCreated, EventLobbyDeleted,
		EventLobbyClosed, EventGameStarted, EventBoardInitialized, EventPieceDropped,
		EventBoardGameOver, EventRaceInitialized, EventCountdownTick, EventRaceStarted,
		EventProgressUpdated, EventPlayerFinished, EventRaceOver, EventInvalidMove,
		EventGameError, EventChannelStatus:
		return true
	}
	return false
}
