package events

type Player struct {
	ID     string `json:"id"`
	Pseudo string `json:"pseudo"`
}

// LobbySummary is one row of the public lobby list.
type LobbySummary struct {
	ID             string `json:"id"`
	GameType       string `json:"gameType"`
	HostPseudo     string `json:"hostPseudo"`
	CurrentPlayers int    `json:"currentPlayers"`
	MaxPlayers     int    `json:"maxPlayers"`
	IsPrivate      bool   `json:"isPrivate"`
}

type PlayerJoinedEvent struct {
	LobbyID string
	Player  Player
}

type PlayerLeftEvent struct {
	LobbyID string
	Player  Player
}

type LobbyCreatedEvent struct {
	Lobby LobbySummary
}

type LobbyDeletedEvent struct {
	LobbyID string
	Reason  string
}

type LobbyClosedEvent struct {
	LobbyID string
	Reason  string
}

// GameStartedEvent moves a lobby into a game session. GameType is lower-cased.
type GameStartedEvent struct {
	LobbyID   string
	SessionID string
	GameType  string
}

// Slot is a seat in a two-player game.
type Slot struct {
	ID     string
	Pseudo string
	Symbol string
}

// Board grids carry the raw cell tokens; normalisation happens in the board adapter.
type BoardInitializedEvent struct {
	Board       [][]string
	CurrentTurn string
	Player1     *Slot
	Player2     *Slot
}

type PieceDroppedEvent struct {
	Board       [][]string
	CurrentTurn string
	Column      int
	Row         int
	PlayerID    string
	Symbol      string
}

type BoardGameOverEvent struct {
	WinnerID     string
	WinnerPseudo string
	IsDraw       bool
	Board        [][]string // nil when the server omitted the final board
}

type RaceInitializedEvent struct {
	Text    string
	Players []Player
}

type CountdownTickEvent struct {
	RemainingSeconds int
}

type RaceStartedEvent struct{}

type ProgressUpdatedEvent struct {
	PlayerID string
	Pseudo   string
	Progress float64
	WPM      float64
	Accuracy float64
}

type PlayerFinishedEvent struct {
	PlayerID   string
	Pseudo     string
	FinishTime float64 // seconds
	Rank       int
	WPM        float64
	Accuracy   float64
}

type RankingEntry struct {
	PlayerID    string
	Pseudo      string
	Rank        int
	WPM         float64
	Accuracy    float64
	TimeSeconds float64
}

type RaceOverEvent struct {
	Rankings []RankingEntry
}

type InvalidMoveEvent struct {
	Reason string
}

type GameErrorEvent struct {
	Message string
}

// ChannelStatusEvent signals hub connect/disconnect to the active context.
type ChannelStatusEvent struct {
	Path      string
	Connected bool
	Attempt   int
}
