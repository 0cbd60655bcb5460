package display

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/arcade-client/internal/adapters/outbound/api_http"
	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/core/state/game/board"
	"github.com/charleschow/arcade-client/internal/core/state/game/race"
	"github.com/charleschow/arcade-client/internal/events"
)

type nopCommander struct{}

func (nopCommander) Submit(_ string, _ []any, done func(error)) { done(nil) }

func TestBoardPrintsGridAndTurn(t *testing.T) {
	var buf bytes.Buffer
	s := game.NewSession(game.Config{ID: "abc-123", LobbyID: "L1", PlayerID: "A", Kind: game.KindConnect4}, nil)
	s.AddObserver(NewObserver(&buf, nil, clockwork.NewFakeClock()))
	a := board.New(s, nopCommander{})

	grid := make([][]string, board.Rows)
	for r := range grid {
		grid[r] = make([]string, board.Cols)
	}
	grid[5][0] = "1"
	require.NoError(t, a.HandleEvent(events.Event{Type: events.EventBoardInitialized, Payload: events.BoardInitializedEvent{
		Board: grid, CurrentTurn: "A",
		Player1: &events.Slot{ID: "A", Pseudo: "alice"},
		Player2: &events.Slot{ID: "B", Pseudo: "bob"},
	}}))

	out := buf.String()
	assert.Contains(t, out, "[BOARD] connect4 abc")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "🔴⚫⚫⚫⚫⚫⚫")
	assert.Contains(t, out, "Your turn")
}

func TestGameOverPrintedOnce(t *testing.T) {
	var buf bytes.Buffer
	s := game.NewSession(game.Config{ID: "s1", PlayerID: "A", Kind: game.KindConnect4}, nil)
	s.AddObserver(NewObserver(&buf, nil, clockwork.NewFakeClock()))
	a := board.New(s, nopCommander{})

	over := events.Event{Type: events.EventBoardGameOver, Payload: events.BoardGameOverEvent{WinnerID: "B", WinnerPseudo: "bob"}}
	require.NoError(t, a.HandleEvent(over))
	s.Notify(board.ChangeGameOver)
	assert.Equal(t, 1, strings.Count(buf.String(), "bob wins"))
}

func TestViewRedrawsFinishedGame(t *testing.T) {
	var buf bytes.Buffer
	s := game.NewSession(game.Config{ID: "s1", PlayerID: "A", Kind: game.KindConnect4}, nil)
	s.AddObserver(NewObserver(&buf, nil, clockwork.NewFakeClock()))
	a := board.New(s, nopCommander{})

	require.NoError(t, a.HandleEvent(events.Event{Type: events.EventBoardGameOver, Payload: events.BoardGameOverEvent{WinnerID: "B", WinnerPseudo: "bob"}}))
	s.Notify(game.ChangeView)
	s.Notify(game.ChangeView)
	assert.Equal(t, 3, strings.Count(buf.String(), "bob wins"))
}

func TestLeaderboardMarksCurrentPlayer(t *testing.T) {
	var buf bytes.Buffer
	PrintLeaderboard(&buf, api_http.LeaderboardResponse{
		GameType:     "SpeedTyping",
		TotalEntries: 40,
		Entries: []api_http.LeaderboardEntry{
			{Rank: 1, Pseudo: "zed", Score: 120, TimeFormatted: "00:00:30.000"},
		},
		CurrentPlayerEntry: &api_http.LeaderboardEntry{Rank: 17, Pseudo: "alice", Score: 64, Time: "00:00:55.100"},
	})

	out := buf.String()
	assert.Contains(t, out, "[LEADERBOARD] SpeedTyping  40 entries")
	assert.Contains(t, out, "zed")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "00:00:55.100  <- you")
}

func TestHistoryListsMovesInOrder(t *testing.T) {
	var buf bytes.Buffer
	PrintHistory(&buf, api_http.GameHistory{
		GameSessionID: "S1",
		GameType:      "Puissance4",
		Duration:      "00:01:10",
		Actions: []api_http.GameAction{
			{PlayerID: "p1", PlayerPseudo: "ann", ActionType: "DropPiece", ActionData: `{"column":3}`, TimeSinceStart: "00:00:02"},
			{PlayerID: "p2", ActionType: "DropPiece", ActionData: `{"column":4}`, TimeSinceStart: "00:00:05"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "[HISTORY] S1  Puissance4  00:01:10")
	assert.Less(t, strings.Index(out, "ann"), strings.Index(out, "p2"))
	assert.Contains(t, out, `{"column":4}`)
}

func TestRaceProgressThrottled(t *testing.T) {
	var buf bytes.Buffer
	clock := clockwork.NewFakeClock()
	s := game.NewSession(game.Config{ID: "s1", PlayerID: "me", Kind: game.KindSpeedTyping, Countdown: true}, nil)
	s.AddObserver(NewObserver(&buf, nil, clock))
	a := race.New(s, nopCommander{}, clock, nil)

	require.NoError(t, a.HandleEvent(events.Event{Type: events.EventRaceInitialized, Payload: events.RaceInitializedEvent{Text: "abc", Players: []events.Player{{ID: "me", Pseudo: "me"}}}}))
	require.NoError(t, a.HandleEvent(events.Event{Type: events.EventRaceStarted, Payload: events.RaceStartedEvent{}}))

	buf.Reset()
	require.NoError(t, a.Type('a'))
	require.NoError(t, a.Type('b'))
	assert.Equal(t, 1, strings.Count(buf.String(), "[PROGRESS]"))

	clock.Advance(time.Second)
	require.NoError(t, a.Type('c'))
	assert.Equal(t, 2, strings.Count(buf.String(), "[PROGRESS]"))
	assert.Contains(t, buf.String(), "abc[]")
}

func TestBar(t *testing.T) {
	assert.Equal(t, "["+strings.Repeat(".", barWidth)+"]", bar(0))
	assert.Equal(t, "["+strings.Repeat("#", barWidth)+"]", bar(150))
	assert.Equal(t, "s1", shortID("s1"))
	assert.Equal(t, "abc", shortID("abc-def"))
}
