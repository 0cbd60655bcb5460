package board

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/arcade-client/internal/core/session"
	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/events"
)

type call struct {
	target string
	args   []any
}

// fakeCommander completes every command synchronously with the configured verdict.
type fakeCommander struct {
	calls   []call
	replies map[string]error
	hold    bool
	held    []func(error)
}

func (f *fakeCommander) Submit(target string, args []any, done func(error)) {
	f.calls = append(f.calls, call{target, args})
	if f.hold {
		f.held = append(f.held, done)
		return
	}
	done(f.replies[target])
}

func newAdapter(t *testing.T, playerID string) (*Adapter, *fakeCommander, *session.Pointer) {
	t.Helper()
	ptr := session.NewPointer(session.NewMemoryKV())
	require.NoError(t, ptr.SetPlayer(&events.Player{ID: playerID}))
	require.NoError(t, ptr.SetActiveGame(&session.ActiveGame{SessionID: "s1", LobbyID: "L1", GameType: "connect4"}))
	s := game.NewSession(game.Config{ID: "s1", LobbyID: "L1", PlayerID: playerID, Kind: game.KindConnect4, Host: playerID == "A"}, ptr)
	cmd := &fakeCommander{replies: map[string]error{}}
	return New(s, cmd), cmd, ptr
}

func emptyBoard() [][]string {
	b := make([][]string, Rows)
	for r := range b {
		b[r] = make([]string, Cols)
	}
	return b
}

func initEvent() events.Event {
	return events.Event{
		Type: events.EventBoardInitialized,
		Payload: events.BoardInitializedEvent{
			Board:       emptyBoard(),
			CurrentTurn: "A",
			Player1:     &events.Slot{ID: "A", Pseudo: "alice"},
			Player2:     &events.Slot{ID: "B", Pseudo: "bob", Symbol: "🟢"},
		},
	}
}

func TestInitializeActivatesBoard(t *testing.T) {
	a, _, _ := newAdapter(t, "A")
	require.NoError(t, a.HandleEvent(initEvent()))

	assert.Equal(t, game.PhaseActive, a.Session().Phase())
	assert.Equal(t, "A", a.CurrentTurn)
	assert.Equal(t, DefaultSymbol1, a.Slots[0].Symbol)
	assert.Equal(t, "🟢", a.Slots[1].Symbol)
	assert.Equal(t, Slot1, a.MyCell())
	assert.Equal(t, "alice", a.TurnPseudo())
}

func TestTurnExclusivity(t *testing.T) {
	a, cmd, _ := newAdapter(t, "A")
	require.NoError(t, a.HandleEvent(initEvent()))
	require.NoError(t, a.DropPiece(3))
	require.Len(t, cmd.calls, 1)
	assert.Equal(t, "DropPiece", cmd.calls[0].target)
	assert.Equal(t, []any{"L1", "s1", "A", 3}, cmd.calls[0].args)

	b, bcmd, _ := newAdapter(t, "B")
	require.NoError(t, b.HandleEvent(initEvent()))
	assert.ErrorIs(t, b.DropPiece(3), ErrNotYourTurn)
	assert.Empty(t, bcmd.calls)
}

func TestDropPieceGuards(t *testing.T) {
	a, cmd, _ := newAdapter(t, "A")
	assert.ErrorIs(t, a.DropPiece(0), game.ErrNotActive)

	require.NoError(t, a.HandleEvent(initEvent()))
	assert.ErrorIs(t, a.DropPiece(-1), ErrInvalidColumn)
	assert.ErrorIs(t, a.DropPiece(7), ErrInvalidColumn)

	cmd.hold = true
	require.NoError(t, a.DropPiece(0))
	assert.ErrorIs(t, a.DropPiece(1), game.ErrCommandPending)

	require.NoError(t, a.HandleEvent(events.Event{Type: events.EventBoardGameOver, Payload: events.BoardGameOverEvent{IsDraw: true}}))
	assert.ErrorIs(t, a.DropPiece(0), game.ErrGameOver)
	assert.Len(t, cmd.calls, 1)
}

func TestPieceDroppedReplacesBoardAndTurn(t *testing.T) {
	a, _, _ := newAdapter(t, "A")
	require.NoError(t, a.HandleEvent(initEvent()))

	board := emptyBoard()
	board[5][3] = "Red"
	require.NoError(t, a.HandleEvent(events.Event{
		Type:    events.EventPieceDropped,
		Payload: events.PieceDroppedEvent{Board: board, CurrentTurn: "B", Column: 3, Row: 5, PlayerID: "A"},
	}))
	assert.Equal(t, Slot1, a.Grid[5][3])
	assert.Equal(t, 1, a.Grid.Count(Slot1))
	assert.Equal(t, "B", a.CurrentTurn)
	assert.Equal(t, 3, a.LastColumn)
	assert.False(t, a.IsMyTurn())

	// the next board is authoritative even if it drops a piece
	require.NoError(t, a.HandleEvent(events.Event{
		Type:    events.EventPieceDropped,
		Payload: events.PieceDroppedEvent{Board: emptyBoard(), CurrentTurn: "A"},
	}))
	assert.Equal(t, 0, a.Grid.Count(Slot1))
}

func TestGameOverFreezesBoardAndClearsPointer(t *testing.T) {
	a, _, ptr := newAdapter(t, "A")
	require.NoError(t, a.HandleEvent(initEvent()))

	final := emptyBoard()
	final[5][0] = "B"
	require.NoError(t, a.HandleEvent(events.Event{
		Type:    events.EventBoardGameOver,
		Payload: events.BoardGameOverEvent{WinnerID: "B", Board: final},
	}))
	assert.True(t, a.Session().Terminal())
	assert.Equal(t, "bob", a.WinnerPseudo)
	assert.Equal(t, Slot2, a.Grid[5][0])
	assert.Nil(t, ptr.ActiveGame())

	require.NoError(t, a.HandleEvent(events.Event{
		Type:    events.EventPieceDropped,
		Payload: events.PieceDroppedEvent{Board: emptyBoard(), CurrentTurn: "A"},
	}))
	assert.Equal(t, Slot2, a.Grid[5][0])
}

func TestLateRejectionSuppressed(t *testing.T) {
	a, cmd, _ := newAdapter(t, "A")
	require.NoError(t, a.HandleEvent(initEvent()))

	cmd.hold = true
	require.NoError(t, a.DropPiece(2))
	require.NoError(t, a.HandleEvent(events.Event{Type: events.EventBoardGameOver, Payload: events.BoardGameOverEvent{WinnerID: "A"}}))

	cmd.held[0](errors.New("game already finished"))
	require.NoError(t, a.HandleEvent(events.Event{Type: events.EventInvalidMove, Payload: events.InvalidMoveEvent{Reason: "game over"}}))
	assert.Empty(t, a.Session().LastError)
}

func TestRejectionSurfacedWhileActive(t *testing.T) {
	a, cmd, _ := newAdapter(t, "A")
	require.NoError(t, a.HandleEvent(initEvent()))
	cmd.replies["DropPiece"] = errors.New("column is full")

	require.NoError(t, a.DropPiece(0))
	assert.Contains(t, a.Session().LastError, "column is full")
	// a failed drop frees the turn for another attempt
	require.NoError(t, a.DropPiece(1))
}

func TestInitializeGameHostOnly(t *testing.T) {
	a, cmd, _ := newAdapter(t, "A")
	assert.ErrorIs(t, a.InitializeGame([]string{"A"}), game.ErrNotEnoughPlayers)
	require.NoError(t, a.InitializeGame([]string{"A", "B"}))
	require.Len(t, cmd.calls, 1)
	assert.Equal(t, []any{"L1", "s1", []string{"A", "B"}}, cmd.calls[0].args)

	b, _, _ := newAdapter(t, "B")
	assert.ErrorIs(t, b.InitializeGame([]string{"A", "B"}), game.ErrNotHost)
}

func TestForeignLobbyCloseIgnored(t *testing.T) {
	a, _, ptr := newAdapter(t, "A")
	require.NoError(t, a.HandleEvent(initEvent()))

	require.NoError(t, a.HandleEvent(events.Event{Type: events.EventLobbyClosed, Payload: events.LobbyClosedEvent{LobbyID: "L2"}}))
	assert.False(t, a.Session().Terminal())
	require.NotNil(t, ptr.ActiveGame())
	assert.Equal(t, "L1", ptr.ActiveGame().LobbyID)
}
