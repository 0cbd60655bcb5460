// Package board drives a Connect 4 session from the connect4 hub.
//
// The server owns the board. The adapter replaces its grid wholesale on
// every authoritative event and only sends a drop when it is the local
// player's turn.
package board

import (
	"errors"
	"fmt"

	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

// Change names reported to observers.
const (
	ChangeBoard    = "BOARD"
	ChangeGameOver = "GAME OVER"
)

var (
	ErrNotYourTurn   = errors.New("not your turn")
	ErrInvalidColumn = errors.New("invalid column")
)

// Adapter is the Connect 4 game state for one session.
// All methods run on the context loop.
type Adapter struct {
	session *game.Session
	cmd     game.Commander

	Grid        Grid
	Slots       Slots
	CurrentTurn string

	WinnerID     string
	WinnerPseudo string
	Draw         bool

	// LastColumn is the column of the most recent drop, -1 before any.
	LastColumn int

	pending bool
}

// New binds a board adapter to s. s.Game is set to the adapter.
func New(s *game.Session, cmd game.Commander) *Adapter {
	a := &Adapter{session: s, cmd: cmd, LastColumn: -1}
	s.Game = a
	return a
}

func (a *Adapter) Kind() game.Kind        { return game.KindConnect4 }
func (a *Adapter) Session() *game.Session { return a.session }

func (a *Adapter) EventTypes() []events.EventType {
	return append([]events.EventType{
		events.EventBoardInitialized,
		events.EventPieceDropped,
		events.EventBoardGameOver,
	}, game.SharedEventTypes()...)
}

// IsMyTurn reports whether the local player may drop now.
func (a *Adapter) IsMyTurn() bool {
	return a.CurrentTurn != "" && a.CurrentTurn == a.session.PlayerID
}

// MyCell is the local player's seat, Empty for spectators.
func (a *Adapter) MyCell() Cell { return a.Slots.CellFor(a.session.PlayerID) }

// TurnPseudo names the player whose turn it is.
func (a *Adapter) TurnPseudo() string {
	for _, s := range a.Slots {
		if s.ID != "" && s.ID == a.CurrentTurn {
			return s.Pseudo
		}
	}
	return a.CurrentTurn
}

func (a *Adapter) HandleEvent(e events.Event) error {
	if a.session.HandleShared(e) {
		return nil
	}
	switch p := e.Payload.(type) {
	case events.BoardInitializedEvent:
		a.onInitialized(p)
	case events.PieceDroppedEvent:
		a.onPieceDropped(p)
	case events.BoardGameOverEvent:
		a.onGameOver(p)
	default:
		return fmt.Errorf("board: unexpected payload %T for %s", e.Payload, e.Type)
	}
	return nil
}

func (a *Adapter) onInitialized(p events.BoardInitializedEvent) {
	if a.session.Terminal() {
		return
	}
	var slots Slots
	if p.Player1 != nil {
		slots[0] = *p.Player1
	}
	if p.Player2 != nil {
		slots[1] = *p.Player2
	}
	slots[0].Symbol = orDefault(slots[0].Symbol, DefaultSymbol1)
	slots[1].Symbol = orDefault(slots[1].Symbol, DefaultSymbol2)

	a.Slots = slots
	a.Grid = NormalizeGrid(p.Board, slots)
	a.CurrentTurn = p.CurrentTurn
	a.pending = false

	for _, to := range []game.Phase{game.PhaseInitialized, game.PhaseActive} {
		if a.session.Phase() < to {
			if err := a.session.Advance(to); err != nil {
				telemetry.Warnf("board %s: %v", a.session.ID, err)
			}
		}
	}
	a.session.Notify(ChangeBoard)
}

func (a *Adapter) onPieceDropped(p events.PieceDroppedEvent) {
	if a.session.Terminal() {
		return
	}
	if p.Board != nil {
		a.Grid = NormalizeGrid(p.Board, a.Slots)
	}
	if p.CurrentTurn != "" {
		a.CurrentTurn = p.CurrentTurn
	}
	a.LastColumn = p.Column
	a.pending = false
	a.session.Notify(ChangeBoard)
}

func (a *Adapter) onGameOver(p events.BoardGameOverEvent) {
	if a.session.Terminal() {
		return
	}
	if p.Board != nil {
		a.Grid = NormalizeGrid(p.Board, a.Slots)
	}
	a.WinnerID = p.WinnerID
	a.WinnerPseudo = p.WinnerPseudo
	if a.WinnerPseudo == "" && a.WinnerID != "" {
		for _, s := range a.Slots {
			if s.ID == a.WinnerID {
				a.WinnerPseudo = s.Pseudo
			}
		}
	}
	a.Draw = p.IsDraw
	a.CurrentTurn = ""
	a.pending = false
	a.session.Terminate()
	a.session.Notify(ChangeGameOver)
}

// DropPiece asks the server to drop a piece in col. Nothing changes
// locally until the server broadcasts the new board.
func (a *Adapter) DropPiece(col int) error {
	switch {
	case a.session.Terminal():
		return game.ErrGameOver
	case a.session.Phase() != game.PhaseActive:
		return game.ErrNotActive
	case col < 0 || col >= Cols:
		return fmt.Errorf("%w: %d", ErrInvalidColumn, col)
	case !a.IsMyTurn():
		return ErrNotYourTurn
	case a.pending:
		return game.ErrCommandPending
	}
	a.pending = true
	done := a.session.CommandDone("DropPiece")
	a.cmd.Submit("DropPiece", []any{a.session.LobbyID, a.session.ID, a.session.PlayerID, col}, func(err error) {
		if err != nil {
			a.pending = false
		}
		done(err)
	})
	return nil
}

// InitializeGame is sent by the host once both players are in the room.
func (a *Adapter) InitializeGame(playerIDs []string) error {
	switch {
	case !a.session.Host:
		return game.ErrNotHost
	case a.session.Terminal():
		return game.ErrGameOver
	case len(playerIDs) < 2:
		return fmt.Errorf("%w: need 2, have %d", game.ErrNotEnoughPlayers, len(playerIDs))
	}
	a.cmd.Submit("InitializeGame", []any{a.session.LobbyID, a.session.ID, playerIDs}, a.session.CommandDone("InitializeGame"))
	return nil
}
