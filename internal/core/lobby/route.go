package lobby

import (
	"errors"
	"fmt"

	"github.com/charleschow/arcade-client/internal/core/session"
	"github.com/charleschow/arcade-client/internal/core/state/game"
)

var (
	ErrNoPlayer         = errors.New("no player registered")
	ErrNoLobby          = errors.New("no lobby selected")
	ErrLobbyFull        = errors.New("lobby is full")
	ErrPasswordRequired = errors.New("lobby is private, password required")
	ErrCommandRejected  = errors.New("command rejected")
	ErrNotJoined        = errors.New("not joined to the lobby")
	ErrNoActiveGame     = errors.New("no game to resume")

	ErrNotHost          = game.ErrNotHost
	ErrNotEnoughPlayers = game.ErrNotEnoughPlayers
)

// Target is where the application should go next.
type Target int

const (
	ToList Target = iota
	ToLobby
	ToGame
)

func (t Target) String() string {
	switch t {
	case ToList:
		return "list"
	case ToLobby:
		return "lobby"
	case ToGame:
		return "game"
	}
	return fmt.Sprintf("target(%d)", int(t))
}

// Destination is a navigation request. Game is set for ToGame, LobbyID for ToLobby.
// Hold keeps the list in place instead of following the active game or a
// membership; it is set after a failed entry so the user decides when to retry.
type Destination struct {
	Target  Target
	LobbyID string
	Game    *session.ActiveGame
	Reason  string
	Hold    bool
}

// Navigator receives navigation requests. Contexts call it from their loop;
// implementations must not block.
type Navigator interface {
	Navigate(d Destination)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(Destination)

func (f NavigatorFunc) Navigate(d Destination) { f(d) }

func toGame(g *session.ActiveGame) Destination {
	cp := *g
	return Destination{Target: ToGame, LobbyID: g.LobbyID, Game: &cp}
}

// DetailObserver and ListObserver receive context changes on the loop goroutine.
type DetailObserver interface {
	OnLobbyEvent(d *Detail, change string)
}

type ListObserver interface {
	OnListEvent(l *List, change string)
}
