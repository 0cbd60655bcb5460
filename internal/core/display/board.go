package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/core/state/game/board"
)

const (
	dividerHeavy = "========================================"
	dividerLight = "~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~"
	emptyCell    = "⚫"
)

func PrintBoard(w io.Writer, s *game.Session, change string) {
	a, ok := s.Game.(*board.Adapter)
	if !ok {
		return
	}

	divider := dividerHeavy
	if change == game.ChangeRejected || change == game.ChangeConnection {
		divider = dividerLight
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s] connect4 %s%s\n", change, shortID(s.ID), connTag(s))
	fmt.Fprintf(&b, "%s\n", divider)

	switch change {
	case game.ChangeRejected:
		fmt.Fprintf(&b, "  rejected: %s\n", s.LastError)
		fmt.Fprintf(&b, "%s\n", divider)
		fmt.Fprint(w, b.String())
		return
	case game.ChangeConnection:
		fmt.Fprintf(&b, "%s\n", divider)
		fmt.Fprint(w, b.String())
		return
	case game.ChangeClosed:
		fmt.Fprintf(&b, "  game ended: %s\n", orText(s.CloseReason, "the lobby was closed"))
		fmt.Fprintf(&b, "%s\n", divider)
		fmt.Fprint(w, b.String())
		return
	}

	fmt.Fprintf(&b, "  %s %-12s vs  %s %s\n",
		a.Slots.Symbol(board.Slot1), orText(a.Slots[0].Pseudo, "?"),
		a.Slots.Symbol(board.Slot2), orText(a.Slots[1].Pseudo, "?"))
	fmt.Fprintf(&b, "  ")
	for c := 0; c < board.Cols; c++ {
		fmt.Fprintf(&b, " %d", c)
	}
	fmt.Fprintf(&b, "\n")
	for r := 0; r < board.Rows; r++ {
		fmt.Fprintf(&b, "  ")
		for c := 0; c < board.Cols; c++ {
			sym := a.Slots.Symbol(a.Grid[r][c])
			if sym == "" {
				sym = emptyCell
			}
			fmt.Fprintf(&b, "%s", sym)
		}
		fmt.Fprintf(&b, "\n")
	}

	switch {
	case a.Draw:
		fmt.Fprintf(&b, "  Game over: draw\n")
	case s.Terminal() && a.WinnerID != "":
		if a.WinnerID == s.PlayerID {
			fmt.Fprintf(&b, "  Game over: you win!\n")
		} else {
			fmt.Fprintf(&b, "  Game over: %s wins\n", orText(a.WinnerPseudo, a.WinnerID))
		}
	case s.Phase() != game.PhaseActive:
		fmt.Fprintf(&b, "  Waiting for the game to start (%s)\n", s.Phase())
	case a.IsMyTurn():
		fmt.Fprintf(&b, "  Your turn %s  (drop <col>)\n", a.Slots.Symbol(a.MyCell()))
	default:
		fmt.Fprintf(&b, "  %s to play\n", a.TurnPseudo())
	}
	fmt.Fprintf(&b, "%s\n", divider)

	fmt.Fprint(w, b.String())
}

func connTag(s *game.Session) string {
	if s.Connected {
		return ""
	}
	return fmt.Sprintf("  [RECONNECTING #%d]", s.Attempt)
}

// shortID trims a uuid to its first block for log-style headers.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func orText(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
