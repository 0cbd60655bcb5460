package board

import (
	"strings"

	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

const (
	Rows = 6
	Cols = 7
)

// Cell is the canonical content of one board square.
type Cell uint8

const (
	Empty Cell = iota
	Slot1
	Slot2
)

const (
	DefaultSymbol1 = "🔴"
	DefaultSymbol2 = "🟡"
)

// Grid is row-major, row 0 at the top as the server sends it.
type Grid [Rows][Cols]Cell

// Slots are the two seats, index 0 for Slot1.
type Slots [2]events.Slot

// Symbol returns the display symbol for a cell.
func (s Slots) Symbol(c Cell) string {
	switch c {
	case Slot1:
		return orDefault(s[0].Symbol, DefaultSymbol1)
	case Slot2:
		return orDefault(s[1].Symbol, DefaultSymbol2)
	}
	return ""
}

// CellFor returns the cell owned by playerID, or Empty if it holds no seat.
func (s Slots) CellFor(playerID string) Cell {
	switch {
	case playerID == "":
		return Empty
	case s[0].ID == playerID:
		return Slot1
	case s[1].ID == playerID:
		return Slot2
	}
	return Empty
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// NormalizeCell resolves one raw cell token. Accepted spellings are the
// default emoji, Red/Yellow, 1/2, X/O, a seat's own symbol and a seat's
// player id. Anything else reads as Empty.
func NormalizeCell(token string, slots Slots) Cell {
	t := strings.TrimSpace(token)
	switch t {
	case "", "0", "null", "⚫", "⚪", ".":
		return Empty
	}
	if c := slots.CellFor(t); c != Empty {
		return c
	}
	if t == slots[0].Symbol {
		return Slot1
	}
	if t == slots[1].Symbol {
		return Slot2
	}
	switch strings.ToLower(t) {
	case DefaultSymbol1, "red", "r", "1", "x", "player1":
		return Slot1
	case DefaultSymbol2, "yellow", "y", "2", "o", "player2":
		return Slot2
	}
	telemetry.Debugf("board: unrecognised cell token %q", t)
	return Empty
}

// NormalizeGrid converts a raw server board into a Grid. A nil board is
// an empty grid. Rows or columns beyond 6x7 are ignored and missing ones
// stay Empty.
func NormalizeGrid(raw [][]string, slots Slots) Grid {
	var g Grid
	if len(raw) > Rows || (len(raw) > 0 && len(raw[0]) > Cols) {
		telemetry.Warnf("board: unexpected board shape %dx%d, clipping", len(raw), len(raw[0]))
	}
	for r := 0; r < Rows && r < len(raw); r++ {
		for c := 0; c < Cols && c < len(raw[r]); c++ {
			g[r][c] = NormalizeCell(raw[r][c], slots)
		}
	}
	return g
}

// Count returns how many squares hold c.
func (g *Grid) Count(c Cell) int {
	n := 0
	for r := range g {
		for col := range g[r] {
			if g[r][col] == c {
				n++
			}
		}
	}
	return n
}

// ColumnFull reports whether the top square of col is occupied.
func (g *Grid) ColumnFull(col int) bool {
	return col >= 0 && col < Cols && g[0][col] != Empty
}
