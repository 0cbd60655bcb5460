package board

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/charleschow/arcade-client/internal/events"
)

func TestNormalizeCell(t *testing.T) {
	slots := Slots{{ID: "p-1", Symbol: "🔴"}, {ID: "p-2", Symbol: "🟣"}}
	cases := map[string]Cell{
		"":       Empty,
		"0":      Empty,
		"null":   Empty,
		"🔴":      Slot1,
		"🟡":      Slot2,
		"🟣":      Slot2,
		"RED":    Slot1,
		"yellow": Slot2,
		"1":      Slot1,
		"2":      Slot2,
		"x":      Slot1,
		"O":      Slot2,
		"p-1":    Slot1,
		"p-2":    Slot2,
		"p-3":    Empty,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCell(in, slots), "token %q", in)
	}
}

func TestNormalizeGridShapes(t *testing.T) {
	var slots Slots
	assert.Equal(t, Grid{}, NormalizeGrid(nil, slots))

	raw := [][]string{{"1", "2"}}
	g := NormalizeGrid(raw, slots)
	assert.Equal(t, Slot1, g[0][0])
	assert.Equal(t, Slot2, g[0][1])
	assert.True(t, g.ColumnFull(0))
	assert.False(t, g.ColumnFull(2))

	tall := make([][]string, Rows+2)
	for i := range tall {
		tall[i] = []string{"1", "1", "1", "1", "1", "1", "1", "1"}
	}
	g = NormalizeGrid(tall, slots)
	assert.Equal(t, Rows*Cols, g.Count(Slot1))
}

func TestSlotsSymbolDefaults(t *testing.T) {
	s := Slots{events.Slot{ID: "a"}, events.Slot{ID: "b", Symbol: "X"}}
	assert.Equal(t, DefaultSymbol1, s.Symbol(Slot1))
	assert.Equal(t, "X", s.Symbol(Slot2))
	assert.Equal(t, "", s.Symbol(Empty))
}
