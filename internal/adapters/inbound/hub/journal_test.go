package hub

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalEvictsOldestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.db")
	frame := strings.Repeat("x", 100)

	j, err := OpenJournal(path, 1000)
	require.NoError(t, err)
	for i := 0; i < 150; i++ {
		j.Insert("/connect4hub", fmt.Sprintf("E%03d", i), []byte(frame))
	}
	require.NoError(t, j.Close())

	j, err = OpenJournal(path, 1000)
	require.NoError(t, err)
	defer j.Close()

	frames, err := j.Recent(context.Background(), "", 500)
	require.NoError(t, err)
	require.NotEmpty(t, frames)
	assert.Equal(t, "E149", frames[0].Target, "newest first")

	var total int
	for _, f := range frames {
		total += len(f.Raw)
	}
	assert.LessOrEqual(t, total, 1000)
}

func TestJournalFiltersByHub(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.db")
	j, err := OpenJournal(path, 0)
	require.NoError(t, err)
	j.Insert("/lobbyhub", "LobbyCreated", []byte(`{}`))
	j.Insert("/connect4hub", "PieceDropped", []byte(`{}`))
	require.NoError(t, j.Close())

	j, err = OpenJournal(path, 0)
	require.NoError(t, err)
	defer j.Close()

	frames, err := j.Recent(context.Background(), "/connect4hub", 10)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "PieceDropped", frames[0].Target)
	assert.False(t, frames[0].Received.IsZero())
}

func TestNilJournalIsNoop(t *testing.T) {
	var j *Journal
	j.Insert("/lobbyhub", "X", []byte("{}"))
	frames, err := j.Recent(context.Background(), "", 1)
	assert.NoError(t, err)
	assert.Nil(t, frames)
	assert.NoError(t, j.Close())
}
