package session

import (
	"path/filepath"
	"testing"

	"github.com/charleschow/arcade-client/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointerEmptyStore(t *testing.T) {
	p := NewPointer(NewMemoryKV())
	snap, err := p.Load()
	require.NoError(t, err)
	assert.Nil(t, snap.Player)
	assert.Nil(t, snap.ActiveGame)
}

func TestPointerPlayerSwitchClearsActiveGame(t *testing.T) {
	p := NewPointer(NewMemoryKV())
	require.NoError(t, p.SetPlayer(&events.Player{ID: "p1", Pseudo: "ann"}))
	require.NoError(t, p.SetActiveGame(&ActiveGame{SessionID: "s1", LobbyID: "L1", GameType: "connect4"}))

	// same player again keeps the game
	require.NoError(t, p.SetPlayer(&events.Player{ID: "p1", Pseudo: "ann2"}))
	require.NotNil(t, p.ActiveGame())
	assert.Equal(t, "ann2", p.Player().Pseudo)

	require.NoError(t, p.SetPlayer(&events.Player{ID: "p2", Pseudo: "bob"}))
	assert.Nil(t, p.ActiveGame())
	assert.Equal(t, "p2", p.Player().ID)
}

func TestPointerLogoutClearsEverything(t *testing.T) {
	p := NewPointer(NewMemoryKV())
	require.NoError(t, p.SetPlayer(&events.Player{ID: "p1", Pseudo: "ann"}))
	require.NoError(t, p.SetActiveGame(&ActiveGame{SessionID: "s1", LobbyID: "L1"}))

	require.NoError(t, p.SetPlayer(nil))
	snap, err := p.Load()
	require.NoError(t, err)
	assert.Nil(t, snap.Player)
	assert.Nil(t, snap.ActiveGame)
}

func TestClearActiveGameForLobbyOnlyMatchesOwnLobby(t *testing.T) {
	p := NewPointer(NewMemoryKV())
	require.NoError(t, p.SetActiveGame(&ActiveGame{SessionID: "s2", LobbyID: "L2", GameType: "speedtyping"}))

	cleared, err := p.ClearActiveGameForLobby("L1")
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.Equal(t, "s2", p.ActiveGame().SessionID)

	cleared, err = p.ClearActiveGameForLobby("L2")
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.Nil(t, p.ActiveGame())
}

func TestClearActiveGameForSession(t *testing.T) {
	p := NewPointer(NewMemoryKV())
	require.NoError(t, p.SetActiveGame(&ActiveGame{SessionID: "s2", LobbyID: "L2"}))

	cleared, err := p.ClearActiveGameForSession("s1")
	require.NoError(t, err)
	assert.False(t, cleared)

	cleared, err = p.ClearActiveGameForSession("s2")
	require.NoError(t, err)
	assert.True(t, cleared)
}

func TestCorruptActiveGameIsTreatedAsAbsent(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(keyActiveGame, "{not json"))
	p := NewPointer(kv)

	snap, err := p.Load()
	require.NoError(t, err)
	assert.Nil(t, snap.ActiveGame)
}

func TestHostFlagLifecycle(t *testing.T) {
	p := NewPointer(NewMemoryKV())
	_, ok := p.HostFlag("s1")
	assert.False(t, ok)

	require.NoError(t, p.SetHostFlag("s1", true))
	host, ok := p.HostFlag("s1")
	assert.True(t, ok)
	assert.True(t, host)

	require.NoError(t, p.ReleaseSession("s1"))
	_, ok = p.HostFlag("s1")
	assert.False(t, ok)
}

func TestSQLiteKVSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	kv, err := OpenSQLiteKV(path)
	require.NoError(t, err)
	p := NewPointer(kv)
	require.NoError(t, p.SetPlayer(&events.Player{ID: "p1", Pseudo: "ann"}))
	require.NoError(t, p.SetActiveGame(&ActiveGame{SessionID: "s1", LobbyID: "L1", GameType: "connect4"}))
	require.NoError(t, p.SetActiveGame(&ActiveGame{SessionID: "s9", LobbyID: "L9", GameType: "connect4"}))
	require.NoError(t, kv.Close())

	kv, err = OpenSQLiteKV(path)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	snap, err := NewPointer(kv).Load()
	require.NoError(t, err)
	require.NotNil(t, snap.Player)
	assert.Equal(t, "ann", snap.Player.Pseudo)
	require.NotNil(t, snap.ActiveGame)
	assert.Equal(t, ActiveGame{SessionID: "s9", LobbyID: "L9", GameType: "connect4"}, *snap.ActiveGame)

	require.NoError(t, kv.Delete(keyPlayerID, keyPlayerPseudo))
	_, ok, err := kv.Get(keyPlayerID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteKVInMemory(t *testing.T) {
	kv, err := OpenSQLiteKV("")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	require.NoError(t, kv.Set("a", "1"))
	v, ok, err := kv.Get("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}
