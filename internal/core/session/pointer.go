package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

const (
	keyPlayerID     = "playerId"
	keyPlayerPseudo = "playerPseudo"
	keyActiveGame   = "activeGame"
	hostFlagPrefix  = "isHost_"
)

// ActiveGame points at the one game session the player is currently in.
type ActiveGame struct {
	SessionID string `json:"sessionId"`
	LobbyID   string `json:"lobbyId"`
	GameType  string `json:"gameType"`
}

type Snapshot struct {
	Player     *events.Player
	ActiveGame *ActiveGame
}

// Pointer is the durable "where am I" record: local identity plus the
// active game. Every mutation is written through to the KV before returning.
// There is no server validation; a stale pointer is corrected by the game
// context that finds the session gone.
type Pointer struct {
	mu sync.Mutex
	kv KV
}

func NewPointer(kv KV) *Pointer {
	return &Pointer{kv: kv}
}

func (p *Pointer) Load() (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var snap Snapshot
	id, ok, err := p.kv.Get(keyPlayerID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load player: %w", err)
	}
	if ok && id != "" {
		pseudo, _, err := p.kv.Get(keyPlayerPseudo)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load player: %w", err)
		}
		snap.Player = &events.Player{ID: id, Pseudo: pseudo}
	}

	ag, err := p.activeGameLocked()
	if err != nil {
		return Snapshot{}, err
	}
	snap.ActiveGame = ag
	return snap, nil
}

// Player returns the stored identity or nil.
func (p *Pointer) Player() *events.Player {
	snap, err := p.Load()
	if err != nil {
		telemetry.Warnf("[session] load: %v", err)
		return nil
	}
	return snap.Player
}

// ActiveGame returns the stored active game or nil.
func (p *Pointer) ActiveGame() *ActiveGame {
	p.mu.Lock()
	defer p.mu.Unlock()
	ag, err := p.activeGameLocked()
	if err != nil {
		telemetry.Warnf("[session] load: %v", err)
		return nil
	}
	return ag
}

// SetPlayer stores the identity. nil logs out and drops the active game;
// switching to a different player id drops it too.
func (p *Pointer) SetPlayer(pl *events.Player) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pl == nil {
		if err := p.kv.Delete(keyPlayerID, keyPlayerPseudo, keyActiveGame); err != nil {
			return fmt.Errorf("clear player: %w", err)
		}
		return nil
	}

	prev, ok, err := p.kv.Get(keyPlayerID)
	if err != nil {
		return fmt.Errorf("set player: %w", err)
	}
	if ok && prev != pl.ID {
		if err := p.kv.Delete(keyActiveGame); err != nil {
			return fmt.Errorf("set player: %w", err)
		}
	}
	if err := p.kv.Set(keyPlayerID, pl.ID); err != nil {
		return fmt.Errorf("set player: %w", err)
	}
	if err := p.kv.Set(keyPlayerPseudo, pl.Pseudo); err != nil {
		return fmt.Errorf("set player: %w", err)
	}
	return nil
}

// SetActiveGame stores g, or clears the pointer when g is nil.
func (p *Pointer) SetActiveGame(g *ActiveGame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setActiveGameLocked(g)
}

// ClearActiveGameForLobby clears the pointer only if it belongs to lobbyID.
func (p *Pointer) ClearActiveGameForLobby(lobbyID string) (bool, error) {
	return p.clearIf(func(ag *ActiveGame) bool { return ag.LobbyID == lobbyID })
}

// ClearActiveGameForSession clears the pointer only if it names sessionID.
func (p *Pointer) ClearActiveGameForSession(sessionID string) (bool, error) {
	return p.clearIf(func(ag *ActiveGame) bool { return ag.SessionID == sessionID })
}

func (p *Pointer) clearIf(match func(*ActiveGame) bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ag, err := p.activeGameLocked()
	if err != nil {
		return false, err
	}
	if ag == nil || !match(ag) {
		return false, nil
	}
	if err := p.setActiveGameLocked(nil); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pointer) SetHostFlag(sessionID string, host bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := "false"
	if host {
		v = "true"
	}
	if err := p.kv.Set(hostFlagPrefix+sessionID, v); err != nil {
		return fmt.Errorf("set host flag: %w", err)
	}
	return nil
}

// HostFlag reports the stored host flag for sessionID and whether one exists.
func (p *Pointer) HostFlag(sessionID string) (host, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok, err := p.kv.Get(hostFlagPrefix + sessionID)
	if err != nil {
		telemetry.Warnf("[session] host flag %s: %v", sessionID, err)
		return false, false
	}
	return v == "true", ok
}

// ReleaseSession drops per-session keys once the session is over.
func (p *Pointer) ReleaseSession(sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.kv.Delete(hostFlagPrefix + sessionID); err != nil {
		return fmt.Errorf("release session %s: %w", sessionID, err)
	}
	return nil
}

func (p *Pointer) activeGameLocked() (*ActiveGame, error) {
	raw, ok, err := p.kv.Get(keyActiveGame)
	if err != nil {
		return nil, fmt.Errorf("load active game: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var ag ActiveGame
	if err := json.Unmarshal([]byte(raw), &ag); err != nil || ag.SessionID == "" {
		telemetry.Warnf("[session] discarding unreadable active game %q", raw)
		return nil, nil
	}
	return &ag, nil
}

func (p *Pointer) setActiveGameLocked(g *ActiveGame) error {
	if g == nil {
		if err := p.kv.Delete(keyActiveGame); err != nil {
			return fmt.Errorf("clear active game: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode active game: %w", err)
	}
	if err := p.kv.Set(keyActiveGame, string(raw)); err != nil {
		return fmt.Errorf("set active game: %w", err)
	}
	return nil
}
