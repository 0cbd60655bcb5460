package lobby

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charleschow/arcade-client/internal/adapters/outbound/api_http"
	"github.com/charleschow/arcade-client/internal/core/reducer"
	"github.com/charleschow/arcade-client/internal/core/session"
	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

// State is the lobby context lifecycle.
type State int

const (
	Idle State = iota
	Loading
	Joined
	Starting
	LeftOrClosed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Joined:
		return "joined"
	case Starting:
		return "starting"
	case LeftOrClosed:
		return "left"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Change names reported to observers.
const (
	ChangeLoaded   = "LOADED"
	ChangeRoster   = "ROSTER"
	ChangeStarting = "STARTING"
	ChangeClosed   = "CLOSED"
	ChangeLeft     = "LEFT"
	ChangeFailed   = "FAILED"
)

const defaultTimeout = 10 * time.Second

// Detail is the lobby room context. All methods run on the context loop.
type Detail struct {
	LobbyID    string
	GameType   string
	MaxPlayers int
	Status     string
	Players    []events.Player

	// Notice is a non-fatal message: a failed join or the close reason.
	Notice string
	// Err is the blocking load error when State is Failed.
	Err error

	api     DetailAPI
	ptr     *session.Pointer
	nav     Navigator
	timeout time.Duration

	state     State
	closed    *reducer.Latch
	observers []DetailObserver

	// early holds a GameStarted that arrived before Enter finished.
	early *events.GameStartedEvent
}

// NewDetail creates an Idle lobby context. timeout bounds each REST call.
func NewDetail(lobbyID string, api DetailAPI, ptr *session.Pointer, nav Navigator, timeout time.Duration) *Detail {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Detail{
		LobbyID: lobbyID,
		api:     api,
		ptr:     ptr,
		nav:     nav,
		timeout: timeout,
		closed:  reducer.NewLatch(),
	}
}

func (d *Detail) State() State { return d.state }

func (d *Detail) AddObserver(o DetailObserver) { d.observers = append(d.observers, o) }

func (d *Detail) notify(change string) {
	for _, o := range d.observers {
		o.OnLobbyEvent(d, change)
	}
}

func (d *Detail) playerID() string {
	if p := d.ptr.Player(); p != nil {
		return p.ID
	}
	return ""
}

// IsHost is recomputed from the roster every time.
func (d *Detail) IsHost() bool { return reducer.IsHost(d.Players, d.playerID()) }

// EventTypes lists the lobby hub events this context consumes.
func (d *Detail) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventPlayerJoined,
		events.EventPlayerLeft,
		events.EventGameStarted,
		events.EventLobbyClosed,
		events.EventLobbyDeleted,
		events.EventChannelStatus,
	}
}

// Enter loads the lobby and joins it if needed. It returns false if the
// context navigated straight to a game for this lobby, either the stored
// active game or one whose start was announced while loading.
func (d *Detail) Enter(ctx context.Context, password string) (bool, error) {
	player := d.ptr.Player()
	if player == nil {
		return false, ErrNoPlayer
	}
	if d.LobbyID == "" {
		return false, ErrNoLobby
	}

	if ag := d.ptr.ActiveGame(); ag != nil {
		if ag.LobbyID == d.LobbyID {
			d.nav.Navigate(toGame(ag))
			return false, nil
		}
		telemetry.Infof("lobby %s: dropping stale active game for lobby %s", d.LobbyID, ag.LobbyID)
		if _, err := d.ptr.ClearActiveGameForLobby(ag.LobbyID); err != nil {
			telemetry.Warnf("lobby %s: clear active game: %v", d.LobbyID, err)
		}
	}

	d.state = Loading
	detail, err := d.fetch(ctx, player.ID)
	if err != nil {
		return false, d.fail(fmt.Errorf("load lobby %s: %w", d.LobbyID, err))
	}

	if !reducer.HasPlayer(detail.Players, player.ID) {
		if err := d.join(ctx, player.ID, password); err != nil {
			return false, d.fail(err)
		}
		if refreshed, err := d.fetch(ctx, player.ID); err == nil {
			detail = refreshed
		} else {
			telemetry.Warnf("lobby %s: refresh after join: %v", d.LobbyID, err)
		}
	}

	d.apply(detail)
	d.state = Joined
	d.notify(ChangeLoaded)
	if p := d.early; p != nil {
		d.early = nil
		if err := d.onGameStarted(*p); err != nil {
			telemetry.Warnf("lobby %s: %v", d.LobbyID, err)
		}
		return false, nil
	}
	return true, nil
}

func (d *Detail) fetch(ctx context.Context, playerID string) (api_http.LobbyDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.api.GetLobby(ctx, d.LobbyID, playerID)
}

// join returns an error only for outcomes that stop the lobby from loading.
func (d *Detail) join(ctx context.Context, playerID, password string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.api.JoinLobby(ctx, d.LobbyID, playerID, password)
	switch {
	case err == nil, api_http.IsAlreadyMember(err):
		return nil
	case api_http.IsLobbyFull(err):
		return fmt.Errorf("join %s: %w", d.LobbyID, ErrLobbyFull)
	case api_http.IsPasswordRequired(err):
		return fmt.Errorf("join %s: %w", d.LobbyID, ErrPasswordRequired)
	}
	telemetry.Warnf("lobby %s: join failed, showing lobby anyway: %v", d.LobbyID, err)
	d.Notice = fmt.Sprintf("could not join: %v", err)
	return nil
}

func (d *Detail) fail(err error) error {
	d.state = Failed
	d.Err = err
	d.notify(ChangeFailed)
	return err
}

func (d *Detail) apply(detail api_http.LobbyDetail) {
	d.GameType = detail.GameType
	d.MaxPlayers = detail.MaxPlayers
	d.Status = detail.Status
	var roster []events.Player
	for _, p := range detail.Players {
		roster = reducer.AddPlayer(roster, p)
	}
	d.Players = roster
}

// Refresh refetches the roster, used after a reconnect.
func (d *Detail) Refresh(ctx context.Context) error {
	if d.state != Joined {
		return nil
	}
	detail, err := d.fetch(ctx, d.playerID())
	if err != nil {
		return err
	}
	d.apply(detail)
	d.notify(ChangeRoster)
	return nil
}

func (d *Detail) foreign(lobbyID string) bool {
	return lobbyID != "" && !strings.EqualFold(lobbyID, d.LobbyID)
}

func (d *Detail) HandleEvent(e events.Event) error {
	switch p := e.Payload.(type) {
	case events.PlayerJoinedEvent:
		if d.foreign(p.LobbyID) || d.state != Joined {
			return nil
		}
		before := len(d.Players)
		d.Players = reducer.AddPlayer(d.Players, p.Player)
		if len(d.Players) != before {
			d.notify(ChangeRoster)
		}
	case events.PlayerLeftEvent:
		if d.foreign(p.LobbyID) || d.state != Joined {
			return nil
		}
		before := len(d.Players)
		d.Players = reducer.RemovePlayer(d.Players, p.Player.ID)
		if len(d.Players) != before {
			d.notify(ChangeRoster)
		}
	case events.GameStartedEvent:
		if d.foreign(p.LobbyID) {
			return nil
		}
		return d.onGameStarted(p)
	case events.LobbyClosedEvent:
		d.onClosed(p.LobbyID, p.Reason, "The host closed the lobby")
	case events.LobbyDeletedEvent:
		d.onClosed(p.LobbyID, p.Reason, "The lobby was deleted")
	case events.ChannelStatusEvent:
		if !p.Connected {
			d.Notice = fmt.Sprintf("reconnecting (attempt %d)", p.Attempt)
		} else {
			d.Notice = ""
		}
		d.notify(ChangeRoster)
	}
	return nil
}

func (d *Detail) onGameStarted(p events.GameStartedEvent) error {
	if d.state == Idle || d.state == Loading {
		d.early = &p
		return nil
	}
	if d.state != Joined {
		telemetry.Debugf("lobby %s: game started while %s, ignoring", d.LobbyID, d.state)
		return nil
	}
	if p.SessionID == "" {
		return fmt.Errorf("lobby %s: game started without a session id", d.LobbyID)
	}
	gameType := strings.ToLower(p.GameType)
	if k, err := game.ParseKind(p.GameType); err == nil {
		gameType = string(k)
	}
	ag := &session.ActiveGame{SessionID: p.SessionID, LobbyID: d.LobbyID, GameType: gameType}

	d.state = Starting
	if err := d.ptr.SetActiveGame(ag); err != nil {
		telemetry.Errorf("lobby %s: persist active game: %v", d.LobbyID, err)
	}
	if err := d.ptr.SetHostFlag(p.SessionID, d.IsHost()); err != nil {
		telemetry.Warnf("lobby %s: persist host flag: %v", d.LobbyID, err)
	}
	d.notify(ChangeStarting)
	d.nav.Navigate(toGame(ag))
	return nil
}

func (d *Detail) onClosed(lobbyID, reason, fallback string) {
	if d.foreign(lobbyID) {
		return
	}
	if !d.closed.Trip(d.LobbyID) {
		return
	}
	if reason == "" {
		reason = fallback
	}
	d.state = LeftOrClosed
	d.Notice = reason
	if _, err := d.ptr.ClearActiveGameForLobby(d.LobbyID); err != nil {
		telemetry.Warnf("lobby %s: clear active game: %v", d.LobbyID, err)
	}
	d.notify(ChangeClosed)
	d.nav.Navigate(Destination{Target: ToList, Reason: "Lobby closed: " + reason})
}

// StartGame asks the server to start. Only the host may start and only
// with at least two players; nothing is sent otherwise.
func (d *Detail) StartGame(ctx context.Context) error {
	switch {
	case d.state != Joined:
		return ErrNotJoined
	case !d.IsHost():
		return ErrNotHost
	case len(d.Players) < 2:
		return fmt.Errorf("%w: %d of 2", ErrNotEnoughPlayers, len(d.Players))
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.api.StartGame(ctx, d.LobbyID, d.playerID()); err != nil {
		telemetry.Metrics.CommandRejections.Inc()
		return fmt.Errorf("%w: start game: %v", ErrCommandRejected, err)
	}
	return nil
}

// Leave leaves the lobby over REST. On failure the context stays as it was.
func (d *Detail) Leave(ctx context.Context) error {
	if d.state == LeftOrClosed {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.api.LeaveLobby(ctx, d.LobbyID, d.playerID()); err != nil {
		return fmt.Errorf("leave lobby %s: %w", d.LobbyID, err)
	}
	d.state = LeftOrClosed
	d.closed.Trip(d.LobbyID)
	if _, err := d.ptr.ClearActiveGameForLobby(d.LobbyID); err != nil {
		telemetry.Warnf("lobby %s: clear active game: %v", d.LobbyID, err)
	}
	d.notify(ChangeLeft)
	d.nav.Navigate(Destination{Target: ToList})
	return nil
}

// Delete removes the lobby. Host only; the close broadcast does the rest.
func (d *Detail) Delete(ctx context.Context) error {
	if !d.IsHost() {
		return ErrNotHost
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.api.DeleteLobby(ctx, d.LobbyID, d.playerID()); err != nil {
		return fmt.Errorf("%w: delete lobby: %v", ErrCommandRejected, err)
	}
	return nil
}
