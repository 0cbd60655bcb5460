package process

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/charleschow/arcade-client/internal/adapters/inbound/hub"
	"github.com/charleschow/arcade-client/internal/core/lobby"
	"github.com/charleschow/arcade-client/internal/core/session"
	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/core/state/game/board"
	"github.com/charleschow/arcade-client/internal/core/state/game/race"
	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

var errNoActiveGame = errors.New("no active game")

// resyncer is an adapter with local progress the server may have missed
// while the channel was down.
type resyncer interface {
	Resync()
}

type gameContext struct {
	app     *App
	spec    GameSpec
	loop    *game.Loop
	session *game.Session
	adapter Adapter
	cmd     *ChannelCommander
	ch      *hub.Channel

	catchUp singleflight.Group
}

// openGame hosts the persisted active game: it joins the game room, asks
// for a state catch-up and hands events to the adapter for ag's kind.
func (a *App) openGame(ctx context.Context, ag *session.ActiveGame) (screen, error) {
	if ag == nil {
		return nil, errNoActiveGame
	}
	player := a.ptr.Player()
	if player == nil {
		return nil, lobby.ErrNoPlayer
	}
	kind, err := game.ParseKind(ag.GameType)
	if err != nil {
		a.dropActiveGame(ag.SessionID)
		return nil, err
	}
	spec, ok := a.registry.Get(kind)
	if !ok {
		a.dropActiveGame(ag.SessionID)
		return nil, fmt.Errorf("%w: %s", game.ErrUnknownGame, kind)
	}

	loop := game.NewLoop("game "+ag.SessionID, 0)
	bus := events.NewBus()
	s := game.NewSession(game.Config{
		ID:        ag.SessionID,
		LobbyID:   ag.LobbyID,
		PlayerID:  player.ID,
		Kind:      kind,
		Host:      a.resolveHost(ctx, ag, player.ID),
		Countdown: spec.Countdown,
	}, a.ptr)
	cmd := NewChannelCommander(loop.Send, a.commandTimeout)
	adapter := spec.New(s, cmd, Env{Clock: a.clock, Scores: a.scores})

	c := &gameContext{app: a, spec: spec, loop: loop, session: s, adapter: adapter, cmd: cmd}
	s.AddObserver(a.display)
	s.AddObserver(c)
	bus.SubscribeMany(adapter.HandleEvent, adapter.EventTypes()...)

	ch, err := a.openChannel(ctx, spec.HubPath, spec.Room, loop, bus, func(ch *hub.Channel) {
		go func() {
			if err := c.join(ctx, ch); err != nil {
				telemetry.Warnf("[game %s] rejoin: %v", s.ID, err)
			}
		}()
	})
	if err != nil {
		cmd.Close()
		loop.Close()
		return nil, fmt.Errorf("game %s: %w", ag.SessionID, err)
	}
	c.ch = ch
	cmd.Attach(ch)

	if err := c.join(ctx, ch); err != nil {
		c.Close(ctx)
		return nil, err
	}
	telemetry.Infof("[game %s] %s joined, host=%v", s.ID, kind, s.Host)
	return c, nil
}

// resolveHost prefers the flag stored when the game started; a resumed
// game without one asks the lobby service.
func (a *App) resolveHost(ctx context.Context, ag *session.ActiveGame, playerID string) bool {
	if host, ok := a.ptr.HostFlag(ag.SessionID); ok {
		return host
	}
	ctx, cancel := context.WithTimeout(ctx, a.apiTimeout)
	defer cancel()
	detail, err := a.api.GetLobby(ctx, ag.LobbyID, playerID)
	if err != nil {
		telemetry.Debugf("[game %s] host lookup: %v", ag.SessionID, err)
		return false
	}
	host := detail.IsHost
	if len(detail.Players) > 0 {
		host = host || detail.Players[0].ID == playerID
	}
	if err := a.ptr.SetHostFlag(ag.SessionID, host); err != nil {
		telemetry.Warnf("[game %s] store host flag: %v", ag.SessionID, err)
	}
	return host
}

func (a *App) dropActiveGame(sessionID string) {
	if _, err := a.ptr.ClearActiveGameForSession(sessionID); err != nil {
		telemetry.Warnf("[game %s] clear active game: %v", sessionID, err)
	}
}

// join enters the game room then requests a state snapshot. A failed
// catch-up is tolerated: the next broadcast carries the full board.
// Unacknowledged local progress is resent afterwards.
func (c *gameContext) join(ctx context.Context, ch *hub.Channel) error {
	if err := c.app.invoke(ctx, ch, "JoinGameRoom", c.session.LobbyID); err != nil {
		return fmt.Errorf("join game room %s: %w", c.session.LobbyID, err)
	}
	_, err, _ := c.catchUp.Do(c.session.ID, func() (any, error) {
		return nil, c.app.invoke(ctx, ch, "GetGameState", c.session.ID)
	})
	if err != nil {
		telemetry.Debugf("[game %s] state catch-up unavailable: %v", c.session.ID, err)
	}
	if r, ok := c.adapter.(resyncer); ok {
		c.loop.Send(r.Resync)
	}
	return nil
}

// OnGameEvent leaves the game when its lobby closes underneath it.
func (c *gameContext) OnGameEvent(s *game.Session, change string) {
	if change != game.ChangeClosed {
		return
	}
	reason := s.CloseReason
	if reason == "" {
		reason = "the lobby was closed"
	}
	c.app.Navigate(lobby.Destination{Target: lobby.ToList, Reason: "Game ended: " + reason})
}

func (c *gameContext) Name() string { return string(c.spec.Kind) }

func (c *gameContext) Exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "init", "initialize":
		return c.initialize(ctx)
	case "back", "leave", "lobbies":
		c.app.dropActiveGame(c.session.ID)
		c.app.display.Forget(c.session.ID)
		c.app.Navigate(lobby.Destination{Target: lobby.ToList})
		return nil
	}

	switch a := c.adapter.(type) {
	case *board.Adapter:
		if cmd != "drop" {
			return errUnknownCommand
		}
		if len(args) != 1 {
			return errors.New("usage: drop <column 0-6>")
		}
		col, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.New("column must be a number")
		}
		return c.do(func() error { return a.DropPiece(col) })
	case *race.Adapter:
		switch cmd {
		case "race", "go":
			return c.do(a.StartRace)
		case "type", "t":
			text := strings.Join(args, " ")
			return c.do(func() error {
				_, err := a.TypeString(withGap(a, text))
				return err
			})
		}
	}
	return errUnknownCommand
}

// withGap restores the word gap the line reader strips between two
// "type" commands.
func withGap(a *race.Adapter, text string) string {
	target := []rune(a.Text())
	if i := a.Typed(); i > 0 && i < len(target) && target[i] == ' ' && !strings.HasPrefix(text, " ") {
		return " " + text
	}
	return text
}

// initialize sends InitializeGame with the lobby's player ids. Host only;
// the adapter enforces that before anything is sent.
func (c *gameContext) initialize(ctx context.Context) error {
	if !c.session.Host {
		return game.ErrNotHost
	}
	ctx, cancel := context.WithTimeout(ctx, c.app.apiTimeout)
	defer cancel()
	detail, err := c.app.api.GetLobby(ctx, c.session.LobbyID, c.session.PlayerID)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	ids := make([]string, 0, len(detail.Players))
	for _, p := range detail.Players {
		ids = append(ids, p.ID)
	}
	return c.do(func() error { return c.adapter.InitializeGame(ids) })
}

func (c *gameContext) do(fn func() error) error {
	var err error
	if !c.loop.Do(func() { err = fn() }) {
		return game.ErrGameOver
	}
	return err
}

func (c *gameContext) Redraw() {
	c.loop.Send(func() { c.session.Notify(game.ChangeView) })
}

func (c *gameContext) Close(ctx context.Context) {
	c.cmd.Close()
	c.app.hubs.Release(ctx, c.ch, &hub.Command{Target: "LeaveGameRoom", Args: []any{c.session.LobbyID}})
	c.loop.Close()
}
