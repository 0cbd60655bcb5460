package process

import (
	"context"
	"fmt"

	"github.com/charleschow/arcade-client/internal/adapters/inbound/hub"
	"github.com/charleschow/arcade-client/internal/core/lobby"
	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

type lobbyContext struct {
	app    *App
	loop   *game.Loop
	detail *lobby.Detail
	ch     *hub.Channel
}

// openLobby joins the lobby's hub group before loading it over REST, so a
// GameStarted sent while the roster is loading is not missed.
func (a *App) openLobby(ctx context.Context, lobbyID string) (screen, error) {
	if lobbyID == "" {
		return nil, lobby.ErrNoLobby
	}
	loop := game.NewLoop("lobby "+lobbyID, 0)
	bus := events.NewBus()
	detail := lobby.NewDetail(lobbyID, a.api, a.ptr, a, a.apiTimeout)
	detail.AddObserver(a.display)
	bus.SubscribeMany(detail.HandleEvent, detail.EventTypes()...)

	c := &lobbyContext{app: a, loop: loop, detail: detail}

	ch, err := a.openChannel(ctx, lobbyHubPath, events.RoomLobby, loop, bus, func(ch *hub.Channel) {
		go c.rejoin(ctx, ch)
	})
	if err != nil {
		loop.Close()
		return nil, fmt.Errorf("lobby %s: %w", lobbyID, err)
	}
	c.ch = ch
	if err := a.invoke(ctx, ch, "JoinLobbyGroup", lobbyID); err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("join lobby group %s: %w", lobbyID, err)
	}

	var joined bool
	loop.Do(func() { joined, err = detail.Enter(ctx, "") })
	if err != nil || !joined {
		c.Close(ctx)
		return nil, err
	}
	return c, nil
}

// rejoin restores group membership after a reconnect and reloads the
// roster, since membership changes during the gap were not delivered.
func (c *lobbyContext) rejoin(ctx context.Context, ch *hub.Channel) {
	if err := c.app.invoke(ctx, ch, "JoinLobbyGroup", c.detail.LobbyID); err != nil {
		telemetry.Warnf("[lobby %s] rejoin: %v", c.detail.LobbyID, err)
		return
	}
	c.loop.Send(func() {
		if err := c.detail.Refresh(ctx); err != nil {
			telemetry.Warnf("[lobby %s] refresh: %v", c.detail.LobbyID, err)
		}
	})
}

func (c *lobbyContext) Name() string { return "lobby" }

func (c *lobbyContext) Exec(ctx context.Context, cmd string, _ []string) error {
	var err error
	switch cmd {
	case "start":
		c.loop.Do(func() { err = c.detail.StartGame(ctx) })
	case "leave":
		c.loop.Do(func() { err = c.detail.Leave(ctx) })
	case "delete":
		c.loop.Do(func() { err = c.detail.Delete(ctx) })
	case "refresh":
		c.loop.Do(func() { err = c.detail.Refresh(ctx) })
	default:
		return errUnknownCommand
	}
	return err
}

func (c *lobbyContext) Redraw() {
	c.loop.Send(func() { c.app.display.OnLobbyEvent(c.detail, lobby.ChangeRoster) })
}

func (c *lobbyContext) Close(ctx context.Context) {
	c.app.hubs.Release(ctx, c.ch, &hub.Command{Target: "LeaveLobbyGroup", Args: []any{c.detail.LobbyID}})
	c.loop.Close()
}
