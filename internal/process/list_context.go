package process

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/charleschow/arcade-client/internal/adapters/inbound/hub"
	"github.com/charleschow/arcade-client/internal/core/lobby"
	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

const lobbyHubPath = "/lobbyhub"

type listContext struct {
	app  *App
	loop *game.Loop
	list *lobby.List
	ch   *hub.Channel
}

// openList shows the lobby browser. hold keeps it from following the
// active game or a membership; see lobby.Destination.
func (a *App) openList(ctx context.Context, hold bool) (screen, error) {
	loop := game.NewLoop("lobbies", 0)
	bus := events.NewBus()
	list := lobby.NewList(a.api, a.ptr, a, loop.Send, a.apiTimeout)
	list.AddObserver(a.display)
	bus.SubscribeMany(list.HandleEvent, list.EventTypes()...)

	var (
		loaded bool
		err    error
	)
	loop.Do(func() { loaded, err = list.Enter(ctx, hold) })
	if err != nil || !loaded {
		loop.Close()
		return nil, err
	}

	c := &listContext{app: a, loop: loop, list: list}

	// The list works without live updates; a dead hub is only a notice.
	ch, err := a.openChannel(ctx, lobbyHubPath, events.RoomLobby, loop, bus, func(ch *hub.Channel) {
		go c.subscribe(ctx, ch)
	})
	if err != nil {
		telemetry.Warnf("[lobbies] live updates unavailable: %v", err)
		loop.Send(func() {
			list.Notice = "live updates unavailable, use refresh"
			a.display.OnListEvent(list, lobby.ChangeList)
		})
		return c, nil
	}
	c.ch = ch
	c.subscribe(ctx, ch)
	return c, nil
}

// subscribe (re)joins the list group. A refetch follows so that changes
// missed while unsubscribed are picked up.
func (c *listContext) subscribe(ctx context.Context, ch *hub.Channel) {
	if err := c.app.invoke(ctx, ch, "SubscribeToLobbyList"); err != nil {
		telemetry.Warnf("[lobbies] subscribe: %v", err)
		return
	}
	c.loop.Send(c.list.Refetch)
}

func (c *listContext) Name() string { return "lobbies" }

func (c *listContext) Exec(ctx context.Context, cmd string, args []string) error {
	var err error
	switch cmd {
	case "create", "new":
		if len(args) == 0 {
			return errors.New("usage: create <game> [max] [password]")
		}
		kind, perr := game.ParseKind(args[0])
		if perr != nil {
			return perr
		}
		maxPlayers := 0
		password := ""
		if len(args) > 1 {
			if maxPlayers, perr = strconv.Atoi(args[1]); perr != nil {
				return errors.New("max players must be a number")
			}
		}
		if len(args) > 2 {
			password = strings.Join(args[2:], " ")
		}
		c.loop.Do(func() { _, err = c.list.Create(ctx, kind, maxPlayers, password) })
	case "join":
		if len(args) == 0 {
			return errors.New("usage: join <lobby id> [password]")
		}
		password := strings.Join(args[1:], " ")
		c.loop.Do(func() { err = c.list.Join(ctx, args[0], password) })
	case "refresh", "ls":
		c.loop.Send(c.list.Refetch)
	case "resume", "retry":
		c.loop.Do(func() { err = c.list.Resume() })
	case "abandon":
		c.loop.Do(func() { err = c.list.Abandon() })
	default:
		return errUnknownCommand
	}
	return err
}

func (c *listContext) Redraw() {
	c.loop.Send(func() { c.app.display.OnListEvent(c.list, lobby.ChangeList) })
}

func (c *listContext) Close(ctx context.Context) {
	c.app.hubs.Release(ctx, c.ch, &hub.Command{Target: "UnsubscribeFromLobbyList"})
	c.loop.Close()
}
