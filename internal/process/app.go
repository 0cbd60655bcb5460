package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/charleschow/arcade-client/internal/adapters/inbound/hub"
	"github.com/charleschow/arcade-client/internal/adapters/outbound/api_http"
	"github.com/charleschow/arcade-client/internal/config"
	"github.com/charleschow/arcade-client/internal/core/display"
	"github.com/charleschow/arcade-client/internal/core/lobby"
	"github.com/charleschow/arcade-client/internal/core/session"
	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

const navQueueSize = 16

var errUnknownCommand = errors.New("unknown command")

var _ API = (*api_http.Client)(nil)

// API is the REST surface the process drives. Satisfied by *api_http.Client.
type API interface {
	lobby.DetailAPI
	lobby.ListAPI
	ScoreAPI
	Leaderboard(ctx context.Context, gameType string, top int, playerID string) (api_http.LeaderboardResponse, error)
	GameSessions(ctx context.Context, gameType string, limit int) ([]api_http.GameSessionSummary, error)
	GameHistory(ctx context.Context, sessionID string) (api_http.GameHistory, error)
}

// Deps wires an App to its collaborators.
type Deps struct {
	API      API
	Hubs     *hub.Manager
	Pointer  *session.Pointer
	Aliases  config.ProtocolAliases
	Registry *Registry
	Clock    clockwork.Clock
	Out      io.Writer

	APITimeout     time.Duration
	CommandTimeout time.Duration
}

// screen is one live context: the lobby list, a lobby, or a game.
// Exec runs on the App goroutine; state changes go through the
// context's loop.
type screen interface {
	Name() string
	Exec(ctx context.Context, cmd string, args []string) error
	Redraw()
	Close(ctx context.Context)
}

// App owns the single live context and moves between contexts on
// navigation requests.
type App struct {
	api      API
	hubs     *hub.Manager
	ptr      *session.Pointer
	aliases  config.ProtocolAliases
	registry *Registry
	clock    clockwork.Clock
	out      io.Writer

	apiTimeout     time.Duration
	commandTimeout time.Duration

	display *display.Observer
	scores  *ScoreReporter

	nav     chan lobby.Destination
	current screen
	// failed is the list entry to repeat on retry while nothing is open.
	failed *lobby.Destination
}

func NewApp(d Deps) *App {
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Registry == nil {
		d.Registry = DefaultRegistry()
	}
	if d.Aliases.Hubs == nil {
		d.Aliases = hub.DefaultAliases()
	}
	if d.APITimeout <= 0 {
		d.APITimeout = 10 * time.Second
	}
	if d.CommandTimeout <= 0 {
		d.CommandTimeout = 10 * time.Second
	}
	return &App{
		api:            d.API,
		hubs:           d.Hubs,
		ptr:            d.Pointer,
		aliases:        d.Aliases,
		registry:       d.Registry,
		clock:          d.Clock,
		out:            d.Out,
		apiTimeout:     d.APITimeout,
		commandTimeout: d.CommandTimeout,
		display:        display.NewObserver(d.Out, nil, d.Clock),
		scores:         NewScoreReporter(d.API, d.APITimeout),
		nav:            make(chan lobby.Destination, navQueueSize),
	}
}

// Navigate implements lobby.Navigator. Safe from any goroutine.
func (a *App) Navigate(d lobby.Destination) {
	select {
	case a.nav <- d:
	default:
		telemetry.Warnf("[nav] queue full, dropping %s", d.Target)
	}
}

// Run drives the App until ctx ends, lines closes, or the user quits.
// It resumes the persisted active game if there is one.
func (a *App) Run(ctx context.Context, lines <-chan string) error {
	if a.ptr.Player() == nil {
		return lobby.ErrNoPlayer
	}
	defer a.shutdown()

	if ag := a.ptr.ActiveGame(); ag != nil {
		telemetry.Infof("[nav] resuming %s game %s", ag.GameType, ag.SessionID)
		a.Navigate(lobby.Destination{Target: lobby.ToGame, LobbyID: ag.LobbyID, Game: ag})
	} else {
		a.Navigate(lobby.Destination{Target: lobby.ToList})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-a.nav:
			a.switchTo(ctx, d)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := a.exec(ctx, line); quit {
				return nil
			}
		}
	}
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.current != nil {
		a.current.Close(ctx)
		a.current = nil
	}
	a.hubs.CloseAll(ctx)
	a.scores.Wait()
}

func (a *App) switchTo(ctx context.Context, d lobby.Destination) {
	if a.current != nil {
		a.current.Close(ctx)
		a.current = nil
	}
	if d.Reason != "" {
		fmt.Fprintf(a.out, "\n  ! %s\n", d.Reason)
	}

	var (
		s   screen
		err error
	)
	a.failed = nil
	switch d.Target {
	case lobby.ToList:
		s, err = a.openList(ctx, d.Hold)
	case lobby.ToLobby:
		s, err = a.openLobby(ctx, d.LobbyID)
	case lobby.ToGame:
		s, err = a.openGame(ctx, d.Game)
	}
	if err != nil {
		telemetry.Warnf("[nav] %s: %v", d.Target, err)
		if d.Target != lobby.ToList {
			// Hold stops the list from sending us straight back here.
			a.Navigate(lobby.Destination{Target: lobby.ToList, Reason: err.Error(), Hold: true})
			return
		}
		d.Reason = ""
		a.failed = &d
		fmt.Fprintf(a.out, "\n  ! %v\n  type retry to reload the lobby list\n", err)
		return
	}
	// nil means the context redirected during entry.
	a.current = s
}

func (a *App) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit":
		return true
	case "help", "?":
		a.printHelp()
		return false
	case "whoami":
		if p := a.ptr.Player(); p != nil {
			fmt.Fprintf(a.out, "  %s (%s)\n", p.Pseudo, p.ID)
		}
		return false
	case "leaderboard", "top":
		a.report(a.leaderboard(ctx, args))
		return false
	case "sessions":
		a.report(a.sessions(ctx, args))
		return false
	case "history":
		a.report(a.history(ctx, args))
		return false
	case "show", "view", "board":
		if a.current != nil {
			a.current.Redraw()
		}
		return false
	}

	if a.current == nil {
		if a.failed != nil && (cmd == "retry" || cmd == "refresh" || cmd == "lobbies") {
			a.Navigate(*a.failed)
			return false
		}
		a.report(fmt.Errorf("%s: nothing open yet (try retry)", cmd))
		return false
	}
	err := a.current.Exec(ctx, cmd, args)
	if errors.Is(err, errUnknownCommand) {
		err = fmt.Errorf("%s: not available in %s (try help)", cmd, a.current.Name())
	}
	a.report(err)
	return false
}

func (a *App) report(err error) {
	if err != nil {
		fmt.Fprintf(a.out, "  x %v\n", err)
	}
}

func (a *App) leaderboard(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: leaderboard <game>")
	}
	kind, err := game.ParseKind(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, a.apiTimeout)
	defer cancel()
	lb, err := a.api.Leaderboard(ctx, kind.ServerName(), 10, a.ptr.Player().ID)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}
	display.PrintLeaderboard(a.out, lb)
	return nil
}

const sessionsShown = 20

func (a *App) sessions(ctx context.Context, args []string) error {
	gameType := ""
	if len(args) > 0 {
		kind, err := game.ParseKind(args[0])
		if err != nil {
			return err
		}
		gameType = kind.ServerName()
	}
	ctx, cancel := context.WithTimeout(ctx, a.apiTimeout)
	defer cancel()
	list, err := a.api.GameSessions(ctx, gameType, sessionsShown)
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	display.PrintSessions(a.out, list)
	return nil
}

func (a *App) history(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: history <session id>")
	}
	ctx, cancel := context.WithTimeout(ctx, a.apiTimeout)
	defer cancel()
	h, err := a.api.GameHistory(ctx, args[0])
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	display.PrintHistory(a.out, h)
	return nil
}

func (a *App) printHelp() {
	fmt.Fprint(a.out, `
  lobbies:  create <connect4|speedtyping> [max] [password] | join <id> [password] | refresh
            resume | abandon   (after a game failed to open)
  lobby:    start | leave | delete | refresh
  connect4: init | drop <0-6> | back
  race:     init | race | type <text> | back
  any:      board | leaderboard <game> | whoami | retry | help | quit
            sessions [game] | history <session id>
`)
}

// openChannel dials path with every event routed through loop onto bus.
func (a *App) openChannel(ctx context.Context, path string, room events.Room, loop *game.Loop, bus *events.Bus, onReconnect func(*hub.Channel)) (*hub.Channel, error) {
	dec := hub.NewDecoder(room, a.aliases)
	return a.hubs.Open(ctx, path, loop.Dispatch(), func(ch *hub.Channel) {
		hub.Bind(ch, dec, bus)
		if onReconnect != nil {
			ch.OnReconnected(func() { onReconnect(ch) })
		}
	})
}

// invoke runs a room command bounded by the command timeout.
func (a *App) invoke(ctx context.Context, ch *hub.Channel, target string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, a.commandTimeout)
	defer cancel()
	_, err := ch.Invoke(ctx, target, args...)
	return err
}
