package lobby

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/charleschow/arcade-client/internal/adapters/outbound/api_http"
	"github.com/charleschow/arcade-client/internal/core/reducer"
	"github.com/charleschow/arcade-client/internal/core/session"
	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

// ChangeList is reported whenever the visible list changes.
const ChangeList = "LIST"

const membershipLookups = 4

// List is the lobby browser context. All methods run on the context loop
// except the background refetch, whose result is posted back via post.
type List struct {
	Lobbies []events.LobbySummary
	Notice  string

	api     ListAPI
	ptr     *session.Pointer
	nav     Navigator
	post    func(func())
	timeout time.Duration

	refetch   singleflight.Group
	observers []ListObserver
}

// NewList creates the list context. post schedules work on the loop.
func NewList(api ListAPI, ptr *session.Pointer, nav Navigator, post func(func()), timeout time.Duration) *List {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &List{api: api, ptr: ptr, nav: nav, post: post, timeout: timeout}
}

func (l *List) AddObserver(o ListObserver) { l.observers = append(l.observers, o) }

func (l *List) notify() {
	for _, o := range l.observers {
		o.OnListEvent(l, ChangeList)
	}
}

func (l *List) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventLobbyCreated,
		events.EventLobbyDeleted,
		events.EventLobbyClosed,
		events.EventGameStarted,
		events.EventPlayerJoined,
		events.EventPlayerLeft,
		events.EventChannelStatus,
	}
}

// Enter redirects to the active game or to a lobby the player already
// belongs to, otherwise loads the list. Returns false on redirect. With
// hold set it never redirects and only points at the pending game.
func (l *List) Enter(ctx context.Context, hold bool) (bool, error) {
	player := l.ptr.Player()
	if player == nil {
		return false, ErrNoPlayer
	}
	ag := l.ptr.ActiveGame()
	if ag != nil && !hold {
		l.nav.Navigate(toGame(ag))
		return false, nil
	}

	lobbies, err := l.fetch(ctx)
	if err != nil {
		return false, fmt.Errorf("load lobbies: %w", err)
	}
	if hold {
		if ag != nil {
			l.Notice = fmt.Sprintf("game %s is still open: resume to retry, abandon to drop it", ag.SessionID)
		}
	} else if id := l.memberOf(ctx, lobbies, player.ID); id != "" {
		telemetry.Infof("lobbies: already a member of %s, redirecting", id)
		l.nav.Navigate(Destination{Target: ToLobby, LobbyID: id})
		return false, nil
	}
	l.set(lobbies)
	return true, nil
}

// Resume navigates back to the stored active game.
func (l *List) Resume() error {
	ag := l.ptr.ActiveGame()
	if ag == nil {
		return ErrNoActiveGame
	}
	l.nav.Navigate(toGame(ag))
	return nil
}

// Abandon forgets the stored active game without contacting the server.
func (l *List) Abandon() error {
	ag := l.ptr.ActiveGame()
	if ag == nil {
		return ErrNoActiveGame
	}
	if _, err := l.ptr.ClearActiveGameForSession(ag.SessionID); err != nil {
		return fmt.Errorf("abandon game %s: %w", ag.SessionID, err)
	}
	l.Notice = ""
	l.notify()
	return nil
}

func (l *List) fetch(ctx context.Context) ([]events.LobbySummary, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.api.ListLobbies(ctx)
}

// memberOf looks up every listed lobby's roster and returns the first,
// in list order, that contains playerID. Lookup errors are skipped.
func (l *List) memberOf(ctx context.Context, lobbies []events.LobbySummary, playerID string) string {
	found := make([]bool, len(lobbies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(membershipLookups)
	for i, lb := range lobbies {
		i, lb := i, lb
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, l.timeout)
			defer cancel()
			d, err := l.api.GetLobby(cctx, lb.ID, playerID)
			if err != nil {
				telemetry.Debugf("lobbies: membership check %s: %v", lb.ID, err)
				return nil
			}
			found[i] = reducer.HasPlayer(d.Players, playerID)
			return nil
		})
	}
	_ = g.Wait()
	for i, ok := range found {
		if ok {
			return lobbies[i].ID
		}
	}
	return ""
}

func (l *List) set(lobbies []events.LobbySummary) {
	var out []events.LobbySummary
	for _, lb := range lobbies {
		out = reducer.AddLobby(out, lb)
	}
	l.Lobbies = out
	l.notify()
}

// Refetch reloads the list in the background. Concurrent requests share
// one HTTP call and the result is applied on the loop.
func (l *List) Refetch() {
	go func() {
		v, err, _ := l.refetch.Do("lobbies", func() (any, error) {
			return l.fetch(context.Background())
		})
		if err != nil {
			telemetry.Warnf("lobbies: refetch: %v", err)
			return
		}
		lobbies := v.([]events.LobbySummary)
		l.post(func() { l.set(lobbies) })
	}()
}

func (l *List) HandleEvent(e events.Event) error {
	switch p := e.Payload.(type) {
	case events.LobbyCreatedEvent:
		l.Lobbies = reducer.AddLobby(l.Lobbies, p.Lobby)
		l.notify()
	case events.LobbyDeletedEvent:
		l.remove(p.LobbyID)
	case events.LobbyClosedEvent:
		l.remove(p.LobbyID)
	case events.GameStartedEvent:
		l.remove(p.LobbyID)
	case events.PlayerJoinedEvent, events.PlayerLeftEvent:
		l.Refetch()
	case events.ChannelStatusEvent:
		if p.Connected {
			l.Notice = ""
			l.Refetch()
		} else {
			l.Notice = fmt.Sprintf("reconnecting (attempt %d)", p.Attempt)
		}
		l.notify()
	}
	return nil
}

func (l *List) remove(id string) {
	if id == "" {
		return
	}
	before := len(l.Lobbies)
	l.Lobbies = reducer.RemoveLobby(l.Lobbies, id)
	if len(l.Lobbies) != before {
		l.notify()
	}
}

// Create opens a new lobby and navigates into it. Connect 4 lobbies are
// always two seats; other games default to two when max is unset.
func (l *List) Create(ctx context.Context, kind game.Kind, maxPlayers int, password string) (string, error) {
	player := l.ptr.Player()
	if player == nil {
		return "", ErrNoPlayer
	}
	if kind == game.KindConnect4 || maxPlayers < 2 {
		maxPlayers = 2
	}
	req := api_http.CreateLobbyRequest{
		PlayerID:   player.ID,
		GameType:   kind.ServerName(),
		MaxPlayers: maxPlayers,
	}
	if password != "" {
		req.Password = &password
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	resp, err := l.api.CreateLobby(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: create lobby: %v", ErrCommandRejected, err)
	}
	l.Lobbies = reducer.AddLobby(l.Lobbies, events.LobbySummary{
		ID:             resp.LobbyID,
		GameType:       req.GameType,
		HostPseudo:     player.Pseudo,
		CurrentPlayers: 1,
		MaxPlayers:     maxPlayers,
		IsPrivate:      password != "",
	})
	l.notify()
	l.nav.Navigate(Destination{Target: ToLobby, LobbyID: resp.LobbyID})
	return resp.LobbyID, nil
}

// Join joins lobbyID and navigates into it.
func (l *List) Join(ctx context.Context, lobbyID, password string) error {
	player := l.ptr.Player()
	if player == nil {
		return ErrNoPlayer
	}
	if lobbyID == "" {
		return ErrNoLobby
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	err := l.api.JoinLobby(ctx, lobbyID, player.ID, password)
	switch {
	case err == nil, api_http.IsAlreadyMember(err):
	case api_http.IsLobbyFull(err):
		return fmt.Errorf("join %s: %w", lobbyID, ErrLobbyFull)
	case api_http.IsPasswordRequired(err):
		return fmt.Errorf("join %s: %w", lobbyID, ErrPasswordRequired)
	default:
		return fmt.Errorf("%w: join %s: %v", ErrCommandRejected, lobbyID, err)
	}
	l.nav.Navigate(Destination{Target: ToLobby, LobbyID: lobbyID})
	return nil
}
