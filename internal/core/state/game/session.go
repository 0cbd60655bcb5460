package game

import (
	"fmt"
	"strings"

	"github.com/charleschow/arcade-client/internal/core/session"
	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

// Change names passed to observers. Adapters add their own.
const (
	ChangePhase      = "PHASE"
	ChangeRejected   = "REJECTED"
	ChangeClosed     = "CLOSED"
	ChangeConnection = "CONNECTION"
	// ChangeView is a redraw request from the user, not a state change.
	ChangeView = "VIEW"
)

// Observer receives notifications when session state changes.
// Implementations run on the loop goroutine and may read the session directly.
type Observer interface {
	OnGameEvent(s *Session, change string)
}

// GameState is implemented by each game adapter.
type GameState interface {
	Kind() Kind
	// EventTypes lists the bus events the adapter consumes.
	EventTypes() []events.EventType
	HandleEvent(e events.Event) error
}

// Commander submits a hub invocation without blocking the loop.
// done runs on the loop with the server's verdict.
type Commander interface {
	Submit(target string, args []any, done func(error))
}

// Config identifies a session when it is created.
type Config struct {
	ID       string
	LobbyID  string
	PlayerID string
	Kind     Kind
	Host     bool
	// Countdown enables PhaseCountdown between Initialized and Active.
	Countdown bool
}

// Session is the single source of truth for one live game.
// Every field is owned by the context loop.
type Session struct {
	ID       string
	LobbyID  string
	PlayerID string
	Kind     Kind
	Host     bool

	// Game-specific state, set by the adapter that owns this session.
	Game GameState

	// LastError is the most recent surfaced rejection or server error.
	LastError string

	// Connected mirrors the hub channel; Attempt counts reconnect tries.
	Connected bool
	Attempt   int

	// Aborted is set when the lobby closed under the game.
	Aborted     bool
	CloseReason string

	phase     Phase
	countdown bool
	pointer   *session.Pointer
	observers []Observer
}

func NewSession(cfg Config, ptr *session.Pointer) *Session {
	return &Session{
		ID:        cfg.ID,
		LobbyID:   cfg.LobbyID,
		PlayerID:  cfg.PlayerID,
		Kind:      cfg.Kind,
		Host:      cfg.Host,
		Connected: true,
		countdown: cfg.Countdown,
		pointer:   ptr,
	}
}

func (s *Session) Phase() Phase   { return s.phase }
func (s *Session) Terminal() bool { return s.phase == PhaseTerminal }

// AddObserver registers an observer. Must be called before events flow.
func (s *Session) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Notify calls all registered observers with the given change.
func (s *Session) Notify(change string) {
	for _, o := range s.observers {
		o.OnGameEvent(s, change)
	}
}

// Advance moves the session forward. Moving to the current phase is a
// no-op; moving backwards, out of Terminal or through a phase this game
// does not have returns ErrIllegalTransition.
func (s *Session) Advance(to Phase) error {
	if to == s.phase {
		return nil
	}
	if to == PhaseTerminal {
		s.Terminate()
		s.Notify(ChangePhase)
		return nil
	}
	if !s.legal(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.phase, to)
	}
	s.phase = to
	s.Notify(ChangePhase)
	return nil
}

func (s *Session) legal(to Phase) bool {
	switch to {
	case PhaseInitialized:
		return s.phase == PhaseUninitialized
	case PhaseCountdown:
		return s.countdown && s.phase == PhaseInitialized
	case PhaseActive:
		return s.phase == PhaseInitialized || s.phase == PhaseCountdown
	}
	return false
}

// Terminate moves the session to Terminal once. It clears the durable
// active game if it still points at this session and drops the host flag.
// Returns false if the session was already terminal. Observers are not
// notified; the caller knows which change to report.
func (s *Session) Terminate() bool {
	if s.phase == PhaseTerminal {
		return false
	}
	s.phase = PhaseTerminal
	if s.pointer == nil {
		return true
	}
	if _, err := s.pointer.ClearActiveGameForSession(s.ID); err != nil {
		telemetry.Warnf("session %s: clear active game: %v", s.ID, err)
	}
	if err := s.pointer.ReleaseSession(s.ID); err != nil {
		telemetry.Warnf("session %s: release host flag: %v", s.ID, err)
	}
	return true
}

// Abort ends the session because its lobby closed. An empty lobbyID means
// "the lobby of this room". Foreign lobby ids are ignored.
func (s *Session) Abort(lobbyID, reason string) bool {
	if lobbyID != "" && !strings.EqualFold(lobbyID, s.LobbyID) {
		telemetry.Debugf("session %s: ignoring close for foreign lobby %s", s.ID, lobbyID)
		return false
	}
	if s.Terminal() {
		return false
	}
	if s.pointer != nil {
		if _, err := s.pointer.ClearActiveGameForLobby(s.LobbyID); err != nil {
			telemetry.Warnf("session %s: clear active game: %v", s.ID, err)
		}
	}
	s.Aborted = true
	s.CloseReason = reason
	s.Terminate()
	s.Notify(ChangeClosed)
	return true
}

// Reject surfaces a server rejection, unless the session is already over:
// late rejections after a terminal event are counted and dropped.
func (s *Session) Reject(msg string) {
	if s.Terminal() {
		telemetry.Metrics.SuppressedRejections.Inc()
		telemetry.Debugf("session %s: suppressed late rejection: %s", s.ID, msg)
		return
	}
	s.LastError = msg
	s.Notify(ChangeRejected)
}

// CommandDone returns a completion callback for target that routes
// failures through Reject.
func (s *Session) CommandDone(target string) func(error) {
	return func(err error) {
		if err == nil {
			return
		}
		s.Reject(fmt.Sprintf("%s: %v", target, err))
	}
}

// HandleShared applies the events every game hub sends. Returns false for
// events the caller must handle itself.
func (s *Session) HandleShared(e events.Event) bool {
	switch p := e.Payload.(type) {
	case events.InvalidMoveEvent:
		s.Reject(p.Reason)
	case events.GameErrorEvent:
		s.Reject(p.Message)
	case events.LobbyClosedEvent:
		s.Abort(p.LobbyID, p.Reason)
	case events.LobbyDeletedEvent:
		s.Abort(p.LobbyID, p.Reason)
	case events.ChannelStatusEvent:
		s.Connected = p.Connected
		s.Attempt = p.Attempt
		s.Notify(ChangeConnection)
	default:
		return false
	}
	return true
}

// SharedEventTypes are the events HandleShared consumes.
func SharedEventTypes() []events.EventType {
	return []events.EventType{
		events.EventInvalidMove,
		events.EventGameError,
		events.EventLobbyClosed,
		events.EventLobbyDeleted,
		events.EventChannelStatus,
	}
}
