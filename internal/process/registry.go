package process

import (
	"github.com/jonboulle/clockwork"

	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/core/state/game/board"
	"github.com/charleschow/arcade-client/internal/core/state/game/race"
	"github.com/charleschow/arcade-client/internal/events"
)

// Adapter is what a game context drives. Both game adapters satisfy it.
type Adapter interface {
	game.GameState
	InitializeGame(playerIDs []string) error
}

// Env carries the process-wide collaborators a game adapter may need.
type Env struct {
	Clock  clockwork.Clock
	Scores race.ScoreRecorder
}

// GameSpec describes how to host one game type.
type GameSpec struct {
	Kind    game.Kind
	HubPath string
	Room    events.Room
	// Countdown enables the countdown phase for the session.
	Countdown bool
	New       func(s *game.Session, cmd game.Commander, env Env) Adapter
}

// Registry maps game kind -> spec.
type Registry struct {
	specs map[game.Kind]GameSpec
}

func NewRegistry() *Registry {
	return &Registry{
		specs: make(map[game.Kind]GameSpec),
	}
}

func (r *Registry) Register(spec GameSpec) {
	r.specs[spec.Kind] = spec
}

func (r *Registry) Get(kind game.Kind) (GameSpec, bool) {
	s, ok := r.specs[kind]
	return s, ok
}

// DefaultRegistry knows the two game types the server hosts.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(GameSpec{
		Kind:    game.KindConnect4,
		HubPath: "/connect4hub",
		Room:    events.RoomConnect4,
		New: func(s *game.Session, cmd game.Commander, _ Env) Adapter {
			return board.New(s, cmd)
		},
	})
	r.Register(GameSpec{
		Kind:      game.KindSpeedTyping,
		HubPath:   "/speedtypinghub",
		Room:      events.RoomSpeedTyping,
		Countdown: true,
		New: func(s *game.Session, cmd game.Commander, env Env) Adapter {
			return race.New(s, cmd, env.Clock, env.Scores)
		},
	})
	return r
}
