package display

import (
	"io"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/charleschow/arcade-client/internal/core/lobby"
	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/core/state/game/race"
)

const progressDisplayThrottle = 500 * time.Millisecond

// Displayer knows how to format and print game state for a given change.
type Displayer interface {
	DisplayGame(w io.Writer, s *game.Session, change string)
}

// DisplayerFunc adapts a print function to Displayer.
type DisplayerFunc func(w io.Writer, s *game.Session, change string)

func (f DisplayerFunc) DisplayGame(w io.Writer, s *game.Session, change string) { f(w, s, change) }

// Lookup returns the printer for each built-in game.
func Lookup(k game.Kind) (Displayer, bool) {
	switch k {
	case game.KindConnect4:
		return DisplayerFunc(PrintBoard), true
	case game.KindSpeedTyping:
		return DisplayerFunc(PrintRace), true
	}
	return nil, false
}

// Observer implements game.Observer, lobby.DetailObserver and
// lobby.ListObserver. It delegates game formatting to the per-game
// Displayer and throttles race PROGRESS prints.
type Observer struct {
	w       io.Writer
	lookup  func(game.Kind) (Displayer, bool)
	clock   clockwork.Clock
	tracker *Tracker
}

// NewObserver creates an Observer writing to w (stdout when nil).
// lookup defaults to Lookup.
func NewObserver(w io.Writer, lookup func(game.Kind) (Displayer, bool), clock clockwork.Clock) *Observer {
	if w == nil {
		w = os.Stdout
	}
	if lookup == nil {
		lookup = Lookup
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Observer{w: w, lookup: lookup, clock: clock, tracker: NewTracker()}
}

func (o *Observer) OnGameEvent(s *game.Session, change string) {
	disp, ok := o.lookup(s.Kind)
	if !ok {
		return
	}
	st := o.tracker.Get(s.ID)
	if change == game.ChangeView {
		disp.DisplayGame(o.w, s, change)
		return
	}

	switch change {
	case race.ChangeProgress:
		now := o.clock.Now()
		if now.Sub(st.LastProgress) < progressDisplayThrottle {
			return
		}
		st.LastProgress = now
	case game.ChangePhase:
		if st.Phase == s.Phase() {
			return
		}
		st.Phase = s.Phase()
	case game.ChangeConnection:
		if st.Connected == s.Connected && st.Seen {
			return
		}
		st.Connected = s.Connected
	}
	st.Seen = true
	if s.Terminal() {
		if st.Finaled {
			return
		}
		st.Finaled = true
	}
	disp.DisplayGame(o.w, s, change)
}

func (o *Observer) OnLobbyEvent(d *lobby.Detail, change string) {
	PrintLobby(o.w, d, change)
}

func (o *Observer) OnListEvent(l *lobby.List, _ string) {
	PrintList(o.w, l)
}

// Forget drops display state for a session that has been left.
func (o *Observer) Forget(sessionID string) { o.tracker.Forget(sessionID) }
