package display

import (
	"sync"
	"time"

	"github.com/charleschow/arcade-client/internal/core/state/game"
)

// State holds per-session display flags. Each *State is accessed only from
// the session's loop goroutine, so its fields need no synchronization.
type State struct {
	Seen         bool
	Phase        game.Phase
	Connected    bool
	Finaled      bool
	LastProgress time.Time
}

// Tracker maps session ids to their display state. The map itself is
// mutex-protected; once a *State is returned it is loop-local.
type Tracker struct {
	mu     sync.Mutex
	states map[string]*State
}

func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[string]*State),
	}
}

// Get returns the display state for a session, creating one if it
// does not yet exist.
func (t *Tracker) Get(sessionID string) *State {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[sessionID]
	if !ok {
		s = &State{}
		t.states[sessionID] = s
	}
	return s
}

// Forget drops a finished session's state.
func (t *Tracker) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, sessionID)
}
