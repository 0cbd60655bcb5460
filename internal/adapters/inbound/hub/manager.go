package hub

import (
	"context"
	"sync"

	"github.com/charleschow/arcade-client/internal/telemetry"
)

// Manager owns at most one open Channel per hub path.
//
// The mutex protects the map only. Each Channel serialises its own
// delivery through the dispatcher it was opened with.
type Manager struct {
	baseURL string
	opts    Options

	mu       sync.Mutex
	channels map[string]*Channel
}

func NewManager(baseURL string, opts Options) *Manager {
	return &Manager{
		baseURL:  baseURL,
		opts:     opts,
		channels: make(map[string]*Channel),
	}
}

// Open dials a channel for path. setup runs before the first frame is read,
// so handlers registered there never miss an event. An already-open
// channel on the same path is closed first.
func (m *Manager) Open(ctx context.Context, path string, dispatch func(func()), setup func(*Channel)) (*Channel, error) {
	m.mu.Lock()
	prev := m.channels[path]
	delete(m.channels, path)
	m.mu.Unlock()
	if prev != nil {
		telemetry.Warnf("[hub %s] replacing open channel", path)
		prev.Close(ctx, nil)
	}

	opts := m.opts
	opts.Dispatch = dispatch
	ch := NewChannel(m.baseURL, path, opts)
	if setup != nil {
		setup(ch)
	}
	if err := ch.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.channels[path] = ch
	m.mu.Unlock()
	return ch, nil
}

func (m *Manager) Get(path string) (*Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[path]
	return ch, ok
}

// Release sends leave best-effort, closes ch and forgets it.
func (m *Manager) Release(ctx context.Context, ch *Channel, leave *Command) {
	if ch == nil {
		return
	}
	m.mu.Lock()
	if m.channels[ch.Path()] == ch {
		delete(m.channels, ch.Path())
	}
	m.mu.Unlock()
	ch.Close(ctx, leave)
}

func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		all = append(all, ch)
	}
	m.channels = make(map[string]*Channel)
	m.mu.Unlock()

	for _, ch := range all {
		ch.Close(ctx, nil)
	}
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}
