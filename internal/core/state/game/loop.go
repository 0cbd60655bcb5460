package game

import (
	"sync"

	"github.com/charleschow/arcade-client/internal/telemetry"
)

const defaultInboxSize = 256

// Loop is the single goroutine that owns one context's state.
//
// Channel handlers, reconnect hooks, command completions and user input
// all reach state by sending a closure via Send. The closures run one at
// a time on the loop goroutine, so nothing they touch needs a mutex.
type Loop struct {
	name string

	mu     sync.RWMutex
	closed bool

	inbox chan func()
	stop  chan struct{}
}

// NewLoop starts a loop. size <= 0 uses the default inbox capacity.
func NewLoop(name string, size int) *Loop {
	if size <= 0 {
		size = defaultInboxSize
	}
	l := &Loop{
		name:  name,
		inbox: make(chan func(), size),
		stop:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) Name() string { return l.name }

func (l *Loop) run() {
	defer close(l.stop)
	for fn := range l.inbox {
		fn()
	}
}

// Send enqueues a closure to run on the loop goroutine. Work is never
// dropped: when the inbox is full Send waits for room, which holds back
// the transport read loop until the context catches up. Sends after Close
// are discarded. Must not be called from the loop goroutine.
func (l *Loop) Send(fn func()) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.inbox <- fn:
		return
	default:
	}
	telemetry.Metrics.InboxStalls.Inc()
	telemetry.Debugf("loop %s: inbox full (cap=%d), waiting", l.name, cap(l.inbox))
	l.inbox <- fn
}

// Do runs fn on the loop and waits for it to finish. Unlike Send it blocks
// while the inbox is full. Returns false if the loop is already closed.
// Must not be called from the loop goroutine.
func (l *Loop) Do(fn func()) bool {
	done := make(chan struct{})
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return false
	}
	l.inbox <- func() {
		defer close(done)
		fn()
	}
	l.mu.RUnlock()
	<-done
	return true
}

// Dispatch adapts the loop to the hub channel's Dispatch option.
func (l *Loop) Dispatch() func(func()) { return l.Send }

// Close stops accepting work, drains what is queued and waits for the
// goroutine to exit. Safe to call more than once; never from the loop itself.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.stop
		return
	}
	l.closed = true
	close(l.inbox)
	l.mu.Unlock()
	<-l.stop
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} { return l.stop }
