package process

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charleschow/arcade-client/internal/adapters/inbound/hub"
	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

const commandQueueSize = 64

var ErrCommandQueueFull = errors.New("command queue full")

var _ game.Commander = (*ChannelCommander)(nil)

// Invoker is satisfied by *hub.Channel.
type Invoker interface {
	Invoke(ctx context.Context, target string, args ...any) (json.RawMessage, error)
}

type command struct {
	target string
	args   []any
	done   func(error)
}

// ChannelCommander sends game commands one at a time from a single worker,
// so the server sees them in submission order. Verdicts are posted back
// through post, which is the owning context's loop.
type ChannelCommander struct {
	post    func(func())
	timeout time.Duration

	mu  sync.RWMutex
	inv Invoker

	queue chan command
	stop  chan struct{}
	once  sync.Once
}

func NewChannelCommander(post func(func()), timeout time.Duration) *ChannelCommander {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &ChannelCommander{
		post:    post,
		timeout: timeout,
		queue:   make(chan command, commandQueueSize),
		stop:    make(chan struct{}),
	}
	go c.run()
	return c
}

// Attach sets the channel commands go to. Commands submitted before Attach
// fail with hub.ErrNotConnected.
func (c *ChannelCommander) Attach(inv Invoker) {
	c.mu.Lock()
	c.inv = inv
	c.mu.Unlock()
}

func (c *ChannelCommander) invoker() Invoker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inv
}

// Submit never blocks. A full queue is reported through done.
func (c *ChannelCommander) Submit(target string, args []any, done func(error)) {
	select {
	case <-c.stop:
		return
	default:
	}
	select {
	case c.queue <- command{target: target, args: args, done: done}:
	default:
		telemetry.Warnf("[cmd] queue full, dropping %s", target)
		c.reply(done, ErrCommandQueueFull)
	}
}

func (c *ChannelCommander) run() {
	for {
		select {
		case <-c.stop:
			return
		case cmd := <-c.queue:
			c.reply(cmd.done, c.send(cmd))
		}
	}
}

func (c *ChannelCommander) send(cmd command) error {
	inv := c.invoker()
	if inv == nil {
		return hub.ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	_, err := inv.Invoke(ctx, cmd.target, cmd.args...)
	if err != nil {
		telemetry.Debugf("[cmd] %s: %v", cmd.target, err)
	}
	return err
}

func (c *ChannelCommander) reply(done func(error), err error) {
	if done == nil {
		return
	}
	c.post(func() { done(err) })
}

// Close stops the worker. Queued commands are dropped without a verdict.
func (c *ChannelCommander) Close() {
	c.once.Do(func() { close(c.stop) })
}
