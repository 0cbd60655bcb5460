package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/charleschow/arcade-client/internal/telemetry"
)

const (
	defaultMinBackoff = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second

	// The server pings every 15s; two missed pings drop the connection.
	readTimeout       = 30 * time.Second
	keepAliveInterval = 15 * time.Second
	writeDeadline     = 5 * time.Second
	handshakeTimeout  = 10 * time.Second
	leaveTimeout      = 3 * time.Second
	stableAfter       = time.Minute
)

var (
	ErrNotConnected   = errors.New("hub: not connected")
	ErrConnectionLost = errors.New("hub: connection lost")
	ErrClosed         = errors.New("hub: channel closed")
)

// InvocationError is a command the server received and rejected.
type InvocationError struct {
	Target  string
	Message string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Target, e.Message)
}

// Handler receives the raw arguments of one server event.
type Handler func(args []json.RawMessage)

// Command is a hub method call with its arguments.
type Command struct {
	Target string
	Args   []any
}

type Options struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Clock      clockwork.Clock
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Journal    *Journal

	// Dispatch runs handler and hook callbacks. Contexts pass their loop's
	// Send so everything a channel delivers is serialised with user input.
	Dispatch func(func())
}

func (o Options) withDefaults() Options {
	if o.MinBackoff <= 0 {
		o.MinBackoff = defaultMinBackoff
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = defaultMaxBackoff
		if o.MaxBackoff < o.MinBackoff {
			o.MaxBackoff = o.MinBackoff
		}
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.Dispatch == nil {
		o.Dispatch = func(fn func()) { fn() }
	}
	return o
}

type completion struct {
	result json.RawMessage
	err    error
}

// Channel is one logical real-time connection to a hub path. It owns the
// socket, reconnects on failure and routes server events to handlers.
//
// Gorilla/websocket supports one concurrent reader and one concurrent
// writer, so all writes are serialized through writeMu.
type Channel struct {
	id      string
	baseURL string
	path    string
	opts    Options

	mu             sync.Mutex
	conn           *websocket.Conn
	handlers       map[string][]Handler
	pending        map[string]chan completion
	nextID         int64
	reconnectHooks []func()
	statusHooks    []func(connected bool, attempt int)
	started        bool

	writeMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	closed    chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

func NewChannel(baseURL, path string, opts Options) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		id:       uuid.NewString()[:8],
		baseURL:  baseURL,
		path:     path,
		opts:     opts.withDefaults(),
		handlers: make(map[string][]Handler),
		pending:  make(map[string]chan completion),
		ctx:      ctx,
		cancel:   cancel,
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *Channel) Path() string { return c.path }

// On registers h for server event name. Several handlers may share a name;
// they run in registration order. Names match case-insensitively.
func (c *Channel) On(name string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(name)
	c.handlers[key] = append(c.handlers[key], h)
}

// OnReconnected registers fn to run after every automatic reconnect. The
// channel does not replay missed events; callers re-join and catch up.
func (c *Channel) OnReconnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectHooks = append(c.reconnectHooks, fn)
}

// OnStatus registers fn for connected/disconnected transitions.
func (c *Channel) OnStatus(fn func(connected bool, attempt int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusHooks = append(c.statusHooks, fn)
}

// Start dials once and, on success, keeps the channel alive in the
// background until Close.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("hub %s: already started", c.path)
	}
	c.started = true
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		close(c.done)
		return fmt.Errorf("hub %s: %w", c.path, err)
	}
	telemetry.Metrics.OpenChannels.Inc()
	go c.runLoop()
	return nil
}

func (c *Channel) dial(ctx context.Context) error {
	neg, err := negotiate(ctx, c.opts.HTTPClient, c.baseURL, c.path)
	if err != nil {
		return err
	}
	wsURL, err := websocketURL(c.baseURL, c.path, neg.token())
	if err != nil {
		return err
	}

	conn, _, err := c.opts.Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	if err := handshake(conn); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func handshake(conn *websocket.Conn) error {
	req, err := encodeRecord(handshakeRequest{Protocol: "json", Version: 1})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteMessage(websocket.TextMessage, req); err != nil {
		return fmt.Errorf("handshake write: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("handshake read: %w", err)
	}
	recs := splitRecords(frame)
	if len(recs) == 0 {
		return fmt.Errorf("handshake: empty response")
	}
	var resp handshakeResponse
	if err := json.Unmarshal(recs[0], &resp); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("handshake rejected: %s", resp.Error)
	}
	return nil
}

// runLoop reads records and reconnects on failure with exponential backoff.
func (c *Channel) runLoop() {
	defer close(c.done)
	defer telemetry.Metrics.OpenChannels.Dec()

	failures := 0
	first := true
	for {
		if first {
			telemetry.Infof("[hub %s] connected (%s)", c.path, c.id)
			first = false
		} else {
			telemetry.Infof("[hub %s] reconnected (%s)", c.path, c.id)
			telemetry.Metrics.Reconnects.Inc()
			c.fireReconnected()
		}
		c.fireStatus(true, 0)

		connStart := c.opts.Clock.Now()
		err := c.readLoop()
		c.dropConnection()
		c.fireStatus(false, 0)

		if c.ctx.Err() != nil {
			return
		}
		telemetry.Warnf("[hub %s] connection lost: %v", c.path, err)

		if c.opts.Clock.Since(connStart) > stableAfter {
			failures = 0
		}

		for {
			backoff := backoffFor(c.opts.MinBackoff, c.opts.MaxBackoff, failures)
			failures++
			telemetry.Warnf("[hub %s] reconnecting (attempt %d) in %s", c.path, failures, backoff)
			c.fireStatus(false, failures)
			select {
			case <-c.ctx.Done():
				return
			case <-c.opts.Clock.After(backoff):
			}
			if err := c.dial(c.ctx); err != nil {
				if c.ctx.Err() != nil {
					return
				}
				telemetry.Warnf("[hub %s] dial failed: %v", c.path, err)
				continue
			}
			break
		}
	}
}

// backoffFor doubles lo per consecutive failure, capped at hi.
func backoffFor(lo, hi time.Duration, failures int) time.Duration {
	d := time.Duration(float64(lo) * math.Pow(2, float64(min(failures, 16))))
	if d > hi || d <= 0 {
		return hi
	}
	return d
}

func (c *Channel) readLoop() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	stop := make(chan struct{})
	defer close(stop)
	go c.keepAlive(conn, stop)

	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeDeadline))
	})

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		for _, rec := range splitRecords(frame) {
			if err := c.handleRecord(rec); err != nil {
				return err
			}
		}
	}
}

// keepAlive sends a protocol ping so the server does not time us out
// while the local player is idle.
func (c *Channel) keepAlive(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := c.opts.Clock.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if err := c.write(conn, ping{Type: msgPing}); err != nil {
				telemetry.Debugf("[hub %s] keep-alive: %v", c.path, err)
				return
			}
		}
	}
}

func (c *Channel) handleRecord(rec []byte) error {
	telemetry.Metrics.FramesReceived.Inc()
	msg, err := decodeRecord(rec)
	if err != nil {
		telemetry.Metrics.DecodeErrors.Inc()
		telemetry.Warnf("[hub %s] %v", c.path, err)
		return nil
	}

	switch msg.Type {
	case msgInvocation:
		c.opts.Journal.Insert(c.path, msg.Target, rec)
		c.deliver(msg.Target, msg.Arguments)
	case msgCompletion:
		c.complete(msg)
	case msgPing:
	case msgClose:
		if msg.Error != "" {
			return fmt.Errorf("server closed: %s", msg.Error)
		}
		return errors.New("server closed")
	default:
		telemetry.Debugf("[hub %s] ignoring record type %d", c.path, msg.Type)
	}
	return nil
}

func (c *Channel) deliver(target string, args []json.RawMessage) {
	c.mu.Lock()
	hs := append([]Handler(nil), c.handlers[strings.ToLower(target)]...)
	c.mu.Unlock()

	if len(hs) == 0 {
		telemetry.Debugf("[hub %s] no handler for %q", c.path, target)
		return
	}
	c.opts.Dispatch(func() {
		for _, h := range hs {
			h(args)
		}
	})
}

func (c *Channel) complete(msg inbound) {
	c.mu.Lock()
	ch, ok := c.pending[msg.InvocationID]
	delete(c.pending, msg.InvocationID)
	c.mu.Unlock()
	if !ok {
		return
	}
	if msg.Error != "" {
		ch <- completion{err: errors.New(msg.Error)}
		return
	}
	ch <- completion{result: msg.Result}
}

// dropConnection forgets the socket and fails every in-flight invocation.
func (c *Channel) dropConnection() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	pending := c.pending
	c.pending = make(map[string]chan completion)
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	for _, ch := range pending {
		ch <- completion{err: ErrConnectionLost}
	}
}

// Invoke calls a hub method and waits for its completion. Cancelling ctx
// abandons the wait; the server may still process the call.
func (c *Channel) Invoke(ctx context.Context, target string, args ...any) (json.RawMessage, error) {
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("invoke %s: %w", target, ErrNotConnected)
	}
	c.nextID++
	id := strconv.FormatInt(c.nextID, 10)
	ch := make(chan completion, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if args == nil {
		args = []any{}
	}
	start := time.Now()
	if err := c.write(conn, invocation{Type: msgInvocation, InvocationID: id, Target: target, Arguments: args}); err != nil {
		c.forget(id)
		return nil, fmt.Errorf("invoke %s: %w", target, err)
	}
	telemetry.Metrics.CommandsSent.Inc()

	select {
	case res := <-ch:
		telemetry.Metrics.InvokeLatency.Record(time.Since(start))
		if res.err != nil {
			if errors.Is(res.err, ErrConnectionLost) {
				return nil, fmt.Errorf("invoke %s: %w", target, res.err)
			}
			telemetry.Metrics.CommandRejections.Inc()
			return nil, &InvocationError{Target: target, Message: res.err.Error()}
		}
		return res.result, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, fmt.Errorf("invoke %s: %w", target, ctx.Err())
	case <-c.closed:
		c.forget(id)
		return nil, ErrClosed
	}
}

func (c *Channel) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Channel) write(conn *websocket.Conn, v any) error {
	data, err := encodeRecord(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Channel) fireReconnected() {
	c.mu.Lock()
	hooks := append([]func(){}, c.reconnectHooks...)
	c.mu.Unlock()
	for _, fn := range hooks {
		c.opts.Dispatch(fn)
	}
}

func (c *Channel) fireStatus(connected bool, attempt int) {
	c.mu.Lock()
	hooks := append([]func(bool, int){}, c.statusHooks...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn := fn
		c.opts.Dispatch(func() { fn(connected, attempt) })
	}
}

// Close sends leave (if any) on a best-effort basis and tears the channel
// down. A failed leave is logged and never blocks teardown. Safe to call
// more than once.
func (c *Channel) Close(ctx context.Context, leave *Command) {
	c.closeOnce.Do(func() {
		if leave != nil {
			lctx, cancel := context.WithTimeout(ctx, leaveTimeout)
			if _, err := c.Invoke(lctx, leave.Target, leave.Args...); err != nil {
				telemetry.Warnf("[hub %s] %s failed (ignored): %v", c.path, leave.Target, err)
			}
			cancel()
		}

		close(c.closed)
		c.cancel()

		c.mu.Lock()
		started := c.started
		c.started = true
		c.mu.Unlock()
		if !started {
			close(c.done)
			return
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			c.writeMu.Lock()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.writeMu.Unlock()
			conn.Close()
		}

		select {
		case <-c.done:
		case <-time.After(2 * time.Second):
			telemetry.Warnf("[hub %s] read loop did not exit", c.path)
		}
		telemetry.Infof("[hub %s] closed (%s)", c.path, c.id)
	})
}

func (c *Channel) Done() <-chan struct{} {
	return c.done
}
