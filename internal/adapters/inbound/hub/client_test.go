package hub

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/arcade-client/internal/adapters/inbound/hub/hubtest"
)

const waitFor = 2 * time.Second

func fastOptions() Options {
	return Options{MinBackoff: 10 * time.Millisecond, MaxBackoff: 40 * time.Millisecond}
}

func startChannel(t *testing.T, srv *hubtest.Server, path string, opts Options, setup func(*Channel)) *Channel {
	t.Helper()
	ch := NewChannel(srv.URL, path, opts)
	if setup != nil {
		setup(ch)
	}
	require.NoError(t, ch.Start(context.Background()))
	t.Cleanup(func() { ch.Close(context.Background(), nil) })
	srv.WaitConnections(t, path, 1, waitFor)
	return ch
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out")
		var zero T
		return zero
	}
}

func TestInvokeReturnsResult(t *testing.T) {
	srv := hubtest.NewServer(t)
	srv.Respond(func(c hubtest.Call) (any, string) {
		if c.Target == "GetGameState" {
			return map[string]any{"ok": true}, ""
		}
		return nil, ""
	})
	ch := startChannel(t, srv, "/connect4hub", fastOptions(), nil)

	res, err := ch.Invoke(context.Background(), "GetGameState", "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(res))

	call := srv.WaitCall(t, "GetGameState", waitFor)
	var sessionID string
	require.NoError(t, call.Arg(0, &sessionID))
	assert.Equal(t, "s1", sessionID)
	assert.Equal(t, int64(1), srv.Negotiations())
}

func TestInvokeRejection(t *testing.T) {
	srv := hubtest.NewServer(t)
	srv.Respond(func(c hubtest.Call) (any, string) { return nil, "Not your turn" })
	ch := startChannel(t, srv, "/connect4hub", fastOptions(), nil)

	_, err := ch.Invoke(context.Background(), "DropPiece", "L1", "s1", "p1", 3)
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "DropPiece", invErr.Target)
	assert.Equal(t, "Not your turn", invErr.Message)
}

func TestInvokeHonoursContext(t *testing.T) {
	srv := hubtest.NewServer(t)
	srv.Respond(func(hubtest.Call) (any, string) { return hubtest.NoReply, "" })
	ch := startChannel(t, srv, "/lobbyhub", fastOptions(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := ch.Invoke(ctx, "JoinLobbyGroup", "L1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	srv := hubtest.NewServer(t)
	seen := make(chan string, 4)
	startChannel(t, srv, "/lobbyhub", fastOptions(), func(ch *Channel) {
		ch.On("PlayerJoined", func(args []json.RawMessage) { seen <- "first:" + string(args[0]) })
		ch.On("playerjoined", func([]json.RawMessage) { seen <- "second" })
	})

	srv.Push("/lobbyhub", "PlayerJoined", "p1")
	assert.Equal(t, `first:"p1"`, recv(t, seen))
	assert.Equal(t, "second", recv(t, seen))
}

func TestDispatchRoutesThroughCaller(t *testing.T) {
	srv := hubtest.NewServer(t)
	queue := make(chan func(), 8)
	opts := fastOptions()
	opts.Dispatch = func(fn func()) { queue <- fn }

	got := make(chan string, 1)
	startChannel(t, srv, "/lobbyhub", opts, func(ch *Channel) {
		ch.On("LobbyCreated", func([]json.RawMessage) { got <- "ran" })
	})

	srv.Push("/lobbyhub", "LobbyCreated", map[string]any{"id": "L1"})
	for {
		fn := recv(t, queue)
		fn()
		select {
		case v := <-got:
			assert.Equal(t, "ran", v)
			return
		default:
		}
	}
}

func TestReconnectFiresHooksAndFailsPending(t *testing.T) {
	srv := hubtest.NewServer(t)
	srv.Respond(func(c hubtest.Call) (any, string) {
		if c.Target == "Slow" {
			return hubtest.NoReply, ""
		}
		return nil, ""
	})

	reconnected := make(chan struct{}, 1)
	status := make(chan bool, 16)
	ch := startChannel(t, srv, "/speedtypinghub", fastOptions(), func(ch *Channel) {
		ch.OnReconnected(func() { reconnected <- struct{}{} })
		ch.OnStatus(func(connected bool, attempt int) {
			if attempt == 0 {
				status <- connected
			}
		})
	})
	assert.True(t, recv(t, status))

	pending := make(chan error, 1)
	go func() {
		_, err := ch.Invoke(context.Background(), "Slow")
		pending <- err
	}()
	srv.WaitCall(t, "Slow", waitFor)

	srv.Drop("/speedtypinghub")

	assert.ErrorIs(t, recv(t, pending), ErrConnectionLost)
	assert.False(t, recv(t, status))
	recv(t, reconnected)
	assert.True(t, recv(t, status))
	srv.WaitConnections(t, "/speedtypinghub", 1, waitFor)
	assert.GreaterOrEqual(t, srv.Handshakes(), int64(2))

	_, err := ch.Invoke(context.Background(), "JoinGameRoom", "L1")
	assert.NoError(t, err)
}

func TestServerCloseRecordTriggersReconnect(t *testing.T) {
	srv := hubtest.NewServer(t)
	reconnected := make(chan struct{}, 1)
	startChannel(t, srv, "/lobbyhub", fastOptions(), func(ch *Channel) {
		ch.OnReconnected(func() { reconnected <- struct{}{} })
	})

	srv.PushRaw("/lobbyhub", []byte("{\"type\":7,\"error\":\"server restarting\"}\x1e"))
	recv(t, reconnected)
}

func TestCloseSendsLeaveAndIsIdempotent(t *testing.T) {
	srv := hubtest.NewServer(t)
	ch := startChannel(t, srv, "/connect4hub", fastOptions(), nil)

	ch.Close(context.Background(), &Command{Target: "LeaveGameRoom", Args: []any{"L1"}})
	call := srv.WaitCall(t, "LeaveGameRoom", waitFor)
	var lobbyID string
	require.NoError(t, call.Arg(0, &lobbyID))
	assert.Equal(t, "L1", lobbyID)

	ch.Close(context.Background(), &Command{Target: "LeaveGameRoom"})
	recv(t, ch.Done())

	_, err := ch.Invoke(context.Background(), "GetGameState", "s1")
	assert.ErrorIs(t, err, ErrClosed)
	srv.WaitConnections(t, "/connect4hub", 0, waitFor)
}

func TestCloseNeverBlocksOnFailedLeave(t *testing.T) {
	srv := hubtest.NewServer(t)
	srv.Respond(func(hubtest.Call) (any, string) { return hubtest.NoReply, "" })
	ch := startChannel(t, srv, "/lobbyhub", fastOptions(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	ch.Close(ctx, &Command{Target: "LeaveLobbyGroup", Args: []any{"L1"}})
	assert.Less(t, time.Since(start), time.Second)
}

func TestStartFailsWhenNegotiateRejected(t *testing.T) {
	srv := hubtest.NewServer(t)
	srv.RejectNegotiate.Store(true)

	ch := NewChannel(srv.URL, "/lobbyhub", fastOptions())
	err := ch.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	ch.Close(context.Background(), nil)
}

func TestInvokeBeforeStart(t *testing.T) {
	ch := NewChannel("http://unused", "/lobbyhub", fastOptions())
	_, err := ch.Invoke(context.Background(), "SubscribeToLobbyList")
	assert.True(t, errors.Is(err, ErrNotConnected))
	ch.Close(context.Background(), nil)
}

func TestJournalRecordsServerEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := OpenJournal(path, 1<<20)
	require.NoError(t, err)

	srv := hubtest.NewServer(t)
	opts := fastOptions()
	opts.Journal = j
	got := make(chan struct{}, 1)
	ch := startChannel(t, srv, "/lobbyhub", opts, func(ch *Channel) {
		ch.On("LobbyCreated", func([]json.RawMessage) { got <- struct{}{} })
	})

	srv.Push("/lobbyhub", "LobbyCreated", map[string]any{"id": "L1"})
	recv(t, got)
	ch.Close(context.Background(), nil)
	require.NoError(t, j.Close())

	j, err = OpenJournal(path, 1<<20)
	require.NoError(t, err)
	defer j.Close()
	frames, err := j.Recent(context.Background(), "/lobbyhub", 10)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "LobbyCreated", frames[0].Target)
	assert.Contains(t, string(frames[0].Raw), `"L1"`)
}
