// Package hubtest runs an in-process JSON hub server for tests.
package hubtest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const recordSeparator = 0x1e

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Call is one invocation received from a client.
type Call struct {
	Path   string
	Target string
	Args   []json.RawMessage
}

// Arg decodes argument i into v.
func (c Call) Arg(i int, v any) error {
	return json.Unmarshal(c.Args[i], v)
}

type noReply struct{}

// NoReply as a Responder result leaves the invocation pending forever.
var NoReply any = noReply{}

// Responder decides the completion for a call. A non-empty errMsg rejects it.
type Responder func(call Call) (result any, errMsg string)

type peer struct {
	path string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return p.conn.WriteMessage(websocket.TextMessage, append(data, recordSeparator))
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	peers     map[*peer]struct{}
	responder Responder
	calls     chan Call

	negotiations    atomic.Int64
	handshakes      atomic.Int64
	RejectNegotiate atomic.Bool
}

func NewServer(t testing.TB) *Server {
	s := &Server{
		peers: make(map[*peer]struct{}),
		calls: make(chan Call, 1024),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Respond installs fn as the completion policy. Calls succeed with a nil
// result until one is installed.
func (s *Server) Respond(fn Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = fn
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/negotiate") {
		s.negotiations.Add(1)
		if s.RejectNegotiate.Load() {
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"negotiateVersion": 1,
			"connectionId":     "conn-" + r.URL.Path,
			"connectionToken":  "tok",
		})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{path: r.URL.Path, conn: conn}

	_, frame, err := conn.ReadMessage()
	if err != nil || !bytes.Contains(frame, []byte(`"protocol":"json"`)) {
		conn.Close()
		return
	}
	p.mu.Lock()
	conn.WriteMessage(websocket.TextMessage, []byte("{}\x1e"))
	p.mu.Unlock()
	s.handshakes.Add(1)

	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()

	go s.readPump(p)
}

func (s *Server) readPump(p *peer) {
	defer func() {
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
		p.conn.Close()
	}()

	for {
		_, frame, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		for _, rec := range bytes.Split(frame, []byte{recordSeparator}) {
			if len(bytes.TrimSpace(rec)) == 0 {
				continue
			}
			var msg struct {
				Type         int               `json:"type"`
				InvocationID string            `json:"invocationId"`
				Target       string            `json:"target"`
				Arguments    []json.RawMessage `json:"arguments"`
			}
			if err := json.Unmarshal(rec, &msg); err != nil || msg.Type != 1 {
				continue
			}
			call := Call{Path: p.path, Target: msg.Target, Args: msg.Arguments}
			select {
			case s.calls <- call:
			default:
			}

			s.mu.Lock()
			respond := s.responder
			s.mu.Unlock()

			var result any
			var errMsg string
			if respond != nil {
				result, errMsg = respond(call)
			}
			if msg.InvocationID == "" || result == NoReply {
				continue
			}
			reply := map[string]any{"type": 3, "invocationId": msg.InvocationID}
			if errMsg != "" {
				reply["error"] = errMsg
			} else if result != nil {
				reply["result"] = result
			}
			if err := p.write(reply); err != nil {
				return
			}
		}
	}
}

// Push sends a server event to every client connected on path.
func (s *Server) Push(path, target string, args ...any) {
	if args == nil {
		args = []any{}
	}
	for _, p := range s.peersOn(path) {
		p.write(map[string]any{"type": 1, "target": target, "arguments": args})
	}
}

// PushRaw writes frame verbatim to every client on path.
func (s *Server) PushRaw(path string, frame []byte) {
	for _, p := range s.peersOn(path) {
		p.mu.Lock()
		p.conn.WriteMessage(websocket.TextMessage, frame)
		p.mu.Unlock()
	}
}

// Drop severs every connection on path without a close handshake.
func (s *Server) Drop(path string) {
	for _, p := range s.peersOn(path) {
		p.conn.Close()
	}
}

func (s *Server) Connections(path string) int {
	return len(s.peersOn(path))
}

func (s *Server) Negotiations() int64 { return s.negotiations.Load() }
func (s *Server) Handshakes() int64   { return s.handshakes.Load() }

func (s *Server) peersOn(path string) []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*peer
	for p := range s.peers {
		if p.path == path {
			out = append(out, p)
		}
	}
	return out
}

// WaitCall returns the next call to target, failing t after timeout.
// Calls to other targets are discarded.
func (s *Server) WaitCall(t testing.TB, target string, timeout time.Duration) Call {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case c := <-s.calls:
			if c.Target == target {
				return c
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", target)
			return Call{}
		}
	}
}

// WaitConnections blocks until n clients are connected on path.
func (s *Server) WaitConnections(t testing.TB, path string, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.Connections(path) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d connections on %s, have %d", n, path, s.Connections(path))
}
