package api_http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/arcade-client/internal/events"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   string
	ReqID  string
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, <-chan recorded) {
	t.Helper()
	reqs := make(chan recorded, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqs <- recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body), ReqID: r.Header.Get("X-Request-ID")}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/", Options{RatePerSec: 100, Burst: 100}), reqs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestCreatePlayer(t *testing.T) {
	c, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "p1", "pseudo": "ann"})
	})

	p, err := c.CreatePlayer(context.Background(), "  ann ")
	require.NoError(t, err)
	assert.Equal(t, events.Player{ID: "p1", Pseudo: "ann"}, p)

	req := <-reqs
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/api/Player", req.Path)
	assert.JSONEq(t, `{"pseudo":"ann"}`, req.Body)
	assert.Len(t, req.ReqID, 36)

	_, err = c.CreatePlayer(context.Background(), " ")
	assert.Error(t, err)
}

func TestLobbyEndpoints(t *testing.T) {
	c, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/Lobby":
			writeJSON(w, 200, []map[string]any{{"id": "L1", "gameType": "Connect4", "currentPlayers": 3, "maxPlayers": 2}})
		case r.Method == http.MethodGet:
			writeJSON(w, 200, map[string]any{"id": "L1", "gameType": "Connect4", "maxPlayers": 2,
				"players": []map[string]string{{"id": "p1", "pseudo": "ann"}, {"id": "p2", "pseudo": "bob"}}})
		case r.URL.Path == "/api/Lobby":
			writeJSON(w, 200, map[string]string{"lobbyId": "L9", "shareLink": "http://x/lobby/L9"})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	list, err := c.ListLobbies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].CurrentPlayers, "clamped to capacity")
	<-reqs

	d, err := c.GetLobby(ctx, "L1", "p2")
	require.NoError(t, err)
	assert.Equal(t, []events.Player{{ID: "p1", Pseudo: "ann"}, {ID: "p2", Pseudo: "bob"}}, d.Players)
	assert.Equal(t, "playerId=p2", (<-reqs).Query)

	resp, err := c.CreateLobby(ctx, CreateLobbyRequest{PlayerID: "p1", GameType: "SpeedTyping", MaxPlayers: 4})
	require.NoError(t, err)
	assert.Equal(t, "L9", resp.LobbyID)
	assert.JSONEq(t, `{"playerId":"p1","gameType":"SpeedTyping","maxPlayers":4,"password":null}`, (<-reqs).Body)

	require.NoError(t, c.JoinLobby(ctx, "L1", "p2", "secret"))
	join := <-reqs
	assert.Equal(t, "/api/Lobby/L1/join", join.Path)
	assert.JSONEq(t, `{"playerId":"p2","password":"secret"}`, join.Body)

	require.NoError(t, c.LeaveLobby(ctx, "L1", "p2"))
	leave := <-reqs
	assert.Equal(t, "/api/Lobby/L1/leave", leave.Path)
	assert.JSONEq(t, `"p2"`, leave.Body)

	require.NoError(t, c.StartGame(ctx, "L1", "p1"))
	assert.JSONEq(t, `"p1"`, (<-reqs).Body)

	require.NoError(t, c.DeleteLobby(ctx, "L1", "p1"))
	del := <-reqs
	assert.Equal(t, "DELETE", del.Method)
	assert.Equal(t, "hostId=p1", del.Query)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		full     bool
		password bool
		already  bool
	}{
		{"conflict", http.StatusConflict, ``, true, false, false},
		{"full text", http.StatusBadRequest, `"Lobby is full"`, true, false, false},
		{"problem details", http.StatusBadRequest, `{"title":"Invalid password"}`, false, true, false},
		{"private", http.StatusForbidden, `{"message":"This lobby is private"}`, false, true, false},
		{"already", http.StatusConflict, `{"error":"Player already in lobby"}`, false, false, true},
		{"plain text", http.StatusInternalServerError, `boom`, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})
			err := c.JoinLobby(context.Background(), "L1", "p1", "")
			require.Error(t, err)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.full, IsLobbyFull(err), "full")
			assert.Equal(t, tc.password, IsPasswordRequired(err), "password")
			assert.Equal(t, tc.already, IsAlreadyMember(err), "already")
		})
	}
}

func TestNotFound(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := c.GetLobby(context.Background(), "gone", "")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(nil))
}

func TestLeaderboard(t *testing.T) {
	c, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, 200, map[string]any{
				"gameType":     "SpeedTyping",
				"totalEntries": 1,
				"entries":      []map[string]any{{"rank": 1, "pseudo": "ann", "score": 88.5, "achievedAt": "2026-10-01T10:00:00Z"}},
			})
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	ctx := context.Background()

	lb, err := c.Leaderboard(ctx, "SpeedTyping", 10, "p1")
	require.NoError(t, err)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, 88.5, lb.Entries[0].Score)
	assert.Equal(t, "playerId=p1&top=10", (<-reqs).Query)

	require.NoError(t, c.AddScore(ctx, "SpeedTyping", "p1", 72, 83500*time.Millisecond))
	assert.JSONEq(t, `{"gameType":"SpeedTyping","playerId":"p1","score":72,"time":"00:01:23.500"}`, (<-reqs).Body)
}

func TestFormatTimeSpan(t *testing.T) {
	assert.Equal(t, "00:00:00.000", FormatTimeSpan(-time.Second))
	assert.Equal(t, "00:00:09.250", FormatTimeSpan(9250*time.Millisecond))
	assert.Equal(t, "01:02:03.000", FormatTimeSpan(time.Hour+2*time.Minute+3*time.Second))
}

func TestContextCancelled(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListLobbies(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGameSessionsAndHistory(t *testing.T) {
	c, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/Admin/game-sessions":
			writeJSON(w, 200, []map[string]any{
				{"id": "S1", "gameType": "Puissance4", "startedAt": "2026-10-01T10:00:00", "finishedAt": nil, "totalActions": 7, "playerCount": 2},
			})
		default:
			writeJSON(w, 200, map[string]any{
				"gameSessionId": "S1",
				"gameType":      "Puissance4",
				"duration":      "00:02:10",
				"actions": []map[string]any{
					{"id": "a1", "playerId": "p1", "playerPseudo": "ann", "actionType": "DropPiece", "actionData": "{\"column\":3}", "timeSinceStart": "00:00:04"},
				},
				"actionStats": map[string]int{"DropPiece": 7},
			})
		}
	})
	ctx := context.Background()

	sessions, err := c.GameSessions(ctx, "Puissance4", 20)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, GameSessionSummary{ID: "S1", GameType: "Puissance4", StartedAt: "2026-10-01T10:00:00", TotalActions: 7, PlayerCount: 2}, sessions[0])
	assert.Equal(t, "gameType=Puissance4&limit=20", (<-reqs).Query)

	h, err := c.GameHistory(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "/api/Admin/game-history/S1", (<-reqs).Path)
	require.Len(t, h.Actions, 1)
	assert.Equal(t, "DropPiece", h.Actions[0].ActionType)
	assert.Equal(t, 7, h.ActionStats["DropPiece"])
}
