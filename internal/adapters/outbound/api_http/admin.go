package api_http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// GameSessionSummary is one row of the recorded game sessions.
type GameSessionSummary struct {
	ID           string `json:"id"`
	GameType     string `json:"gameType"`
	StartedAt    string `json:"startedAt"`
	FinishedAt   string `json:"finishedAt"`
	TotalActions int    `json:"totalActions"`
	PlayerCount  int    `json:"playerCount"`
}

type GameAction struct {
	ID             string `json:"id"`
	PlayerID       string `json:"playerId"`
	PlayerPseudo   string `json:"playerPseudo"`
	ActionType     string `json:"actionType"`
	ActionData     string `json:"actionData"`
	Timestamp      string `json:"timestamp"`
	TimeSinceStart string `json:"timeSinceStart"`
}

type PlayerSummary struct {
	PlayerID        string         `json:"playerId"`
	Pseudo          string         `json:"pseudo"`
	ActionCount     int            `json:"actionCount"`
	ActionBreakdown map[string]int `json:"actionBreakdown"`
}

// GameHistory is the recorded move log of one session.
type GameHistory struct {
	GameSessionID   string          `json:"gameSessionId"`
	GameType        string          `json:"gameType"`
	GameStartedAt   string          `json:"gameStartedAt"`
	GameFinishedAt  string          `json:"gameFinishedAt"`
	Duration        string          `json:"duration"`
	Actions         []GameAction    `json:"actions"`
	ActionStats     map[string]int  `json:"actionStats"`
	PlayerSummaries []PlayerSummary `json:"playerSummaries"`
}

// GameSessions lists recent sessions, newest first, optionally for one
// server game type. limit <= 0 leaves the server default.
func (c *Client) GameSessions(ctx context.Context, gameType string, limit int) ([]GameSessionSummary, error) {
	q := url.Values{}
	if gameType != "" {
		q.Set("gameType", gameType)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []GameSessionSummary
	if err := c.call(ctx, http.MethodGet, "/Admin/game-sessions", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GameHistory(ctx context.Context, sessionID string) (GameHistory, error) {
	var out GameHistory
	if err := c.call(ctx, http.MethodGet, "/Admin/game-history/"+url.PathEscape(sessionID), nil, nil, &out); err != nil {
		return GameHistory{}, err
	}
	return out, nil
}
