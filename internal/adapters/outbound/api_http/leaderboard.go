package api_http

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type LeaderboardEntry struct {
	Rank            int       `json:"rank"`
	Pseudo          string    `json:"pseudo"`
	Score           float64   `json:"score"`
	Time            string    `json:"time"`
	TimeFormatted   string    `json:"timeFormatted"`
	AchievedAt      time.Time `json:"achievedAt"`
	IsCurrentPlayer bool      `json:"isCurrentPlayer"`
}

type LeaderboardResponse struct {
	GameType           string             `json:"gameType"`
	Entries            []LeaderboardEntry `json:"entries"`
	TotalEntries       int                `json:"totalEntries"`
	CurrentPlayerEntry *LeaderboardEntry  `json:"currentPlayerEntry"`
}

type addScoreRequest struct {
	GameType string  `json:"gameType"`
	PlayerID string  `json:"playerId"`
	Score    float64 `json:"score"`
	Time     string  `json:"time"`
}

func (c *Client) Leaderboard(ctx context.Context, gameType string, top int, playerID string) (LeaderboardResponse, error) {
	q := url.Values{}
	if top > 0 {
		q.Set("top", strconv.Itoa(top))
	}
	if playerID != "" {
		q.Set("playerId", playerID)
	}
	var resp LeaderboardResponse
	if err := c.call(ctx, http.MethodGet, "/Leaderboard/"+url.PathEscape(gameType), q, nil, &resp); err != nil {
		return LeaderboardResponse{}, err
	}
	return resp, nil
}

// AddScore records a finished result. elapsed is sent as a TimeSpan string.
func (c *Client) AddScore(ctx context.Context, gameType, playerID string, score float64, elapsed time.Duration) error {
	return c.call(ctx, http.MethodPost, "/Leaderboard", nil, addScoreRequest{
		GameType: gameType,
		PlayerID: playerID,
		Score:    score,
		Time:     FormatTimeSpan(elapsed),
	}, nil)
}

// FormatTimeSpan renders d as hh:mm:ss.fff.
func FormatTimeSpan(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := d.Seconds()
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, math.Floor(s*1000)/1000)
}
