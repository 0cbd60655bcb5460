package api_http

import (
	"context"
	"net/http"
	"net/url"

	"github.com/charleschow/arcade-client/internal/events"
)

// LobbyDetail is the full view of one lobby. Players are in join order;
// the server's isHost flag is informational only, host status is derived
// from the roster.
type LobbyDetail struct {
	ID         string          `json:"id"`
	GameType   string          `json:"gameType"`
	Players    []events.Player `json:"players"`
	MaxPlayers int             `json:"maxPlayers"`
	IsHost     bool            `json:"isHost"`
	Status     string          `json:"status"`
}

type CreateLobbyRequest struct {
	PlayerID   string  `json:"playerId"`
	GameType   string  `json:"gameType"`
	MaxPlayers int     `json:"maxPlayers"`
	Password   *string `json:"password"`
}

type CreateLobbyResponse struct {
	LobbyID   string `json:"lobbyId"`
	ShareLink string `json:"shareLink"`
}

type joinLobbyRequest struct {
	PlayerID string  `json:"playerId"`
	Password *string `json:"password"`
}

func (c *Client) ListLobbies(ctx context.Context) ([]events.LobbySummary, error) {
	var out []events.LobbySummary
	if err := c.call(ctx, http.MethodGet, "/Lobby", nil, nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].MaxPlayers > 0 && out[i].CurrentPlayers > out[i].MaxPlayers {
			out[i].CurrentPlayers = out[i].MaxPlayers
		}
	}
	return out, nil
}

func (c *Client) GetLobby(ctx context.Context, lobbyID, playerID string) (LobbyDetail, error) {
	var q url.Values
	if playerID != "" {
		q = url.Values{"playerId": {playerID}}
	}
	var d LobbyDetail
	if err := c.call(ctx, http.MethodGet, "/Lobby/"+url.PathEscape(lobbyID), q, nil, &d); err != nil {
		return LobbyDetail{}, err
	}
	if d.ID == "" {
		d.ID = lobbyID
	}
	return d, nil
}

func (c *Client) CreateLobby(ctx context.Context, req CreateLobbyRequest) (CreateLobbyResponse, error) {
	var resp CreateLobbyResponse
	if err := c.call(ctx, http.MethodPost, "/Lobby", nil, req, &resp); err != nil {
		return CreateLobbyResponse{}, err
	}
	return resp, nil
}

// JoinLobby adds playerID to the lobby. An empty password is sent as null.
func (c *Client) JoinLobby(ctx context.Context, lobbyID, playerID, password string) error {
	return c.call(ctx, http.MethodPost, "/Lobby/"+url.PathEscape(lobbyID)+"/join", nil,
		joinLobbyRequest{PlayerID: playerID, Password: optional(password)}, nil)
}

// LeaveLobby and StartGame take the player id as a bare JSON string body.
func (c *Client) LeaveLobby(ctx context.Context, lobbyID, playerID string) error {
	return c.call(ctx, http.MethodPost, "/Lobby/"+url.PathEscape(lobbyID)+"/leave", nil, playerID, nil)
}

func (c *Client) StartGame(ctx context.Context, lobbyID, hostID string) error {
	return c.call(ctx, http.MethodPost, "/Lobby/"+url.PathEscape(lobbyID)+"/start", nil, hostID, nil)
}

func (c *Client) DeleteLobby(ctx context.Context, lobbyID, hostID string) error {
	return c.call(ctx, http.MethodDelete, "/Lobby/"+url.PathEscape(lobbyID),
		url.Values{"hostId": {hostID}}, nil, nil)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
