package lobby

import (
	"context"

	"github.com/charleschow/arcade-client/internal/adapters/outbound/api_http"
	"github.com/charleschow/arcade-client/internal/events"
)

var (
	_ DetailAPI = (*api_http.Client)(nil)
	_ ListAPI   = (*api_http.Client)(nil)
)

// DetailAPI is the slice of the lobby REST service a lobby context needs.
// Satisfied by *api_http.Client.
type DetailAPI interface {
	GetLobby(ctx context.Context, lobbyID, playerID string) (api_http.LobbyDetail, error)
	JoinLobby(ctx context.Context, lobbyID, playerID, password string) error
	LeaveLobby(ctx context.Context, lobbyID, playerID string) error
	StartGame(ctx context.Context, lobbyID, hostID string) error
	DeleteLobby(ctx context.Context, lobbyID, hostID string) error
}

// ListAPI is what the lobby list needs. Satisfied by *api_http.Client.
type ListAPI interface {
	ListLobbies(ctx context.Context) ([]events.LobbySummary, error)
	GetLobby(ctx context.Context, lobbyID, playerID string) (api_http.LobbyDetail, error)
	CreateLobby(ctx context.Context, req api_http.CreateLobbyRequest) (api_http.CreateLobbyResponse, error)
	JoinLobby(ctx context.Context, lobbyID, playerID, password string) error
}
