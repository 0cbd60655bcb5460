package api_http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

func (c *Client) CreatePlayer(ctx context.Context, pseudo string) (events.Player, error) {
	pseudo = strings.TrimSpace(pseudo)
	if pseudo == "" {
		return events.Player{}, fmt.Errorf("create player: empty pseudo")
	}
	var p events.Player
	if err := c.call(ctx, http.MethodPost, "/Player", nil, map[string]string{"pseudo": pseudo}, &p); err != nil {
		return events.Player{}, err
	}
	if p.ID == "" {
		return events.Player{}, fmt.Errorf("create player: response without id")
	}
	if p.Pseudo == "" {
		p.Pseudo = pseudo
	}
	telemetry.Infof("api: registered player %s (%s)", p.Pseudo, p.ID)
	return p, nil
}

func (c *Client) GetPlayer(ctx context.Context, id string) (events.Player, error) {
	var p events.Player
	if err := c.call(ctx, http.MethodGet, "/Player/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return events.Player{}, err
	}
	return p, nil
}
