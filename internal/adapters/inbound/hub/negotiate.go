package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type negotiateResponse struct {
	ConnectionID     string `json:"connectionId"`
	ConnectionToken  string `json:"connectionToken"`
	NegotiateVersion int    `json:"negotiateVersion"`
	Error            string `json:"error"`
}

func (n negotiateResponse) token() string {
	if n.ConnectionToken != "" {
		return n.ConnectionToken
	}
	return n.ConnectionID
}

// negotiate asks the server for a connection token for the hub at path.
func negotiate(ctx context.Context, client *http.Client, baseURL, path string) (negotiateResponse, error) {
	endpoint := strings.TrimRight(baseURL, "/") + path + "/negotiate?negotiateVersion=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return negotiateResponse{}, fmt.Errorf("negotiate request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return negotiateResponse{}, fmt.Errorf("negotiate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return negotiateResponse{}, fmt.Errorf("negotiate status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result negotiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return negotiateResponse{}, fmt.Errorf("decode negotiate response: %w", err)
	}
	if result.Error != "" {
		return negotiateResponse{}, fmt.Errorf("negotiate: %s", result.Error)
	}
	if result.token() == "" {
		return negotiateResponse{}, fmt.Errorf("negotiate: empty connection token")
	}
	return result, nil
}

// websocketURL maps an http(s) hub address to its ws(s) endpoint.
func websocketURL(baseURL, path, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + path)
	if err != nil {
		return "", fmt.Errorf("parse hub url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported hub scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("id", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
