package api_http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the REST API.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	return &APIError{Method: method, Path: path, Status: status, Message: errorMessage(body)}
}

// errorMessage pulls a human message out of the handful of error body
// shapes the server produces: problem details, {message}, a JSON string
// or plain text.
func errorMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"message", "error", "detail", "title"} {
			if v, ok := obj[key].(string); ok && v != "" {
				return v
			}
		}
	}
	if len(text) > 300 {
		text = text[:300]
	}
	return text
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

func messageContains(err error, words ...string) bool {
	apiErr, ok := asAPIError(err)
	if !ok {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	for _, w := range words {
		if strings.Contains(msg, w) {
			return true
		}
	}
	return false
}

// IsLobbyFull reports a join rejected because the lobby has no free seat.
func IsLobbyFull(err error) bool {
	if apiErr, ok := asAPIError(err); ok && apiErr.Status == http.StatusConflict && !IsAlreadyMember(err) {
		return true
	}
	return messageContains(err, "full")
}

// IsPasswordRequired reports a join rejected for a private lobby.
func IsPasswordRequired(err error) bool {
	return messageContains(err, "password", "private")
}

// IsAlreadyMember reports a join for a lobby the player is already in.
func IsAlreadyMember(err error) bool {
	return messageContains(err, "already")
}

func IsNotFound(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Status == http.StatusNotFound
}
