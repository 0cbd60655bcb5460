package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// recordSeparator terminates every JSON hub-protocol record.
const recordSeparator = 0x1e

const (
	msgInvocation = 1
	msgCompletion = 3
	msgPing       = 6
	msgClose      = 7
)

// handshakeRequest is the first record sent on a fresh socket.
type handshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// inbound is the union of every record type the server sends.
type inbound struct {
	Type           int               `json:"type"`
	InvocationID   string            `json:"invocationId,omitempty"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Result         json.RawMessage   `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect *bool             `json:"allowReconnect,omitempty"`
}

type invocation struct {
	Type         int    `json:"type"`
	InvocationID string `json:"invocationId,omitempty"`
	Target       string `json:"target"`
	Arguments    []any  `json:"arguments"`
}

type ping struct {
	Type int `json:"type"`
}

// encodeRecord marshals v and appends the record separator.
func encodeRecord(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return append(data, recordSeparator), nil
}

// splitRecords cuts a websocket frame into records. A frame may carry
// several records; an unterminated tail is returned as the last record.
func splitRecords(frame []byte) [][]byte {
	var out [][]byte
	for len(frame) > 0 {
		i := bytes.IndexByte(frame, recordSeparator)
		if i < 0 {
			if rec := bytes.TrimSpace(frame); len(rec) > 0 {
				out = append(out, rec)
			}
			break
		}
		if rec := bytes.TrimSpace(frame[:i]); len(rec) > 0 {
			out = append(out, rec)
		}
		frame = frame[i+1:]
	}
	return out
}

func decodeRecord(rec []byte) (inbound, error) {
	var msg inbound
	if err := json.Unmarshal(rec, &msg); err != nil {
		return inbound{}, fmt.Errorf("decode record: %w", err)
	}
	return msg, nil
}
