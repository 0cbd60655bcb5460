package hub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/charleschow/arcade-client/internal/config"
	"github.com/charleschow/arcade-client/internal/events"
)

var ErrUnknownEvent = errors.New("unknown event")

type decodeFunc func(args []json.RawMessage) (any, error)

// Decoder turns the arguments of a server event into a canonical payload.
// Every field-name fallback the server has been seen to use is resolved
// here and nowhere else.
type Decoder struct {
	room  events.Room
	names config.HubAliases
}

func NewDecoder(room events.Room, aliases config.ProtocolAliases) *Decoder {
	return &Decoder{room: room, names: aliases.Hub(string(room))}
}

func (d *Decoder) Room() events.Room { return d.room }

// WireNames lists the server event names this decoder understands, sorted.
func (d *Decoder) WireNames() []string {
	out := make([]string, 0, len(d.names))
	for wire := range d.names {
		out = append(out, wire)
	}
	sort.Strings(out)
	return out
}

// Canonical maps a server event name to its canonical type on this hub.
func (d *Decoder) Canonical(wire string) (events.EventType, bool) {
	if t, ok := d.names[wire]; ok {
		return events.EventType(t), true
	}
	for name, t := range d.names {
		if strings.EqualFold(name, wire) {
			return events.EventType(t), true
		}
	}
	return "", false
}

func (d *Decoder) Decode(wire string, args []json.RawMessage) (events.Event, error) {
	t, ok := d.Canonical(wire)
	if !ok {
		return events.Event{}, fmt.Errorf("%s on %s: %w", wire, d.room, ErrUnknownEvent)
	}
	fn, ok := decoders[t]
	if !ok {
		return events.Event{}, fmt.Errorf("%s on %s maps to %s: %w", wire, d.room, t, ErrUnknownEvent)
	}
	payload, err := fn(args)
	if err != nil {
		return events.Event{}, fmt.Errorf("decode %s: %w", wire, err)
	}
	return events.Event{
		ID:        uuid.NewString(),
		Type:      t,
		Room:      d.room,
		Wire:      wire,
		Timestamp: time.Now(),
		Payload:   payload,
	}, nil
}

var decoders = map[events.EventType]decodeFunc{
	events.EventPlayerJoined:     decodePlayerJoined,
	events.EventPlayerLeft:       decodePlayerLeft,
	events.EventLobbyCreated:     decodeLobbyCreated,
	events.EventLobbyDeleted:     decodeLobbyDeleted,
	events.EventLobbyClosed:      decodeLobbyClosed,
	events.EventGameStarted:      decodeGameStarted,
	events.EventBoardInitialized: decodeBoardInitialized,
	events.EventPieceDropped:     decodePieceDropped,
	events.EventBoardGameOver:    decodeBoardGameOver,
	events.EventRaceInitialized:  decodeRaceInitialized,
	events.EventCountdownTick:    decodeCountdownTick,
	events.EventRaceStarted:      func([]json.RawMessage) (any, error) { return events.RaceStartedEvent{}, nil },
	events.EventProgressUpdated:  decodeProgressUpdated,
	events.EventPlayerFinished:   decodePlayerFinished,
	events.EventRaceOver:         decodeRaceOver,
	events.EventInvalidMove:      decodeInvalidMove,
	events.EventGameError:        decodeGameError,
}

// ── Lobby hub ───────────────────────────────────────────────────────────

// Player events arrive either as (player) or as (lobbyId, player).
func playerArgs(args []json.RawMessage) (lobbyID string, p events.Player, err error) {
	if len(args) >= 2 {
		if s, ok := asString(args[0]); ok {
			lobbyID = s
			args = args[1:]
		}
	}
	if len(args) == 0 {
		return "", events.Player{}, errors.New("missing player argument")
	}
	if s, ok := asString(args[0]); ok {
		return lobbyID, events.Player{ID: s}, nil
	}
	f, err := objectFields(args[0])
	if err != nil {
		return "", events.Player{}, err
	}
	p = events.Player{
		ID:     f.str("id", "playerId"),
		Pseudo: f.str("pseudo", "playerPseudo"),
	}
	if lobbyID == "" {
		lobbyID = f.str("lobbyId")
	}
	if p.ID == "" {
		return "", events.Player{}, errors.New("player without id")
	}
	return lobbyID, p, nil
}

func decodePlayerJoined(args []json.RawMessage) (any, error) {
	lobbyID, p, err := playerArgs(args)
	if err != nil {
		return nil, err
	}
	return events.PlayerJoinedEvent{LobbyID: lobbyID, Player: p}, nil
}

func decodePlayerLeft(args []json.RawMessage) (any, error) {
	lobbyID, p, err := playerArgs(args)
	if err != nil {
		return nil, err
	}
	return events.PlayerLeftEvent{LobbyID: lobbyID, Player: p}, nil
}

func decodeLobbyCreated(args []json.RawMessage) (any, error) {
	f, err := firstObject(args)
	if err != nil {
		return nil, err
	}
	l := decodeLobbySummary(f)
	if l.ID == "" {
		return nil, errors.New("lobby without id")
	}
	return events.LobbyCreatedEvent{Lobby: l}, nil
}

func decodeLobbySummary(f fields) events.LobbySummary {
	l := events.LobbySummary{
		ID:             f.str("id", "lobbyId"),
		GameType:       f.str("gameType"),
		HostPseudo:     f.str("hostPseudo"),
		CurrentPlayers: f.integer("currentPlayers", "playerCount"),
		MaxPlayers:     f.integer("maxPlayers"),
		IsPrivate:      f.flag("isPrivate"),
	}
	if l.MaxPlayers > 0 && l.CurrentPlayers > l.MaxPlayers {
		l.CurrentPlayers = l.MaxPlayers
	}
	return l
}

// LobbyDeleted carries either {lobbyId} or the bare id.
func decodeLobbyDeleted(args []json.RawMessage) (any, error) {
	id, reason, err := lobbyRef(args)
	if err != nil {
		return nil, err
	}
	return events.LobbyDeletedEvent{LobbyID: id, Reason: reason}, nil
}

func decodeLobbyClosed(args []json.RawMessage) (any, error) {
	if len(args) == 0 {
		return events.LobbyClosedEvent{}, nil
	}
	id, reason, err := lobbyRef(args)
	if err != nil {
		return nil, err
	}
	return events.LobbyClosedEvent{LobbyID: id, Reason: reason}, nil
}

func lobbyRef(args []json.RawMessage) (id, reason string, err error) {
	if len(args) == 0 {
		return "", "", errors.New("missing lobby argument")
	}
	if s, ok := asString(args[0]); ok {
		return s, "", nil
	}
	f, err := objectFields(args[0])
	if err != nil {
		return "", "", err
	}
	return f.str("lobbyId", "id"), f.str("reason", "message"), nil
}

func decodeGameStarted(args []json.RawMessage) (any, error) {
	f, err := firstObject(args)
	if err != nil {
		return nil, err
	}
	e := events.GameStartedEvent{
		LobbyID:   f.str("lobbyId"),
		SessionID: f.str("gameSessionId", "sessionId"),
		GameType:  strings.ToLower(f.str("gameType")),
	}
	if e.SessionID == "" {
		return nil, errors.New("game started without session id")
	}
	return e, nil
}

// ── Connect 4 hub ───────────────────────────────────────────────────────

func decodeBoardInitialized(args []json.RawMessage) (any, error) {
	f, err := firstObject(args)
	if err != nil {
		return nil, err
	}
	board, err := f.grid("board")
	if err != nil {
		return nil, err
	}
	return events.BoardInitializedEvent{
		Board:       board,
		CurrentTurn: f.str("currentPlayerTurn", "currentPlayerId"),
		Player1:     f.slot("player1"),
		Player2:     f.slot("player2"),
	}, nil
}

// PieceDropped carries the authoritative state either nested under
// gameState or flattened into the event itself.
func decodePieceDropped(args []json.RawMessage) (any, error) {
	f, err := firstObject(args)
	if err != nil {
		return nil, err
	}
	state := f
	if nested, ok := f.object("gameState"); ok {
		state = nested
	}
	board, err := state.grid("board")
	if err != nil {
		return nil, err
	}
	return events.PieceDroppedEvent{
		Board:       board,
		CurrentTurn: state.str("currentPlayerTurn", "currentPlayerId"),
		Column:      f.integer("column", "col"),
		Row:         f.integer("row"),
		PlayerID:    f.str("playerId"),
		Symbol:      f.str("symbol"),
	}, nil
}

func decodeBoardGameOver(args []json.RawMessage) (any, error) {
	f, err := firstObject(args)
	if err != nil {
		return nil, err
	}
	e := events.BoardGameOverEvent{
		WinnerID:     f.str("winnerId", "winner"),
		WinnerPseudo: f.str("winnerPseudo"),
		IsDraw:       f.flag("isDraw"),
	}
	if state, ok := f.object("gameState"); ok {
		if e.Board, err = state.grid("board"); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ── SpeedTyping hub ─────────────────────────────────────────────────────

func decodeRaceInitialized(args []json.RawMessage) (any, error) {
	f, err := firstObject(args)
	if err != nil {
		return nil, err
	}
	e := events.RaceInitializedEvent{Text: f.str("text", "textToType")}
	seen := map[string]bool{}
	add := func(s *events.Slot) {
		if s != nil && !seen[s.ID] {
			seen[s.ID] = true
			e.Players = append(e.Players, events.Player{ID: s.ID, Pseudo: s.Pseudo})
		}
	}
	add(f.slot("player1"))
	add(f.slot("player2"))
	for _, pf := range f.objects("players") {
		add(slotFrom(pf))
	}
	return e, nil
}

func decodeCountdownTick(args []json.RawMessage) (any, error) {
	if len(args) > 0 {
		if n, ok := asNumber(args[0]); ok {
			return events.CountdownTickEvent{RemainingSeconds: int(n)}, nil
		}
	}
	f, err := firstObject(args)
	if err != nil {
		return nil, err
	}
	return events.CountdownTickEvent{RemainingSeconds: f.integer("remainingSeconds", "seconds", "countdown")}, nil
}

func decodeProgressUpdated(args []json.RawMessage) (any, error) {
	f, err := firstObject(args)
	if err != nil {
		return nil, err
	}
	e := events.ProgressUpdatedEvent{
		PlayerID: f.str("playerId", "id"),
		Pseudo:   f.str("pseudo", "playerPseudo"),
		Progress: f.num("progressPercentage", "progress", "percentageComplete"),
		WPM:      f.num("wpm"),
		Accuracy: f.num("accuracy"),
	}
	if e.PlayerID == "" {
		return nil, errors.New("progress without player id")
	}
	return e, nil
}

func decodePlayerFinished(args []json.RawMessage) (any, error) {
	f, err := firstObject(args)
	if err != nil {
		return nil, err
	}
	e := events.PlayerFinishedEvent{
		PlayerID:   f.str("playerId", "id"),
		Pseudo:     f.str("pseudo", "playerPseudo"),
		FinishTime: f.num("timeSeconds", "finishTime", "time"),
		Rank:       f.integer("rank", "position"),
		WPM:        f.num("wpm"),
		Accuracy:   f.num("accuracy"),
	}
	if e.PlayerID == "" {
		return nil, errors.New("finish without player id")
	}
	return e, nil
}

func decodeRaceOver(args []json.RawMessage) (any, error) {
	f, err := firstObject(args)
	if err != nil {
		return nil, err
	}
	var rows []fields
	for _, key := range []string{"finalResults", "rankings", "finalRankings", "results"} {
		if rows = f.objects(key); len(rows) > 0 {
			break
		}
	}
	e := events.RaceOverEvent{Rankings: make([]events.RankingEntry, 0, len(rows))}
	for i, r := range rows {
		entry := events.RankingEntry{
			PlayerID:    r.str("playerId", "id"),
			Pseudo:      r.str("pseudo", "playerPseudo"),
			Rank:        r.integer("rank", "position"),
			WPM:         r.num("wpm"),
			Accuracy:    r.num("accuracy"),
			TimeSeconds: r.num("timeSeconds", "time", "finishTime"),
		}
		if entry.Rank == 0 {
			entry.Rank = i + 1
		}
		e.Rankings = append(e.Rankings, entry)
	}
	sort.SliceStable(e.Rankings, func(i, j int) bool { return e.Rankings[i].Rank < e.Rankings[j].Rank })
	return e, nil
}

// ── Shared ──────────────────────────────────────────────────────────────

func decodeInvalidMove(args []json.RawMessage) (any, error) {
	if len(args) > 0 {
		if s, ok := asString(args[0]); ok {
			return events.InvalidMoveEvent{Reason: s}, nil
		}
	}
	f, err := firstObject(args)
	if err != nil {
		return nil, err
	}
	return events.InvalidMoveEvent{Reason: f.str("reason", "message", "error")}, nil
}

func decodeGameError(args []json.RawMessage) (any, error) {
	if len(args) > 0 {
		if s, ok := asString(args[0]); ok {
			return events.GameErrorEvent{Message: s}, nil
		}
	}
	f, err := firstObject(args)
	if err != nil {
		return nil, err
	}
	return events.GameErrorEvent{Message: f.str("error", "message", "reason")}, nil
}

// ── Field access ────────────────────────────────────────────────────────

// fields is a JSON object keyed by lower-cased property name, so camelCase
// and PascalCase payloads read the same.
type fields map[string]json.RawMessage

func objectFields(raw json.RawMessage) (fields, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("expected object: %w", err)
	}
	f := make(fields, len(m))
	for k, v := range m {
		f[strings.ToLower(k)] = v
	}
	return f, nil
}

func firstObject(args []json.RawMessage) (fields, error) {
	if len(args) == 0 {
		return fields{}, nil
	}
	if isNull(args[0]) {
		return fields{}, nil
	}
	return objectFields(args[0])
}

func (f fields) raw(key string) (json.RawMessage, bool) {
	v, ok := f[strings.ToLower(key)]
	if !ok || isNull(v) {
		return nil, false
	}
	return v, true
}

// str returns the first non-empty string among keys.
func (f fields) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := f.raw(k); ok {
			if s, ok := asString(v); ok && s != "" {
				return s
			}
			if n, ok := asNumber(v); ok {
				return strconv.FormatFloat(n, 'f', -1, 64)
			}
		}
	}
	return ""
}

// num returns the first non-zero number among keys.
func (f fields) num(keys ...string) float64 {
	for _, k := range keys {
		if v, ok := f.raw(k); ok {
			if n, ok := asNumber(v); ok && n != 0 {
				return n
			}
		}
	}
	return 0
}

func (f fields) integer(keys ...string) int {
	return int(f.num(keys...))
}

func (f fields) flag(key string) bool {
	v, ok := f.raw(key)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	s, _ := asString(v)
	return strings.EqualFold(s, "true")
}

func (f fields) object(key string) (fields, bool) {
	v, ok := f.raw(key)
	if !ok {
		return nil, false
	}
	o, err := objectFields(v)
	return o, err == nil
}

func (f fields) objects(key string) []fields {
	v, ok := f.raw(key)
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil
	}
	out := make([]fields, 0, len(items))
	for _, it := range items {
		if o, err := objectFields(it); err == nil {
			out = append(out, o)
		}
	}
	return out
}

func (f fields) slot(key string) *events.Slot {
	o, ok := f.object(key)
	if !ok {
		return nil
	}
	return slotFrom(o)
}

func slotFrom(o fields) *events.Slot {
	s := &events.Slot{
		ID:     o.str("id", "playerId"),
		Pseudo: o.str("pseudo", "playerPseudo"),
		Symbol: o.str("symbol"),
	}
	if s.ID == "" {
		return nil
	}
	return s
}

// grid reads a 2-D board of raw cell tokens. Null cells become "".
// A missing board yields nil so callers can tell "absent" from "empty".
func (f fields) grid(key string) ([][]string, error) {
	v, ok := f.raw(key)
	if !ok {
		return nil, nil
	}
	var rows [][]json.RawMessage
	if err := json.Unmarshal(v, &rows); err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	out := make([][]string, len(rows))
	for r, row := range rows {
		out[r] = make([]string, len(row))
		for c, cell := range row {
			out[r][c] = cellToken(cell)
		}
	}
	return out, nil
}

func cellToken(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	if s, ok := asString(raw); ok {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func asString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// asNumber accepts JSON numbers and numeric strings.
func asNumber(raw json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	if s, ok := asString(raw); ok {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
