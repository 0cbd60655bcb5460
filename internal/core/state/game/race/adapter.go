// Package race drives a SpeedTyping session from the speedtyping hub.
package race

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/events"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

// Change names reported to observers.
const (
	ChangeText      = "TEXT"
	ChangeCountdown = "COUNTDOWN"
	ChangeProgress  = "PROGRESS"
	ChangeFinished  = "FINISHED"
	ChangeRaceOver  = "RACE OVER"
)

var (
	ErrMismatch        = errors.New("character does not match the text")
	ErrAlreadyFinished = errors.New("already finished")
)

// ScoreRecorder stores the local player's result. Implementations must
// not block the loop.
type ScoreRecorder interface {
	RecordScore(kind game.Kind, playerID string, wpm float64, elapsed time.Duration)
}

// Racer is one player's line in the race.
type Racer struct {
	ID         string
	Pseudo     string
	Progress   float64
	WPM        float64
	Accuracy   float64
	Finished   bool
	FinishTime float64
	Rank       int
}

// Adapter is the SpeedTyping game state for one session.
// All methods run on the context loop.
type Adapter struct {
	session *game.Session
	cmd     game.Commander
	clock   clockwork.Clock
	scores  ScoreRecorder

	text  []rune
	typed int

	// reported is the highest count the server acknowledged.
	reported  int
	reporting bool

	// Countdown is the last remaining-seconds tick, display only.
	Countdown int

	racers map[string]*Racer
	order  []string

	Rankings []events.RankingEntry

	finished  bool
	startedAt time.Time
	elapsed   time.Duration
}

// New binds a race adapter to s. scores may be nil.
func New(s *game.Session, cmd game.Commander, clock clockwork.Clock, scores ScoreRecorder) *Adapter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	a := &Adapter{
		session: s,
		cmd:     cmd,
		clock:   clock,
		scores:  scores,
		racers:  make(map[string]*Racer),
	}
	s.Game = a
	return a
}

func (a *Adapter) Kind() game.Kind        { return game.KindSpeedTyping }
func (a *Adapter) Session() *game.Session { return a.session }

func (a *Adapter) EventTypes() []events.EventType {
	return append([]events.EventType{
		events.EventRaceInitialized,
		events.EventCountdownTick,
		events.EventRaceStarted,
		events.EventProgressUpdated,
		events.EventPlayerFinished,
		events.EventRaceOver,
	}, game.SharedEventTypes()...)
}

// Text is the normalized target text.
func (a *Adapter) Text() string { return string(a.text) }

// Typed is the number of runes accepted so far.
func (a *Adapter) Typed() int { return a.typed }

// Finished reports the local finish latch.
func (a *Adapter) Finished() bool { return a.finished }

// Elapsed is the local time from the first accepted rune to the last one.
func (a *Adapter) Elapsed() time.Duration { return a.elapsed }

// Racers returns copies of the race records in arrival order.
func (a *Adapter) Racers() []Racer {
	out := make([]Racer, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.racers[id])
	}
	return out
}

// Racer returns one record by id.
func (a *Adapter) Racer(id string) (Racer, bool) {
	r, ok := a.racers[id]
	if !ok {
		return Racer{}, false
	}
	return *r, true
}

func (a *Adapter) racer(id, pseudo string) *Racer {
	if r, ok := a.racers[id]; ok {
		if r.Pseudo == "" || r.Pseudo == "Unknown" {
			if pseudo != "" {
				r.Pseudo = pseudo
			}
		}
		return r
	}
	if pseudo == "" {
		pseudo = "Unknown"
	}
	r := &Racer{ID: id, Pseudo: pseudo}
	a.racers[id] = r
	a.order = append(a.order, id)
	return r
}

func (a *Adapter) HandleEvent(e events.Event) error {
	if a.session.HandleShared(e) {
		return nil
	}
	if a.session.Terminal() {
		return nil
	}
	switch p := e.Payload.(type) {
	case events.RaceInitializedEvent:
		a.onInitialized(p)
	case events.CountdownTickEvent:
		a.onCountdown(p)
	case events.RaceStartedEvent:
		a.onStarted()
	case events.ProgressUpdatedEvent:
		a.onProgress(p)
	case events.PlayerFinishedEvent:
		a.onPlayerFinished(p)
	case events.RaceOverEvent:
		a.onRaceOver(p)
	default:
		return fmt.Errorf("race: unexpected payload %T for %s", e.Payload, e.Type)
	}
	return nil
}

func (a *Adapter) onInitialized(p events.RaceInitializedEvent) {
	text := []rune(Normalize(p.Text))
	if len(a.text) > 0 && string(text) != string(a.text) {
		telemetry.Warnf("race %s: target text changed after initialization", a.session.ID)
		a.typed = 0
		a.reported = 0
		a.finished = false
	}
	a.text = text
	for _, pl := range p.Players {
		if pl.ID != "" {
			a.racer(pl.ID, pl.Pseudo)
		}
	}
	if a.session.Phase() == game.PhaseUninitialized {
		a.advance(game.PhaseInitialized)
	}
	a.session.Notify(ChangeText)
}

func (a *Adapter) onCountdown(p events.CountdownTickEvent) {
	a.Countdown = p.RemainingSeconds
	if a.session.Phase() == game.PhaseInitialized {
		a.advance(game.PhaseCountdown)
	}
	a.session.Notify(ChangeCountdown)
}

func (a *Adapter) onStarted() {
	a.Countdown = 0
	if a.session.Phase() == game.PhaseInitialized || a.session.Phase() == game.PhaseCountdown {
		a.advance(game.PhaseActive)
	}
}

func (a *Adapter) advance(to game.Phase) {
	if err := a.session.Advance(to); err != nil {
		telemetry.Warnf("race %s: %v", a.session.ID, err)
	}
}

func (a *Adapter) onProgress(p events.ProgressUpdatedEvent) {
	if p.PlayerID == "" {
		return
	}
	r := a.racer(p.PlayerID, p.Pseudo)
	if !r.Finished {
		r.Progress = clampProgress(max(r.Progress, p.Progress))
	}
	if p.WPM > 0 {
		r.WPM = p.WPM
	}
	if p.Accuracy > 0 {
		r.Accuracy = p.Accuracy
	}
	a.session.Notify(ChangeProgress)
}

func (a *Adapter) onPlayerFinished(p events.PlayerFinishedEvent) {
	if p.PlayerID == "" {
		return
	}
	r := a.racer(p.PlayerID, p.Pseudo)
	r.Finished = true
	r.Progress = 100
	if p.Rank > 0 {
		r.Rank = p.Rank
	}
	if p.FinishTime > 0 {
		r.FinishTime = p.FinishTime
	}
	if p.WPM > 0 {
		r.WPM = p.WPM
	}
	if p.Accuracy > 0 {
		r.Accuracy = p.Accuracy
	}
	if p.PlayerID == a.session.PlayerID {
		a.finishLocally()
	}
	a.session.Notify(ChangeFinished)
}

func (a *Adapter) onRaceOver(p events.RaceOverEvent) {
	rankings := append([]events.RankingEntry(nil), p.Rankings...)
	sort.SliceStable(rankings, func(i, j int) bool { return rankings[i].Rank < rankings[j].Rank })
	a.Rankings = rankings

	for _, e := range rankings {
		if e.PlayerID == "" {
			continue
		}
		r := a.racer(e.PlayerID, e.Pseudo)
		r.Rank = e.Rank
		if e.WPM > 0 {
			r.WPM = e.WPM
		}
		if e.Accuracy > 0 {
			r.Accuracy = e.Accuracy
		}
		if e.TimeSeconds > 0 {
			r.FinishTime = e.TimeSeconds
		}
	}
	a.session.Terminate()
	a.recordScore()
	a.session.Notify(ChangeRaceOver)
}

func (a *Adapter) recordScore() {
	if a.scores == nil {
		return
	}
	for _, e := range a.Rankings {
		if e.PlayerID != a.session.PlayerID || e.WPM <= 0 {
			continue
		}
		elapsed := time.Duration(e.TimeSeconds * float64(time.Second))
		if elapsed <= 0 {
			elapsed = a.elapsed
		}
		a.scores.RecordScore(game.KindSpeedTyping, e.PlayerID, e.WPM, elapsed)
		return
	}
}

// StartRace asks the server to begin the countdown. Host only, from Initialized.
func (a *Adapter) StartRace() error {
	switch {
	case !a.session.Host:
		return game.ErrNotHost
	case a.session.Terminal():
		return game.ErrGameOver
	case a.session.Phase() != game.PhaseInitialized:
		return fmt.Errorf("%w: race is %s", game.ErrNotActive, a.session.Phase())
	}
	a.cmd.Submit("StartRace", []any{a.session.LobbyID, a.session.ID}, a.session.CommandDone("StartRace"))
	return nil
}

// InitializeGame is sent by the host once the players are in the room.
func (a *Adapter) InitializeGame(playerIDs []string) error {
	switch {
	case !a.session.Host:
		return game.ErrNotHost
	case a.session.Terminal():
		return game.ErrGameOver
	case len(playerIDs) < 2:
		return fmt.Errorf("%w: need 2, have %d", game.ErrNotEnoughPlayers, len(playerIDs))
	}
	a.cmd.Submit("InitializeGame", []any{a.session.LobbyID, a.session.ID, playerIDs}, a.session.CommandDone("InitializeGame"))
	return nil
}

// Type offers one rune. It is accepted only if it is the next rune of the
// text; accepted runes are reported to the server, rejected ones are not.
func (a *Adapter) Type(r rune) error {
	_, err := a.TypeString(string(r))
	return err
}

// TypeString accepts the longest prefix of s (normalized) that continues
// the text and returns its length. A shorter prefix than s reports why
// the rest was refused.
func (a *Adapter) TypeString(s string) (int, error) {
	switch {
	case a.session.Terminal():
		return 0, game.ErrGameOver
	case a.session.Phase() != game.PhaseActive:
		return 0, game.ErrNotActive
	case a.finished, a.typed >= len(a.text):
		return 0, ErrAlreadyFinished
	}
	in := []rune(Normalize(s))
	n := AcceptedLength(string(a.text[a.typed:]), string(in))
	if n > 0 {
		if a.typed == 0 {
			a.startedAt = a.clock.Now()
		}
		a.typed += n
		a.reportProgress()

		if me, ok := a.racers[a.session.PlayerID]; ok && !me.Finished {
			me.Progress = clampProgress(max(me.Progress, 100*float64(a.typed)/float64(len(a.text))))
		}
		if a.typed == len(a.text) {
			a.finishLocally()
		}
		a.session.Notify(ChangeProgress)
	}
	switch {
	case n == len(in):
		return n, nil
	case a.typed >= len(a.text):
		return n, ErrAlreadyFinished
	}
	return n, ErrMismatch
}

// reportProgress keeps at most one UpdateProgress in flight. The count is
// a running total, so runes typed meanwhile go out with the next one.
func (a *Adapter) reportProgress() {
	if a.reporting || a.reported >= a.typed {
		return
	}
	a.reporting = true
	sent := a.typed
	reject := a.session.CommandDone("UpdateProgress")
	a.cmd.Submit("UpdateProgress",
		[]any{a.session.LobbyID, a.session.ID, a.session.PlayerID, sent, 0},
		func(err error) {
			a.reporting = false
			if err != nil {
				reject(err)
			} else {
				a.reported = max(a.reported, sent)
			}
			if a.typed > sent {
				a.reportProgress()
			}
		})
}

// Resync resends the local count if the server has not acknowledged it,
// e.g. when the last update was lost with the connection.
func (a *Adapter) Resync() {
	if a.session.Terminal() || a.session.Phase() != game.PhaseActive {
		return
	}
	a.reportProgress()
}

func (a *Adapter) finishLocally() {
	if a.finished {
		return
	}
	a.finished = true
	if !a.startedAt.IsZero() {
		a.elapsed = a.clock.Since(a.startedAt)
	}
}

func clampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
