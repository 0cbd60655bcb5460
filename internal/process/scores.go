package process

import (
	"context"
	"sync"
	"time"

	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/core/state/game/race"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

var _ race.ScoreRecorder = (*ScoreReporter)(nil)

// ScoreAPI posts a leaderboard entry. Satisfied by *api_http.Client.
type ScoreAPI interface {
	AddScore(ctx context.Context, gameType, playerID string, score float64, elapsed time.Duration) error
}

// ScoreReporter submits finished-race scores off the loop. Failures are
// logged only; the race result on screen does not depend on them.
type ScoreReporter struct {
	api     ScoreAPI
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewScoreReporter(api ScoreAPI, timeout time.Duration) *ScoreReporter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ScoreReporter{api: api, timeout: timeout}
}

func (r *ScoreReporter) RecordScore(kind game.Kind, playerID string, wpm float64, elapsed time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.api.AddScore(ctx, kind.ServerName(), playerID, wpm, elapsed); err != nil {
			telemetry.Warnf("[score] %s %.0f wpm not saved: %v", kind, wpm, err)
			return
		}
		telemetry.Infof("[score] %s %.0f wpm saved (%s)", kind, wpm, elapsed.Round(time.Millisecond))
	}()
}

// Wait blocks until every submitted score has been posted or failed.
func (r *ScoreReporter) Wait() { r.wg.Wait() }
