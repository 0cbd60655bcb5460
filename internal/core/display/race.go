package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charleschow/arcade-client/internal/core/state/game"
	"github.com/charleschow/arcade-client/internal/core/state/game/race"
)

const barWidth = 20

func PrintRace(w io.Writer, s *game.Session, change string) {
	a, ok := s.Game.(*race.Adapter)
	if !ok {
		return
	}

	divider := dividerHeavy
	if change == race.ChangeProgress || change == race.ChangeCountdown {
		divider = dividerLight
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s] speedtyping %s%s\n", change, shortID(s.ID), connTag(s))
	fmt.Fprintf(&b, "%s\n", divider)

	switch change {
	case game.ChangeRejected:
		fmt.Fprintf(&b, "  rejected: %s\n", s.LastError)
	case game.ChangeClosed:
		fmt.Fprintf(&b, "  race ended: %s\n", orText(s.CloseReason, "the lobby was closed"))
	case race.ChangeCountdown:
		fmt.Fprintf(&b, "  Starting in %d...\n", a.Countdown)
	case race.ChangeRaceOver:
		fmt.Fprintf(&b, "  Final ranking\n")
		for _, r := range a.Rankings {
			me := ""
			if r.PlayerID == s.PlayerID {
				me = " (you)"
			}
			fmt.Fprintf(&b, "    #%d %-16s %6.1f wpm  %5.1f%%  %.2fs%s\n",
				r.Rank, orText(r.Pseudo, r.PlayerID), r.WPM, r.Accuracy, r.TimeSeconds, me)
		}
	default:
		writeRaceBody(&b, a, s)
	}
	fmt.Fprintf(&b, "%s\n", divider)

	fmt.Fprint(w, b.String())
}

func writeRaceBody(b *strings.Builder, a *race.Adapter, s *game.Session) {
	text := []rune(a.Text())
	typed := a.Typed()
	if typed > len(text) {
		typed = len(text)
	}
	fmt.Fprintf(b, "  %s[%s]\n", string(text[:typed]), string(text[typed:]))
	for _, r := range a.Racers() {
		status := fmt.Sprintf("%5.1f%%", r.Progress)
		if r.Finished {
			status = fmt.Sprintf("done #%d", r.Rank)
		}
		me := ""
		if r.ID == s.PlayerID {
			me = " (you)"
		}
		fmt.Fprintf(b, "    %-16s %s %-9s %5.1f wpm%s\n", orText(r.Pseudo, r.ID), bar(r.Progress), status, r.WPM, me)
	}
	switch {
	case a.Finished():
		fmt.Fprintf(b, "  Finished in %.2fs, waiting for results\n", a.Elapsed().Seconds())
	case s.Phase() == game.PhaseActive:
		fmt.Fprintf(b, "  Go! (type <text>)\n")
	case s.Phase() == game.PhaseInitialized && s.Host:
		fmt.Fprintf(b, "  Waiting to start (race)\n")
	default:
		fmt.Fprintf(b, "  Waiting (%s)\n", s.Phase())
	}
}

func bar(pct float64) string {
	n := int(pct / 100 * barWidth)
	if n < 0 {
		n = 0
	}
	if n > barWidth {
		n = barWidth
	}
	return "[" + strings.Repeat("#", n) + strings.Repeat(".", barWidth-n) + "]"
}
