package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charleschow/arcade-client/internal/adapters/outbound/api_http"
	"github.com/charleschow/arcade-client/internal/core/lobby"
)

func PrintLobby(w io.Writer, d *lobby.Detail, change string) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s] lobby %s  %s\n", change, d.LobbyID, d.GameType)
	fmt.Fprintf(&b, "%s\n", dividerLight)
	switch change {
	case lobby.ChangeFailed:
		fmt.Fprintf(&b, "  could not open lobby: %v\n", d.Err)
	case lobby.ChangeClosed:
		fmt.Fprintf(&b, "  Lobby closed: %s\n", d.Notice)
	case lobby.ChangeLeft:
		fmt.Fprintf(&b, "  You left the lobby\n")
	case lobby.ChangeStarting:
		fmt.Fprintf(&b, "  Game starting...\n")
	default:
		fmt.Fprintf(&b, "  Players %d/%d\n", len(d.Players), d.MaxPlayers)
		for i, p := range d.Players {
			tag := ""
			if i == 0 {
				tag = " (host)"
			}
			fmt.Fprintf(&b, "    %d. %s%s\n", i+1, orText(p.Pseudo, p.ID), tag)
		}
		if d.Notice != "" {
			fmt.Fprintf(&b, "  ! %s\n", d.Notice)
		}
		if d.IsHost() {
			fmt.Fprintf(&b, "  You are host: start | delete | leave\n")
		} else {
			fmt.Fprintf(&b, "  Waiting for the host to start | leave\n")
		}
	}
	fmt.Fprintf(&b, "%s\n", dividerLight)
	fmt.Fprint(w, b.String())
}

func PrintList(w io.Writer, l *lobby.List) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[LOBBIES] %d open\n", len(l.Lobbies))
	fmt.Fprintf(&b, "%s\n", dividerLight)
	for _, lb := range l.Lobbies {
		lock := ""
		if lb.IsPrivate {
			lock = " (private)"
		}
		fmt.Fprintf(&b, "  %-36s %-12s %d/%d  host %s%s\n",
			lb.ID, lb.GameType, lb.CurrentPlayers, lb.MaxPlayers, orText(lb.HostPseudo, "?"), lock)
	}
	if len(l.Lobbies) == 0 {
		fmt.Fprintf(&b, "  no open lobbies: create <game> [max] [password]\n")
	}
	if l.Notice != "" {
		fmt.Fprintf(&b, "  ! %s\n", l.Notice)
	}
	fmt.Fprintf(&b, "%s\n", dividerLight)
	fmt.Fprint(w, b.String())
}

func PrintLeaderboard(w io.Writer, lb api_http.LeaderboardResponse) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[LEADERBOARD] %s  %d entries\n", lb.GameType, lb.TotalEntries)
	fmt.Fprintf(&b, "%s\n", dividerLight)
	listed := false
	for _, e := range lb.Entries {
		me := ""
		if e.IsCurrentPlayer {
			me = "  <- you"
			listed = true
		}
		fmt.Fprintf(&b, "  %3d. %-20s %8.1f  %s%s\n", e.Rank, e.Pseudo, e.Score, orText(e.TimeFormatted, e.Time), me)
	}
	if me := lb.CurrentPlayerEntry; me != nil && !listed {
		fmt.Fprintf(&b, "  ...\n  %3d. %-20s %8.1f  %s  <- you\n", me.Rank, me.Pseudo, me.Score, orText(me.TimeFormatted, me.Time))
	}
	fmt.Fprintf(&b, "%s\n", dividerLight)
	fmt.Fprint(w, b.String())
}

func PrintSessions(w io.Writer, sessions []api_http.GameSessionSummary) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[SESSIONS] %d recorded\n", len(sessions))
	fmt.Fprintf(&b, "%s\n", dividerLight)
	for _, s := range sessions {
		fmt.Fprintf(&b, "  %-36s %-12s %2dp %4d moves  %s -> %s\n",
			s.ID, s.GameType, s.PlayerCount, s.TotalActions, s.StartedAt, orText(s.FinishedAt, "running"))
	}
	fmt.Fprintf(&b, "%s\n", dividerLight)
	fmt.Fprint(w, b.String())
}

func PrintHistory(w io.Writer, h api_http.GameHistory) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[HISTORY] %s  %s  %s\n", h.GameSessionID, h.GameType, orText(h.Duration, "running"))
	fmt.Fprintf(&b, "%s\n", dividerLight)
	for _, a := range h.Actions {
		fmt.Fprintf(&b, "  %-12s %-16s %-14s %s\n", a.TimeSinceStart, orText(a.PlayerPseudo, a.PlayerID), a.ActionType, a.ActionData)
	}
	for _, p := range h.PlayerSummaries {
		fmt.Fprintf(&b, "  %s: %d actions\n", orText(p.Pseudo, p.PlayerID), p.ActionCount)
	}
	fmt.Fprintf(&b, "%s\n", dividerLight)
	fmt.Fprint(w, b.String())
}
