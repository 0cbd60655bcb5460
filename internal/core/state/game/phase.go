package game

import (
	"errors"
	"fmt"
	"strings"
)

// Phase is the lifecycle position of a game session. Phases only move forward.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInitialized
	PhaseCountdown
	PhaseActive
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitialized:
		return "initialized"
	case PhaseCountdown:
		return "countdown"
	case PhaseActive:
		return "active"
	case PhaseTerminal:
		return "terminal"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Kind names a game type the way the lobby service spells it, lowercased.
type Kind string

const (
	KindConnect4    Kind = "connect4"
	KindSpeedTyping Kind = "speedtyping"
)

// ParseKind accepts the spellings the server and users produce
// ("Puissance4", "connect 4", "Speed_Typing") and returns the canonical kind.
func ParseKind(s string) (Kind, error) {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	switch k := Kind(strings.ToLower(r.Replace(strings.TrimSpace(s)))); k {
	case KindConnect4, "puissance4":
		return KindConnect4, nil
	case KindSpeedTyping:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGame, s)
}

// ServerName is the game type string the REST API expects.
func (k Kind) ServerName() string {
	switch k {
	case KindConnect4:
		return "Puissance4"
	case KindSpeedTyping:
		return "SpeedTyping"
	}
	return string(k)
}

var (
	ErrUnknownGame       = errors.New("unknown game type")
	ErrIllegalTransition = errors.New("illegal phase transition")
	ErrNotActive         = errors.New("game is not active")
	ErrGameOver          = errors.New("game is over")
	ErrNotHost           = errors.New("only the host can do that")
	ErrNotEnoughPlayers  = errors.New("not enough players")
	ErrCommandPending    = errors.New("previous command still pending")
)
