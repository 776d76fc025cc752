// Package player implements a league participant: it registers with the
// league manager, joins games it is invited to, declares a parity per its
// configured strategy, and tracks its own results.
package player

import (
	"log/slog"
	"math/rand"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// Outcome of one game from this player's perspective.
const (
	OutcomeWin  = "win"
	OutcomeLoss = "loss"
	OutcomeDraw = "draw"
)

// GameRecord is one completed game in the player's history.
type GameRecord struct {
	MatchID        string
	OpponentID     string
	MyChoice       string
	OpponentChoice string
	DrawnNumber    int
	Outcome        string
	Timestamp      string
}

// Strategy picks the parity declaration for the next game. LastChoice is
// empty before the first declaration.
type Strategy interface {
	Name() string
	Choose(history []GameRecord, lastChoice string) string
}

// Strategy names accepted by NewStrategy.
const (
	StrategyRandom      = "random"
	StrategyAlternating = "alternating"
	StrategyHistory     = "history"
)

// NewStrategy maps a configured name to its implementation, falling back to
// random for anything unrecognized.
func NewStrategy(name string) Strategy {
	switch name {
	case StrategyRandom:
		return NewRandom()
	case StrategyAlternating:
		return NewAlternating()
	case StrategyHistory:
		return NewHistory()
	default:
		slog.Warn("Unknown strategy, falling back to random", "strategy", name)
		return NewRandom()
	}
}

func coinFlip() string {
	if rand.Intn(2) == 0 {
		return protocol.ChoiceEven
	}
	return protocol.ChoiceOdd
}

// Random declares even or odd uniformly at random.
type Random struct {
	coin func() string
}

func NewRandom() *Random { return &Random{coin: coinFlip} }

func (r *Random) Name() string { return StrategyRandom }

func (r *Random) Choose(_ []GameRecord, _ string) string { return r.coin() }

// Alternating flips its declaration every game, starting at random.
type Alternating struct {
	coin func() string
}

func NewAlternating() *Alternating { return &Alternating{coin: coinFlip} }

func (a *Alternating) Name() string { return StrategyAlternating }

func (a *Alternating) Choose(_ []GameRecord, lastChoice string) string {
	switch lastChoice {
	case protocol.ChoiceEven:
		return protocol.ChoiceOdd
	case protocol.ChoiceOdd:
		return protocol.ChoiceEven
	default:
		return a.coin()
	}
}

// History leans on whichever declaration has won more of the last ten games,
// alternating when the record is even.
type History struct {
	coin func() string
}

func NewHistory() *History { return &History{coin: coinFlip} }

func (h *History) Name() string { return StrategyHistory }

func (h *History) Choose(history []GameRecord, lastChoice string) string {
	if len(history) == 0 {
		return h.coin()
	}

	recent := history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	var evenWins, oddWins int
	for _, rec := range recent {
		if rec.Outcome != OutcomeWin {
			continue
		}
		switch rec.MyChoice {
		case protocol.ChoiceEven:
			evenWins++
		case protocol.ChoiceOdd:
			oddWins++
		}
	}

	switch {
	case evenWins > oddWins:
		return protocol.ChoiceEven
	case oddWins > evenWins:
		return protocol.ChoiceOdd
	default:
		return (&Alternating{coin: h.coin}).Choose(nil, lastChoice)
	}
}
