package referee

import "github.com/cheildo/parity-league-backend/internal/protocol"

// Winner identifies which participant, if any, won the resolved game.
type Winner int

const (
	WinnerNone Winner = iota
	WinnerA
	WinnerB
)

// ParityOf returns "even" or "odd" for a drawn number.
func ParityOf(n int) string {
	if n%2 == 0 {
		return protocol.ChoiceEven
	}
	return protocol.ChoiceOdd
}

// ResolveWinner applies the even/odd rule: the win goes to the participant
// whose declared parity matches the draw's parity, but only when the other
// participant's declaration does not also match. Two identical declarations
// are always a draw, regardless of whether they match the drawn parity.
// Pure function of its inputs; the random draw happens elsewhere.
func ResolveWinner(drawnNumber int, choiceA, choiceB string) Winner {
	parity := ParityOf(drawnNumber)
	aMatches := choiceA == parity
	bMatches := choiceB == parity

	switch {
	case aMatches && !bMatches:
		return WinnerA
	case bMatches && !aMatches:
		return WinnerB
	default:
		return WinnerNone
	}
}
