package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fixedCoin(choice string) func() string {
	return func() string { return choice }
}

func TestNewStrategy(t *testing.T) {
	assert.Equal(t, "random", NewStrategy("random").Name())
	assert.Equal(t, "alternating", NewStrategy("alternating").Name())
	assert.Equal(t, "history", NewStrategy("history").Name())
	assert.Equal(t, "random", NewStrategy("clairvoyant").Name())
}

func TestRandomChoosesLegalParity(t *testing.T) {
	s := NewRandom()
	for i := 0; i < 20; i++ {
		choice := s.Choose(nil, "")
		assert.Contains(t, []string{"even", "odd"}, choice)
	}
}

func TestAlternatingFlips(t *testing.T) {
	s := NewAlternating()
	assert.Equal(t, "odd", s.Choose(nil, "even"))
	assert.Equal(t, "even", s.Choose(nil, "odd"))
}

func TestAlternatingStartsWithCoin(t *testing.T) {
	s := &Alternating{coin: fixedCoin("even")}
	assert.Equal(t, "even", s.Choose(nil, ""))
}

func TestHistoryFollowsWinningChoice(t *testing.T) {
	wins := func(choice string, n int) []GameRecord {
		var recs []GameRecord
		for i := 0; i < n; i++ {
			recs = append(recs, GameRecord{MyChoice: choice, Outcome: OutcomeWin})
		}
		return recs
	}

	s := &History{coin: fixedCoin("even")}
	history := append(wins("odd", 3), wins("even", 1)...)
	assert.Equal(t, "odd", s.Choose(history, ""))

	history = append(wins("even", 3), wins("odd", 1)...)
	assert.Equal(t, "even", s.Choose(history, ""))
}

func TestHistoryOnlyConsidersRecentGames(t *testing.T) {
	// Ten even losses push five old odd wins out of the window, leaving
	// one even win as the only counted victory.
	var history []GameRecord
	for i := 0; i < 5; i++ {
		history = append(history, GameRecord{MyChoice: "odd", Outcome: OutcomeWin})
	}
	for i := 0; i < 9; i++ {
		history = append(history, GameRecord{MyChoice: "even", Outcome: OutcomeLoss})
	}
	history = append(history, GameRecord{MyChoice: "even", Outcome: OutcomeWin})

	s := &History{coin: fixedCoin("odd")}
	assert.Equal(t, "even", s.Choose(history, ""))
}

func TestHistoryAlternatesOnBalancedRecord(t *testing.T) {
	history := []GameRecord{
		{MyChoice: "even", Outcome: OutcomeWin},
		{MyChoice: "odd", Outcome: OutcomeWin},
	}
	s := &History{coin: fixedCoin("even")}
	assert.Equal(t, "odd", s.Choose(history, "even"))
}

func TestHistoryEmptyUsesCoin(t *testing.T) {
	s := &History{coin: fixedCoin("odd")}
	assert.Equal(t, "odd", s.Choose(nil, ""))
}
