package league

import (
	"sort"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// Standings computes the current league table: players sorted by points,
// then wins, then draws, all descending. The sort is stable over
// registration order, so players tied on all three keys rank in the order
// they registered. Ranks are positional: ties still get distinct ranks.
func (s *Service) Standings() []protocol.Standing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.standingsLocked()
}

func (s *Service) standingsLocked() []protocol.Standing {
	standings := make([]protocol.Standing, 0, len(s.playerOrder))
	for _, id := range s.playerOrder {
		p := s.players[id]
		standings = append(standings, protocol.Standing{
			PlayerID:    p.ID,
			DisplayName: p.Meta.DisplayName,
			Played:      p.Wins + p.Losses + p.Draws,
			Wins:        p.Wins,
			Draws:       p.Draws,
			Losses:      p.Losses,
			Points:      p.PointsEarned,
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.Draws > b.Draws
	})

	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}

// PlayerStats returns the aggregate stats for one player, or false if the
// player is unknown.
func (s *Service) PlayerStats(playerID string) (*protocol.PlayerStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, false
	}
	return &protocol.PlayerStats{
		PlayerID:          p.ID,
		DisplayName:       p.Meta.DisplayName,
		Wins:              p.Wins,
		Losses:            p.Losses,
		Draws:             p.Draws,
		TotalPointsEarned: p.PointsEarned,
		TotalGames:        p.Wins + p.Losses + p.Draws,
	}, true
}
