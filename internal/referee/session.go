// Package referee runs even/odd matches on behalf of the league: it invites
// both players, collects their parity choices under timeout and retry,
// resolves the outcome, and reports the result back to the league manager.
package referee

import (
	"sync"

	"github.com/google/uuid"
)

// GameState is the match state machine. Transitions only ever move forward.
type GameState string

const (
	StateAwaitingParticipants GameState = "AWAITING_PARTICIPANTS"
	StateCollectingDecisions  GameState = "COLLECTING_DECISIONS"
	StateResolvingOutcome     GameState = "RESOLVING_OUTCOME"
	StateCompleted            GameState = "COMPLETED"
)

// Participant is one remote player as the referee sees it.
type Participant struct {
	ID       string
	Endpoint string
}

// Session is the referee's transient working state for one match. It lives
// only for the duration of the match execution and is discarded once the
// outcome has been reported.
type Session struct {
	MatchID        string
	LeagueID       string
	RoundID        int
	ConversationID string
	State          GameState

	Player1 Participant
	Player2 Participant

	Joined1 bool
	Joined2 bool
	Choice1 string
	Choice2 string

	DrawnNumber int
	WinnerID    string // empty means no winner (draw)

	// retryCounts tracks decision-collection attempts per participant. It
	// is never reset mid-match: a participant that burned retries early in
	// the match starts later collections with what remains.
	mu          sync.Mutex
	retryCounts map[string]int
}

// NewSession creates the working state for one assigned match.
func NewSession(matchID, leagueID string, roundID int, p1, p2 Participant) *Session {
	return &Session{
		MatchID:        matchID,
		LeagueID:       leagueID,
		RoundID:        roundID,
		ConversationID: uuid.NewString(),
		State:          StateAwaitingParticipants,
		Player1:        p1,
		Player2:        p2,
		retryCounts:    map[string]int{p1.ID: 0, p2.ID: 0},
	}
}

// RetryCount returns how many collection attempts playerID has consumed.
func (s *Session) RetryCount(playerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCounts[playerID]
}

func (s *Session) addRetry(playerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryCounts[playerID]++
	return s.retryCounts[playerID]
}

// Opponent returns the other participant of the match.
func (s *Session) Opponent(playerID string) Participant {
	if playerID == s.Player1.ID {
		return s.Player2
	}
	return s.Player1
}
