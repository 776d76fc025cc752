// Package league implements the coordinator of an even/odd tournament:
// participant registration, round-robin scheduling, match-result ingestion,
// standings, and round/league completion broadcasts.
package league

import (
	"time"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// MatchStatus is the lifecycle state of a scheduled match.
type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

// Referee is a registered referee agent. ID and AuthToken are issued at
// registration and immutable afterwards.
type Referee struct {
	ID        string
	AuthToken string
	Meta      protocol.RefereeMeta
}

// Player is a registered player agent plus its mutable aggregate stats.
// Stats are the single source of truth for standings, which are derived on
// demand and never stored.
type Player struct {
	ID        string
	AuthToken string
	Meta      protocol.PlayerMeta

	Wins         int
	Losses       int
	Draws        int
	PointsEarned int
}

// Match is one scheduled contest, owned exclusively by the coordinator. The
// referee only ever holds a transient working copy during execution.
type Match struct {
	MatchID   string
	RoundID   int
	Player1ID string
	Player2ID string
	RefereeID string
	Status    MatchStatus
	Result    *protocol.MatchResult

	// AssignedAt is set when the match is handed to its referee; the
	// abandonment janitor uses it to detect matches stuck in progress.
	AssignedAt time.Time
}
