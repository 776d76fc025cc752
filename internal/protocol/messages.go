// Package protocol defines the league.v2 wire format: the semantic messages
// exchanged between the league manager, referees and players, and the
// JSON-RPC 2.0 envelope they travel in.
package protocol

import (
	"time"

	"github.com/google/uuid"
)

// ProtocolTag identifies the league protocol revision carried by every message.
const ProtocolTag = "league.v2"

// Message type values for the "message_type" field.
const (
	// Registration
	TypeRefereeRegisterRequest  = "REFEREE_REGISTER_REQUEST"
	TypeRefereeRegisterResponse = "REFEREE_REGISTER_RESPONSE"
	TypeLeagueRegisterRequest   = "LEAGUE_REGISTER_REQUEST"
	TypeLeagueRegisterResponse  = "LEAGUE_REGISTER_RESPONSE"

	// Match assignment
	TypeMatchAssignment    = "MATCH_ASSIGNMENT"
	TypeMatchAssignmentAck = "MATCH_ASSIGNMENT_ACK"

	// Game flow
	TypeGameInvitation          = "GAME_INVITATION"
	TypeGameJoinAck             = "GAME_JOIN_ACK"
	TypeChooseParityCall        = "CHOOSE_PARITY_CALL"
	TypeChooseParityResponse    = "CHOOSE_PARITY_RESPONSE"
	TypeGameOver                = "GAME_OVER"
	TypeMatchResultReport       = "MATCH_RESULT_REPORT"
	TypeMatchResultAcknowledged = "MATCH_RESULT_ACKNOWLEDGED"

	// League progression
	TypeRoundAnnouncement     = "ROUND_ANNOUNCEMENT"
	TypeRoundCompleted        = "ROUND_COMPLETED"
	TypeLeagueStandingsUpdate = "LEAGUE_STANDINGS_UPDATE"
	TypeLeagueCompleted       = "LEAGUE_COMPLETED"

	// Queries and acknowledgments
	TypeLeagueQuery         = "LEAGUE_QUERY"
	TypeLeagueQueryResponse = "LEAGUE_QUERY_RESPONSE"
	TypeAck                 = "ACK"
	TypeError               = "ERROR"
)

// LEAGUE_QUERY subtypes for the "query_type" field.
const (
	QueryGetStandings   = "GET_STANDINGS"
	QueryGetSchedule    = "GET_SCHEDULE"
	QueryGetNextMatch   = "GET_NEXT_MATCH"
	QueryGetPlayerStats = "GET_PLAYER_STATS"
)

// Legal parity choices for CHOOSE_PARITY_RESPONSE.
const (
	ChoiceEven = "even"
	ChoiceOdd  = "odd"
)

// GameTypeEvenOdd is the only game type this league runs.
const GameTypeEvenOdd = "even_odd"

// Game result status values.
const (
	ResultStatusWin  = "WIN"
	ResultStatusDraw = "DRAW"
)

// RefereeMeta is the self-description a referee submits at registration.
type RefereeMeta struct {
	DisplayName          string   `json:"display_name"`
	Version              string   `json:"version,omitempty"`
	GameTypes            []string `json:"game_types,omitempty"`
	ContactEndpoint      string   `json:"contact_endpoint,omitempty"`
	MaxConcurrentMatches int      `json:"max_concurrent_matches,omitempty"`
}

// PlayerMeta is the self-description a player submits at registration.
type PlayerMeta struct {
	DisplayName     string `json:"display_name"`
	ContactEndpoint string `json:"contact_endpoint,omitempty"`
	Strategy        string `json:"strategy,omitempty"`
}

// ChoiceContext gives a player situational information alongside a
// CHOOSE_PARITY_CALL.
type ChoiceContext struct {
	OpponentID string `json:"opponent_id"`
	RoundID    int    `json:"round_id,omitempty"`
}

// MatchResult is the referee's verdict reported to the league manager.
// Winner is nil for a draw. Score maps player id to points earned.
type MatchResult struct {
	Winner  *string      `json:"winner"`
	Score   map[string]int `json:"score"`
	Details *MatchDetails  `json:"details,omitempty"`
}

// MatchDetails carries auxiliary information about how a result came to be.
type MatchDetails struct {
	DrawnNumber   int               `json:"drawn_number,omitempty"`
	Choices       map[string]string `json:"choices,omitempty"`
	TechnicalLoss []string          `json:"technical_loss,omitempty"`
	Abandoned     bool              `json:"abandoned,omitempty"`
}

// GameResult is the outcome a referee announces to both players in GAME_OVER.
type GameResult struct {
	Status         string            `json:"status"`
	WinnerPlayerID *string           `json:"winner_player_id"`
	DrawnNumber    int               `json:"drawn_number,omitempty"`
	NumberParity   string            `json:"number_parity,omitempty"`
	Choices        map[string]string `json:"choices,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

// Standing is one row of the league table.
type Standing struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Played      int    `json:"played"`
	Wins        int    `json:"wins"`
	Draws       int    `json:"draws"`
	Losses      int    `json:"losses"`
	Points      int    `json:"points"`
}

// FinalStanding is the condensed standings row carried by LEAGUE_COMPLETED.
type FinalStanding struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Points   int    `json:"points"`
}

// Champion identifies the tournament winner in LEAGUE_COMPLETED.
type Champion struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
}

// ScheduledMatch is one schedule entry as exposed to agents.
type ScheduledMatch struct {
	MatchID   string `json:"match_id"`
	RoundID   int    `json:"round_id"`
	Player1ID string `json:"player1_id"`
	Player2ID string `json:"player2_id"`
	RefereeID string `json:"referee_id"`
	Status    string `json:"status,omitempty"`
}

// PlayerStats is the answer to a GET_PLAYER_STATS query.
type PlayerStats struct {
	PlayerID          string `json:"player_id"`
	DisplayName       string `json:"display_name"`
	Wins              int    `json:"wins"`
	Losses            int    `json:"losses"`
	Draws             int    `json:"draws"`
	TotalPointsEarned int    `json:"total_points_earned"`
	TotalGames        int    `json:"total_games"`
}

// Message is a league.v2 payload. It is a flat structure: every message type
// uses the common header fields plus whichever type-specific fields apply,
// everything else stays zero and is omitted on the wire.
type Message struct {
	Protocol       string `json:"protocol"`
	MessageType    string `json:"message_type"`
	Sender         string `json:"sender"`
	Timestamp      string `json:"timestamp"`
	ConversationID string `json:"conversation_id,omitempty"`
	AuthToken      string `json:"auth_token,omitempty"`

	LeagueID  string `json:"league_id,omitempty"`
	RoundID   int    `json:"round_id,omitempty"`
	MatchID   string `json:"match_id,omitempty"`
	PlayerID  string `json:"player_id,omitempty"`
	RefereeID string `json:"referee_id,omitempty"`

	// Registration
	RefereeMeta *RefereeMeta `json:"referee_meta,omitempty"`
	PlayerMeta  *PlayerMeta  `json:"player_meta,omitempty"`
	Status      string       `json:"status,omitempty"`
	Reason      string       `json:"reason,omitempty"`

	// Match assignment
	Player1ID       string `json:"player1_id,omitempty"`
	Player2ID       string `json:"player2_id,omitempty"`
	Player1Endpoint string `json:"player1_endpoint,omitempty"`
	Player2Endpoint string `json:"player2_endpoint,omitempty"`

	// Game flow
	GameType         string         `json:"game_type,omitempty"`
	RoleInMatch      string         `json:"role_in_match,omitempty"`
	OpponentID       string         `json:"opponent_id,omitempty"`
	Accept           *bool          `json:"accept,omitempty"`
	ArrivalTimestamp string         `json:"arrival_timestamp,omitempty"`
	Choice           string         `json:"choice,omitempty"`
	Deadline         string         `json:"deadline,omitempty"`
	Context          *ChoiceContext `json:"context,omitempty"`
	GameResult       *GameResult    `json:"game_result,omitempty"`
	Result           *MatchResult   `json:"result,omitempty"`

	// League progression
	Standings      []Standing       `json:"standings,omitempty"`
	Schedule       []ScheduledMatch `json:"schedule,omitempty"`
	MatchesPlayed  int              `json:"matches_played,omitempty"`
	NextRoundID    *int             `json:"next_round_id,omitempty"`
	TotalRounds    int              `json:"total_rounds,omitempty"`
	TotalMatches   int              `json:"total_matches,omitempty"`
	Champion       *Champion        `json:"champion,omitempty"`
	FinalStandings []FinalStanding  `json:"final_standings,omitempty"`

	// Queries
	QueryType      string `json:"query_type,omitempty"`
	TargetPlayerID string `json:"target_player_id,omitempty"`
	Data           any    `json:"data,omitempty"`

	// Errors
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewMessage builds a message with the standard header fields filled in and a
// fresh conversation id.
func NewMessage(messageType, sender string) *Message {
	return &Message{
		Protocol:       ProtocolTag,
		MessageType:    messageType,
		Sender:         sender,
		Timestamp:      Timestamp(),
		ConversationID: uuid.NewString(),
	}
}

// Reply builds a message answering m: same conversation id, fresh timestamp.
func (m *Message) Reply(messageType, sender string) *Message {
	return &Message{
		Protocol:       ProtocolTag,
		MessageType:    messageType,
		Sender:         sender,
		Timestamp:      Timestamp(),
		ConversationID: m.ConversationID,
	}
}

// NewErrorMessage builds an ERROR payload with a structured code and message.
func NewErrorMessage(sender, code, errMsg, conversationID string) *Message {
	return &Message{
		Protocol:       ProtocolTag,
		MessageType:    TypeError,
		Sender:         sender,
		Timestamp:      Timestamp(),
		ConversationID: conversationID,
		ErrorCode:      code,
		ErrorMessage:   errMsg,
	}
}

// Timestamp returns the current time as an ISO 8601 UTC string.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
