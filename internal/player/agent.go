package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// Sender delivers one message to one endpoint and returns the reply.
type Sender interface {
	Send(ctx context.Context, endpoint string, msg *protocol.Message) (*protocol.Message, error)
}

// Config holds a player agent's settings.
type Config struct {
	DisplayName string
	// Endpoint is this player's own contact address, advertised at
	// registration.
	Endpoint  string
	LeagueURL string
	Strategy  string
}

// Stats aggregates this player's own view of its results.
type Stats struct {
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
	Draws      int `json:"draws"`
	TotalGames int `json:"total_games"`
}

// currentMatch is the invitation the player has accepted and not yet seen
// the outcome of.
type currentMatch struct {
	MatchID    string
	OpponentID string
	RoundID    int
}

// Agent is a player: it answers invitations, declares parities per its
// strategy, and keeps its own running record. Safe for concurrent handlers.
type Agent struct {
	cfg      Config
	sender   Sender
	strategy Strategy

	mu         sync.Mutex
	playerID   string
	authToken  string
	lastChoice string
	history    []GameRecord
	current    *currentMatch
	upcoming   []protocol.ScheduledMatch
	stats      Stats
}

// NewAgent builds a player agent with the named strategy.
func NewAgent(cfg Config, sender Sender) *Agent {
	return &Agent{
		cfg:      cfg,
		sender:   sender,
		strategy: NewStrategy(cfg.Strategy),
	}
}

// Register announces this player to the league manager and stores the issued
// identity and auth token.
func (a *Agent) Register(ctx context.Context) error {
	msg := protocol.NewMessage(protocol.TypeLeagueRegisterRequest, a.senderTag())
	msg.PlayerMeta = &protocol.PlayerMeta{
		DisplayName:     a.cfg.DisplayName,
		ContactEndpoint: a.cfg.Endpoint,
		Strategy:        a.strategy.Name(),
	}

	reply, err := a.sender.Send(ctx, a.cfg.LeagueURL, msg)
	if err != nil {
		return fmt.Errorf("register player: %w", err)
	}
	if reply.MessageType != protocol.TypeLeagueRegisterResponse || reply.PlayerID == "" {
		return errors.New("register player: league rejected registration")
	}

	a.mu.Lock()
	a.playerID = reply.PlayerID
	a.authToken = reply.AuthToken
	a.mu.Unlock()

	slog.Info("Registered with league", "playerID", reply.PlayerID, "leagueID", reply.LeagueID, "strategy", a.strategy.Name())
	return nil
}

// PlayerID returns the league-issued identity, empty before registration.
func (a *Agent) PlayerID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playerID
}

// Stats returns a copy of the player's running record.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// History returns a copy of the player's completed games.
func (a *Agent) History() []GameRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]GameRecord, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Agent) senderTag() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playerID == "" {
		return "player:" + a.cfg.DisplayName
	}
	return "player:" + a.playerID
}

// reply answers msg with this player's identity and auth token attached.
func (a *Agent) reply(msg *protocol.Message, messageType string) *protocol.Message {
	out := msg.Reply(messageType, a.senderTag())

	a.mu.Lock()
	out.AuthToken = a.authToken
	out.PlayerID = a.playerID
	a.mu.Unlock()
	return out
}

// Handle is the player's inbound message entry point.
func (a *Agent) Handle(ctx context.Context, msg *protocol.Message) *protocol.Message {
	switch msg.MessageType {
	case protocol.TypeGameInvitation:
		return a.handleInvitation(msg)
	case protocol.TypeChooseParityCall:
		return a.handleChooseParity(msg)
	case protocol.TypeGameOver:
		return a.handleGameOver(msg)
	case protocol.TypeRoundAnnouncement:
		return a.handleRoundAnnouncement(msg)
	case protocol.TypeLeagueStandingsUpdate:
		return a.handleStandingsUpdate(msg)
	case protocol.TypeLeagueCompleted:
		return a.handleLeagueCompleted(msg)
	case protocol.TypeError:
		slog.Warn("Received error notice", "error_code", msg.ErrorCode, "error_message", msg.ErrorMessage, "matchID", msg.MatchID)
		return a.reply(msg, protocol.TypeAck)
	default:
		slog.Warn("Unknown message type", "message_type", msg.MessageType, "sender", msg.Sender)
		out := a.reply(msg, protocol.TypeAck)
		out.Status = "unknown_message_type"
		return out
	}
}

func (a *Agent) handleInvitation(msg *protocol.Message) *protocol.Message {
	slog.Info("Invited to match", "matchID", msg.MatchID, "role", msg.RoleInMatch, "opponentID", msg.OpponentID)

	a.mu.Lock()
	a.current = &currentMatch{
		MatchID:    msg.MatchID,
		OpponentID: msg.OpponentID,
		RoundID:    msg.RoundID,
	}
	a.mu.Unlock()

	ack := a.reply(msg, protocol.TypeGameJoinAck)
	ack.MatchID = msg.MatchID
	ack.Accept = new(bool)
	*ack.Accept = true
	ack.ArrivalTimestamp = protocol.Timestamp()
	return ack
}

func (a *Agent) handleChooseParity(msg *protocol.Message) *protocol.Message {
	a.mu.Lock()
	choice := a.strategy.Choose(a.history, a.lastChoice)
	a.lastChoice = choice
	a.mu.Unlock()

	slog.Info("Declaring parity", "matchID", msg.MatchID, "choice", choice, "strategy", a.strategy.Name())

	resp := a.reply(msg, protocol.TypeChooseParityResponse)
	resp.MatchID = msg.MatchID
	resp.Choice = choice
	return resp
}

func (a *Agent) handleGameOver(msg *protocol.Message) *protocol.Message {
	result := msg.GameResult

	a.mu.Lock()
	if result != nil {
		outcome := OutcomeDraw
		switch {
		case result.Status == protocol.ResultStatusDraw || result.WinnerPlayerID == nil:
		case *result.WinnerPlayerID == a.playerID:
			outcome = OutcomeWin
		default:
			outcome = OutcomeLoss
		}

		switch outcome {
		case OutcomeWin:
			a.stats.Wins++
		case OutcomeLoss:
			a.stats.Losses++
		default:
			a.stats.Draws++
		}
		a.stats.TotalGames++

		record := GameRecord{
			MatchID:     msg.MatchID,
			MyChoice:    a.lastChoice,
			DrawnNumber: result.DrawnNumber,
			Outcome:     outcome,
			Timestamp:   protocol.Timestamp(),
		}
		if a.current != nil {
			record.OpponentID = a.current.OpponentID
			record.OpponentChoice = result.Choices[a.current.OpponentID]
		}
		a.history = append(a.history, record)

		slog.Info("Game over", "matchID", msg.MatchID, "outcome", outcome, "drawnNumber", result.DrawnNumber,
			"wins", a.stats.Wins, "losses", a.stats.Losses, "draws", a.stats.Draws)
	}
	a.current = nil
	a.mu.Unlock()

	ack := a.reply(msg, protocol.TypeAck)
	ack.Status = "received"
	return ack
}

func (a *Agent) handleRoundAnnouncement(msg *protocol.Message) *protocol.Message {
	a.mu.Lock()
	a.upcoming = msg.Schedule
	a.mu.Unlock()

	slog.Info("Round announced", "roundID", msg.RoundID, "matches", len(msg.Schedule))
	return a.reply(msg, protocol.TypeAck)
}

func (a *Agent) handleStandingsUpdate(msg *protocol.Message) *protocol.Message {
	id := a.PlayerID()
	for _, row := range msg.Standings {
		if row.PlayerID == id {
			slog.Info("Standings update", "rank", row.Rank, "points", row.Points,
				"wins", row.Wins, "losses", row.Losses, "draws", row.Draws)
			break
		}
	}
	return a.reply(msg, protocol.TypeAck)
}

func (a *Agent) handleLeagueCompleted(msg *protocol.Message) *protocol.Message {
	id := a.PlayerID()
	for _, row := range msg.FinalStandings {
		if row.PlayerID == id {
			slog.Info("League completed", "finalRank", row.Rank, "points", row.Points)
			break
		}
	}
	if msg.Champion != nil && msg.Champion.PlayerID == id {
		slog.Info("Champion!", "points", msg.Champion.Points)
	}
	return a.reply(msg, protocol.TypeAck)
}
