package referee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// Sender delivers one message to one agent endpoint and returns the reply.
type Sender interface {
	Send(ctx context.Context, endpoint string, msg *protocol.Message) (*protocol.Message, error)
}

// Config holds a referee agent's settings.
type Config struct {
	DisplayName string
	// Endpoint is this referee's own contact address, advertised at
	// registration so the league can assign matches and broadcast to it.
	Endpoint  string
	LeagueURL string

	// MaxRetries bounds decision-collection attempts per participant per
	// match. ChoiceTimeout bounds each individual attempt.
	MaxRetries    int
	ChoiceTimeout time.Duration
}

// Server is a referee agent: it registers with the league, accepts match
// assignments, and runs each assigned match to completion in its own
// goroutine. A fault in one match never takes the server down; it stays
// ready for the next assignment.
type Server struct {
	cfg    Config
	sender Sender

	mu        sync.Mutex
	refereeID string
	authToken string
	games     map[string]*Session

	// Injection points for tests.
	intn func(int) int
	now  func() time.Time
}

// NewServer builds a referee with the protocol defaults: three retries and a
// thirty second per-attempt timeout.
func NewServer(cfg Config, sender Sender) *Server {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ChoiceTimeout <= 0 {
		cfg.ChoiceTimeout = 30 * time.Second
	}
	return &Server{
		cfg:    cfg,
		sender: sender,
		games:  make(map[string]*Session),
		intn:   rand.Intn,
		now:    time.Now,
	}
}

// Register announces this referee to the league manager and stores the
// issued identity and auth token.
func (s *Server) Register(ctx context.Context) error {
	msg := protocol.NewMessage(protocol.TypeRefereeRegisterRequest, s.senderTag())
	msg.RefereeMeta = &protocol.RefereeMeta{
		DisplayName:          s.cfg.DisplayName,
		Version:              "1.0.0",
		GameTypes:            []string{protocol.GameTypeEvenOdd},
		ContactEndpoint:      s.cfg.Endpoint,
		MaxConcurrentMatches: 2,
	}

	reply, err := s.sender.Send(ctx, s.cfg.LeagueURL, msg)
	if err != nil {
		return fmt.Errorf("register referee: %w", err)
	}
	if reply.MessageType != protocol.TypeRefereeRegisterResponse || reply.RefereeID == "" {
		return errors.New("register referee: league rejected registration")
	}

	s.mu.Lock()
	s.refereeID = reply.RefereeID
	s.authToken = reply.AuthToken
	s.mu.Unlock()

	slog.Info("Registered with league", "refereeID", reply.RefereeID, "leagueID", reply.LeagueID)
	return nil
}

// RefereeID returns the league-issued identity, empty before registration.
func (s *Server) RefereeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refereeID
}

func (s *Server) senderTag() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refereeID == "" {
		return "referee:UNREGISTERED"
	}
	return "referee:" + s.refereeID
}

// newMessage builds an outgoing message carrying this referee's identity and
// auth token within an existing conversation.
func (s *Server) newMessage(messageType, conversationID string) *protocol.Message {
	msg := protocol.NewMessage(messageType, s.senderTag())
	msg.ConversationID = conversationID

	s.mu.Lock()
	msg.AuthToken = s.authToken
	s.mu.Unlock()
	return msg
}

// Handle is the referee's inbound message entry point.
func (s *Server) Handle(ctx context.Context, msg *protocol.Message) *protocol.Message {
	switch msg.MessageType {
	case protocol.TypeMatchAssignment:
		return s.handleAssignment(ctx, msg)
	default:
		// League broadcasts (standings, round notices) need no action
		// beyond acknowledgment.
		return msg.Reply(protocol.TypeAck, s.senderTag())
	}
}

func (s *Server) handleAssignment(ctx context.Context, msg *protocol.Message) *protocol.Message {
	if msg.MatchID == "" || msg.Player1ID == "" || msg.Player2ID == "" ||
		msg.Player1Endpoint == "" || msg.Player2Endpoint == "" {
		slog.Error("Invalid match assignment, missing required fields", "matchID", msg.MatchID)
		return protocol.NewErrorMessage(s.senderTag(), protocol.CodeMalformedResponse,
			"match assignment is missing required fields", msg.ConversationID)
	}

	sess := NewSession(
		msg.MatchID,
		msg.LeagueID,
		msg.RoundID,
		Participant{ID: msg.Player1ID, Endpoint: msg.Player1Endpoint},
		Participant{ID: msg.Player2ID, Endpoint: msg.Player2Endpoint},
	)

	s.mu.Lock()
	s.games[sess.MatchID] = sess
	s.mu.Unlock()

	// The match outlives this request; detach it from the request context
	// so the HTTP handler returning does not cancel the game.
	go s.runMatch(context.WithoutCancel(ctx), sess)

	ack := msg.Reply(protocol.TypeMatchAssignmentAck, s.senderTag())
	ack.MatchID = msg.MatchID
	ack.Status = "accepted"
	return ack
}

func (s *Server) discardSession(matchID string) {
	s.mu.Lock()
	delete(s.games, matchID)
	s.mu.Unlock()
}
