package league

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cheildo/parity-league-backend/internal/pkg/events"
	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// SenderName is the identity the coordinator stamps on outgoing messages.
const SenderName = "league_manager"

// Participant roles used for auth validation.
const (
	RolePlayer  = "player"
	RoleReferee = "referee"
)

// Sender delivers one message to one agent endpoint and returns the reply.
type Sender interface {
	Send(ctx context.Context, endpoint string, msg *protocol.Message) (*protocol.Message, error)
}

// Config holds the coordinator's tunables.
type Config struct {
	// LeagueID tags every outgoing message and event.
	LeagueID string
	// AbandonAfter is how long a match may sit in progress before the
	// janitor force-completes it as a double forfeit. Zero disables the
	// janitor entirely.
	AbandonAfter time.Duration
	// JanitorInterval is how often stuck matches are checked for.
	JanitorInterval time.Duration
}

// Service owns all coordinator state: registries, schedule, and standings
// aggregates. All mutation happens under one mutex, which serializes result
// ingestion per coordinator; ingestion is infrequent relative to match
// execution, so a single lock is enough (and keeps the two completion checks
// atomic with the stat mutation).
type Service struct {
	cfg    Config
	sender Sender
	sinks  events.Fanout

	mu           sync.Mutex
	referees     map[string]*Referee
	refereeOrder []string
	players      map[string]*Player
	playerOrder  []string
	matches      map[string]*Match
	schedule     []*Match
	totalRounds  int
	started      bool
	completed    bool

	now func() time.Time
}

// NewService creates a coordinator. sender delivers broadcasts and match
// assignments; sinks receive every broadcast as a league event.
func NewService(cfg Config, sender Sender, sinks ...events.Sink) *Service {
	if cfg.LeagueID == "" {
		cfg.LeagueID = "league_even_odd"
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = 30 * time.Second
	}
	return &Service{
		cfg:      cfg,
		sender:   sender,
		sinks:    events.Fanout(sinks),
		referees: make(map[string]*Referee),
		players:  make(map[string]*Player),
		matches:  make(map[string]*Match),
		now:      time.Now,
	}
}

// LeagueID returns the configured league identifier.
func (s *Service) LeagueID() string { return s.cfg.LeagueID }

// RegisterReferee stores a new referee and issues its id and auth token.
// Ids are uuid-derived and never reused across the coordinator's lifetime.
func (s *Service) RegisterReferee(meta protocol.RefereeMeta) (string, string) {
	token := newToken()

	s.mu.Lock()
	id := newID("ref", func(id string) bool { _, ok := s.referees[id]; return ok })
	s.referees[id] = &Referee{ID: id, AuthToken: token, Meta: meta}
	s.refereeOrder = append(s.refereeOrder, id)
	s.mu.Unlock()

	slog.Info("Registered referee", "refereeID", id, "displayName", meta.DisplayName)
	return id, token
}

// RegisterPlayer stores a new player and issues its id and auth token.
func (s *Service) RegisterPlayer(meta protocol.PlayerMeta) (string, string) {
	token := newToken()

	s.mu.Lock()
	id := newID("player", func(id string) bool { _, ok := s.players[id]; return ok })
	s.players[id] = &Player{ID: id, AuthToken: token, Meta: meta}
	s.playerOrder = append(s.playerOrder, id)
	s.mu.Unlock()

	slog.Info("Registered player", "playerID", id, "displayName", meta.DisplayName)
	return id, token
}

// ValidateAuth checks an identity/token pair against the registration record
// for the given role.
func (s *Service) ValidateAuth(id, token, role string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored string
	switch role {
	case RolePlayer:
		p, ok := s.players[id]
		if !ok {
			return false
		}
		stored = p.AuthToken
	case RoleReferee:
		r, ok := s.referees[id]
		if !ok {
			return false
		}
		stored = r.AuthToken
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1
}

// CreateSchedule generates the full tournament schedule: for each round, the
// set of all unordered player pairs, each pairing assigned a referee by
// cycling over the referee list in registration order. A second call is
// rejected rather than silently regenerating the schedule.
func (s *Service) CreateSchedule(rounds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createScheduleLocked(rounds)
}

func (s *Service) createScheduleLocked(rounds int) error {
	if s.started {
		return ErrScheduleExists
	}
	if rounds < 1 {
		return ErrInvalidRounds
	}
	if len(s.players) < 2 || len(s.referees) == 0 {
		return ErrInsufficientParticipants
	}

	for round := 1; round <= rounds; round++ {
		pairing := 0
		for i := 0; i < len(s.playerOrder); i++ {
			for j := i + 1; j < len(s.playerOrder); j++ {
				m := &Match{
					MatchID:   newID("match", func(id string) bool { _, ok := s.matches[id]; return ok }),
					RoundID:   round,
					Player1ID: s.playerOrder[i],
					Player2ID: s.playerOrder[j],
					RefereeID: s.refereeOrder[pairing%len(s.refereeOrder)],
					Status:    MatchPending,
				}
				s.matches[m.MatchID] = m
				s.schedule = append(s.schedule, m)
				pairing++
			}
		}
	}

	s.totalRounds = rounds
	s.started = true
	slog.Info("Created schedule", "matches", len(s.schedule), "rounds", rounds)
	return nil
}

// RecordMatchResult ingests one referee-reported result. The match mutation,
// both player aggregate updates, and the round/league completion checks run
// as one atomic step under the service mutex, so two concurrent completions
// of the same match can never double-count (the second fails with
// ErrMatchAlreadyCompleted). Broadcasts are assembled inside the critical
// section and delivered outside it.
func (s *Service) RecordMatchResult(ctx context.Context, matchID string, result *protocol.MatchResult) error {
	s.mu.Lock()
	broadcasts, err := s.ingestLocked(matchID, result)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	for _, msg := range broadcasts {
		s.broadcast(ctx, msg)
	}
	return nil
}

func (s *Service) ingestLocked(matchID string, result *protocol.MatchResult) ([]*protocol.Message, error) {
	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	if m.Status == MatchCompleted {
		return nil, ErrMatchAlreadyCompleted
	}

	p1, ok1 := s.players[m.Player1ID]
	p2, ok2 := s.players[m.Player2ID]
	if !ok1 || !ok2 {
		// A match referencing an unregistered player means coordinator
		// state is corrupt; fail loudly instead of mutating further.
		return nil, fmt.Errorf("invariant violation: match %s references unregistered players", matchID)
	}

	switch {
	case result.Winner == nil:
		p1.Draws++
		p2.Draws++
	case *result.Winner == p1.ID:
		p1.Wins++
		p2.Losses++
	case *result.Winner == p2.ID:
		p2.Wins++
		p1.Losses++
	default:
		return nil, fmt.Errorf("invariant violation: winner %s is not a participant of match %s", *result.Winner, matchID)
	}

	// A missing or zero score entry is a no-op add.
	p1.PointsEarned += result.Score[p1.ID]
	p2.PointsEarned += result.Score[p2.ID]

	m.Status = MatchCompleted
	m.Result = result
	slog.Info("Match completed", "matchID", matchID, "roundID", m.RoundID)

	var broadcasts []*protocol.Message

	standingsMsg := s.newMessageLocked(protocol.TypeLeagueStandingsUpdate)
	standingsMsg.RoundID = m.RoundID
	standingsMsg.Standings = s.standingsLocked()
	broadcasts = append(broadcasts, standingsMsg)

	if s.roundCompleteLocked(m.RoundID) {
		roundMsg := s.newMessageLocked(protocol.TypeRoundCompleted)
		roundMsg.RoundID = m.RoundID
		roundMsg.MatchesPlayed = s.roundSizeLocked(m.RoundID)
		if m.RoundID < s.totalRounds {
			next := m.RoundID + 1
			roundMsg.NextRoundID = &next
		}
		broadcasts = append(broadcasts, roundMsg)
		slog.Info("Round completed", "roundID", m.RoundID)
	}

	if s.leagueCompleteLocked() && !s.completed {
		// One-shot: the flag flips inside the same critical section that
		// detected completion, so the broadcast fires exactly once per
		// tournament lifetime no matter how the final matches interleave.
		s.completed = true
		broadcasts = append(broadcasts, s.leagueCompletedMessageLocked())
		slog.Info("League completed", "totalMatches", len(s.schedule))
	}

	return broadcasts, nil
}

func (s *Service) roundCompleteLocked(roundID int) bool {
	seen := false
	for _, m := range s.schedule {
		if m.RoundID != roundID {
			continue
		}
		seen = true
		if m.Status != MatchCompleted {
			return false
		}
	}
	return seen
}

func (s *Service) roundSizeLocked(roundID int) int {
	n := 0
	for _, m := range s.schedule {
		if m.RoundID == roundID {
			n++
		}
	}
	return n
}

func (s *Service) leagueCompleteLocked() bool {
	for _, m := range s.schedule {
		if m.Status != MatchCompleted {
			return false
		}
	}
	return len(s.schedule) > 0
}

func (s *Service) leagueCompletedMessageLocked() *protocol.Message {
	standings := s.standingsLocked()

	msg := s.newMessageLocked(protocol.TypeLeagueCompleted)
	msg.TotalRounds = s.totalRounds
	msg.TotalMatches = len(s.schedule)
	if len(standings) > 0 {
		top := standings[0]
		msg.Champion = &protocol.Champion{
			PlayerID:    top.PlayerID,
			DisplayName: top.DisplayName,
			Points:      top.Points,
		}
	}
	for _, st := range standings {
		msg.FinalStandings = append(msg.FinalStandings, protocol.FinalStanding{
			Rank:     st.Rank,
			PlayerID: st.PlayerID,
			Points:   st.Points,
		})
	}
	return msg
}

func (s *Service) newMessageLocked(messageType string) *protocol.Message {
	msg := protocol.NewMessage(messageType, SenderName)
	msg.LeagueID = s.cfg.LeagueID
	return msg
}

// broadcast delivers msg best-effort to every registered participant and
// publishes it to the event sinks. A failed delivery to one recipient never
// blocks or fails delivery to the others.
func (s *Service) broadcast(ctx context.Context, msg *protocol.Message) {
	s.mu.Lock()
	endpoints := make([]string, 0, len(s.playerOrder)+len(s.refereeOrder))
	for _, id := range s.playerOrder {
		if ep := s.players[id].Meta.ContactEndpoint; ep != "" {
			endpoints = append(endpoints, ep)
		}
	}
	for _, id := range s.refereeOrder {
		if ep := s.referees[id].Meta.ContactEndpoint; ep != "" {
			endpoints = append(endpoints, ep)
		}
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, endpoint := range endpoints {
		wg.Add(1)
		go func(endpoint string) {
			defer wg.Done()
			if _, err := s.sender.Send(ctx, endpoint, msg); err != nil {
				slog.Error("Failed to broadcast", "message_type", msg.MessageType, "endpoint", endpoint, "error", err)
			}
		}(endpoint)
	}
	wg.Wait()

	s.sinks.Publish(ctx, msg)
}

// StartJanitor runs the abandonment loop: matches stuck in progress longer
// than AbandonAfter are force-completed as a scoreless double forfeit, so an
// abandoned match cannot wedge round completion forever. No-op when
// AbandonAfter is zero. Runs until ctx is cancelled.
func (s *Service) StartJanitor(ctx context.Context) {
	if s.cfg.AbandonAfter <= 0 {
		return
	}

	slog.Info("Abandonment janitor started", "interval", s.cfg.JanitorInterval, "abandonAfter", s.cfg.AbandonAfter)
	ticker := time.NewTicker(s.cfg.JanitorInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("Abandonment janitor stopping.")
				return
			case <-ticker.C:
				s.expireStaleMatches(ctx)
			}
		}
	}()
}

func (s *Service) expireStaleMatches(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.AbandonAfter)

	s.mu.Lock()
	var stale []*Match
	for _, m := range s.schedule {
		if m.Status == MatchInProgress && !m.AssignedAt.IsZero() && m.AssignedAt.Before(cutoff) {
			stale = append(stale, m)
		}
	}

	var broadcasts []*protocol.Message
	for _, m := range stale {
		slog.Warn("Force-completing abandoned match", "matchID", m.MatchID, "assignedAt", m.AssignedAt)
		result := &protocol.MatchResult{
			Winner: nil,
			Score:  map[string]int{m.Player1ID: 0, m.Player2ID: 0},
			Details: &protocol.MatchDetails{
				Abandoned:     true,
				TechnicalLoss: []string{m.Player1ID, m.Player2ID},
			},
		}
		msgs, err := s.ingestLocked(m.MatchID, result)
		if err != nil {
			slog.Error("Failed to force-complete abandoned match", "matchID", m.MatchID, "error", err)
			continue
		}
		broadcasts = append(broadcasts, msgs...)
	}
	s.mu.Unlock()

	for _, msg := range broadcasts {
		s.broadcast(ctx, msg)
	}
}

// newID draws short readable ids until one is not already taken. The 8-char
// suffix leaves a small collision space, so regeneration is the guard.
func newID(prefix string, taken func(string) bool) string {
	for {
		id := prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if taken == nil || !taken(id) {
			return id
		}
	}
}

// newToken issues a cryptographically random opaque bearer token.
func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
