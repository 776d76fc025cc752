package league

import (
	"context"
	"log/slog"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// ScheduleData exposes the schedule as wire entries, in generation order.
func (s *Service) ScheduleData() []protocol.ScheduledMatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]protocol.ScheduledMatch, 0, len(s.schedule))
	for _, m := range s.schedule {
		out = append(out, scheduledMatch(m))
	}
	return out
}

// NextMatch returns the first pending match involving playerID, or false if
// none remains.
func (s *Service) NextMatch(playerID string) (*protocol.ScheduledMatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.schedule {
		if m.Status != MatchPending {
			continue
		}
		if m.Player1ID == playerID || m.Player2ID == playerID {
			sm := scheduledMatch(m)
			return &sm, true
		}
	}
	return nil, false
}

func scheduledMatch(m *Match) protocol.ScheduledMatch {
	return protocol.ScheduledMatch{
		MatchID:   m.MatchID,
		RoundID:   m.RoundID,
		Player1ID: m.Player1ID,
		Player2ID: m.Player2ID,
		RefereeID: m.RefereeID,
		Status:    string(m.Status),
	}
}

// StartLeague creates the schedule, announces the opening round to all
// participants, and dispatches every match to its referee. A match counts as
// assigned once its referee acknowledges the assignment; it then moves to
// in-progress. Returns how many matches were assigned.
func (s *Service) StartLeague(ctx context.Context, rounds int) (int, error) {
	if err := s.CreateSchedule(rounds); err != nil {
		return 0, err
	}

	s.mu.Lock()
	announcement := s.newMessageLocked(protocol.TypeRoundAnnouncement)
	announcement.RoundID = 1
	for _, m := range s.schedule {
		if m.RoundID == 1 {
			announcement.Schedule = append(announcement.Schedule, scheduledMatch(m))
		}
	}
	pending := make([]*Match, len(s.schedule))
	copy(pending, s.schedule)
	s.mu.Unlock()

	s.broadcast(ctx, announcement)

	assigned := 0
	for _, m := range pending {
		if s.assignMatch(ctx, m) {
			assigned++
		}
	}

	slog.Info("League started", "assigned", assigned, "matches", len(pending))
	return assigned, nil
}

// assignMatch sends one MATCH_ASSIGNMENT to the match's referee and marks the
// match in progress on a positive acknowledgment.
func (s *Service) assignMatch(ctx context.Context, m *Match) bool {
	s.mu.Lock()
	referee, okR := s.referees[m.RefereeID]
	p1, ok1 := s.players[m.Player1ID]
	p2, ok2 := s.players[m.Player2ID]
	if !okR || !ok1 || !ok2 {
		s.mu.Unlock()
		slog.Error("Match references unknown participants, skipping assignment", "matchID", m.MatchID)
		return false
	}

	msg := s.newMessageLocked(protocol.TypeMatchAssignment)
	msg.MatchID = m.MatchID
	msg.RoundID = m.RoundID
	msg.Player1ID = m.Player1ID
	msg.Player2ID = m.Player2ID
	msg.Player1Endpoint = p1.Meta.ContactEndpoint
	msg.Player2Endpoint = p2.Meta.ContactEndpoint
	endpoint := referee.Meta.ContactEndpoint
	s.mu.Unlock()

	if endpoint == "" {
		slog.Warn("Referee has no contact endpoint, skipping assignment", "refereeID", m.RefereeID, "matchID", m.MatchID)
		return false
	}

	reply, err := s.sender.Send(ctx, endpoint, msg)
	if err != nil {
		slog.Error("Failed to assign match", "matchID", m.MatchID, "refereeID", m.RefereeID, "error", err)
		return false
	}
	if reply.MessageType != protocol.TypeMatchAssignmentAck {
		slog.Error("Referee did not acknowledge assignment", "matchID", m.MatchID, "message_type", reply.MessageType)
		return false
	}

	s.mu.Lock()
	// A fast referee may have reported the result before its ack was
	// processed; a completed match never moves back to in progress.
	if m.Status == MatchPending {
		m.Status = MatchInProgress
		m.AssignedAt = s.now()
	}
	s.mu.Unlock()
	return true
}
