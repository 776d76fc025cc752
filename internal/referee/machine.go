package referee

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// League scoring: 3 points for a win, 1 each for a draw.
const (
	pointsWin  = 3
	pointsDraw = 1
)

// runMatch executes one match end to end: invite both players, collect both
// decisions, resolve, announce and report. Each phase is a fan-out/fan-in
// barrier over the two participants; states never interleave. A panic is
// contained here so a faulty match cannot take the referee process down.
func (s *Server) runMatch(ctx context.Context, sess *Session) {
	defer s.discardSession(sess.MatchID)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Match execution fault", "matchID", sess.MatchID, "panic", r)
			s.notifyFault(ctx, sess, fmt.Sprintf("internal referee fault: %v", r))
		}
	}()

	slog.Info("Starting match", "matchID", sess.MatchID, "roundID", sess.RoundID,
		"player1", sess.Player1.ID, "player2", sess.Player2.ID)

	if !s.awaitParticipants(ctx, sess) {
		// Abandoned: no result is ever reported for a match both players
		// did not join.
		slog.Warn("Match abandoned at join", "matchID", sess.MatchID,
			"player1Joined", sess.Joined1, "player2Joined", sess.Joined2)
		return
	}

	sess.State = StateCollectingDecisions
	s.collectDecisions(ctx, sess)

	sess.State = StateResolvingOutcome
	result, gameResult := s.resolve(sess)

	sess.State = StateCompleted
	s.announceGameOver(ctx, sess, gameResult)
	s.reportResult(ctx, sess, result)

	slog.Info("Match completed", "matchID", sess.MatchID, "winner", sess.WinnerID)
}

// awaitParticipants invites both players concurrently and reports whether
// both acknowledged the invitation positively.
func (s *Server) awaitParticipants(ctx context.Context, sess *Session) bool {
	var g errgroup.Group
	g.Go(func() error {
		if err := s.invite(ctx, sess, sess.Player1, sess.Player2, "PLAYER_A"); err != nil {
			return err
		}
		sess.Joined1 = true
		return nil
	})
	g.Go(func() error {
		if err := s.invite(ctx, sess, sess.Player2, sess.Player1, "PLAYER_B"); err != nil {
			return err
		}
		sess.Joined2 = true
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Warn("Invitation failed", "matchID", sess.MatchID, "error", err)
		return false
	}
	return true
}

func (s *Server) invite(ctx context.Context, sess *Session, player, opponent Participant, role string) error {
	msg := s.newMessage(protocol.TypeGameInvitation, sess.ConversationID)
	msg.LeagueID = sess.LeagueID
	msg.RoundID = sess.RoundID
	msg.MatchID = sess.MatchID
	msg.GameType = protocol.GameTypeEvenOdd
	msg.RoleInMatch = role
	msg.OpponentID = opponent.ID

	reply, err := s.sender.Send(ctx, player.Endpoint, msg)
	if err != nil {
		return fmt.Errorf("invite %s: %w", player.ID, err)
	}
	if reply.MessageType != protocol.TypeGameJoinAck {
		return fmt.Errorf("invite %s: unexpected reply %s", player.ID, reply.MessageType)
	}
	if reply.Accept != nil && !*reply.Accept {
		return fmt.Errorf("invite %s: player declined", player.ID)
	}
	return nil
}

// collectDecisions runs the decision collector for both players concurrently
// and joins before the machine moves on.
func (s *Server) collectDecisions(ctx context.Context, sess *Session) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sess.Choice1, _ = s.collectChoice(ctx, sess, sess.Player1)
	}()
	go func() {
		defer wg.Done()
		sess.Choice2, _ = s.collectChoice(ctx, sess, sess.Player2)
	}()
	wg.Wait()
}

// resolve produces the reportable result from the collected choices. A
// missing choice on exactly one side is a technical loss for that side; both
// sides missing is a scoreless double technical loss; otherwise the parity
// rule decides on a fresh random draw in [1,100].
func (s *Server) resolve(sess *Session) (*protocol.MatchResult, *protocol.GameResult) {
	choices := map[string]string{
		sess.Player1.ID: sess.Choice1,
		sess.Player2.ID: sess.Choice2,
	}

	switch {
	case sess.Choice1 == "" && sess.Choice2 == "":
		slog.Warn("Double technical loss, neither player responded", "matchID", sess.MatchID)
		return &protocol.MatchResult{
				Winner: nil,
				Score:  map[string]int{sess.Player1.ID: 0, sess.Player2.ID: 0},
				Details: &protocol.MatchDetails{
					Choices:       choices,
					TechnicalLoss: []string{sess.Player1.ID, sess.Player2.ID},
				},
			}, &protocol.GameResult{
				Status:  protocol.ResultStatusDraw,
				Choices: choices,
				Reason:  "both players failed to respond; scoreless draw",
			}

	case sess.Choice1 == "":
		return s.technicalLoss(sess, sess.Player1, sess.Player2, choices)
	case sess.Choice2 == "":
		return s.technicalLoss(sess, sess.Player2, sess.Player1, choices)
	}

	sess.DrawnNumber = s.intn(100) + 1
	parity := ParityOf(sess.DrawnNumber)
	slog.Info("Drew number", "matchID", sess.MatchID, "number", sess.DrawnNumber, "parity", parity,
		"choice1", sess.Choice1, "choice2", sess.Choice2)

	var winner *Participant
	switch ResolveWinner(sess.DrawnNumber, sess.Choice1, sess.Choice2) {
	case WinnerA:
		winner = &sess.Player1
	case WinnerB:
		winner = &sess.Player2
	}

	details := &protocol.MatchDetails{DrawnNumber: sess.DrawnNumber, Choices: choices}

	if winner == nil {
		reason := fmt.Sprintf("both players chose %s, number was %d (%s)", sess.Choice1, sess.DrawnNumber, parity)
		return &protocol.MatchResult{
				Winner:  nil,
				Score:   map[string]int{sess.Player1.ID: pointsDraw, sess.Player2.ID: pointsDraw},
				Details: details,
			}, &protocol.GameResult{
				Status:       protocol.ResultStatusDraw,
				DrawnNumber:  sess.DrawnNumber,
				NumberParity: parity,
				Choices:      choices,
				Reason:       reason,
			}
	}

	sess.WinnerID = winner.ID
	loser := sess.Opponent(winner.ID)
	reason := fmt.Sprintf("%s chose %s, number was %d (%s)", winner.ID, choices[winner.ID], sess.DrawnNumber, parity)
	return &protocol.MatchResult{
			Winner:  &winner.ID,
			Score:   map[string]int{winner.ID: pointsWin, loser.ID: 0},
			Details: details,
		}, &protocol.GameResult{
			Status:         protocol.ResultStatusWin,
			WinnerPlayerID: &winner.ID,
			DrawnNumber:    sess.DrawnNumber,
			NumberParity:   parity,
			Choices:        choices,
			Reason:         reason,
		}
}

// technicalLoss awards the match to the responding side without invoking the
// resolution rule.
func (s *Server) technicalLoss(sess *Session, loser, winner Participant, choices map[string]string) (*protocol.MatchResult, *protocol.GameResult) {
	slog.Warn("Technical loss", "matchID", sess.MatchID, "playerID", loser.ID)
	sess.WinnerID = winner.ID
	return &protocol.MatchResult{
			Winner: &winner.ID,
			Score:  map[string]int{winner.ID: pointsWin, loser.ID: 0},
			Details: &protocol.MatchDetails{
				Choices:       choices,
				TechnicalLoss: []string{loser.ID},
			},
		}, &protocol.GameResult{
			Status:         protocol.ResultStatusWin,
			WinnerPlayerID: &winner.ID,
			Choices:        choices,
			Reason:         fmt.Sprintf("technical loss: %s failed to respond", loser.ID),
		}
}

// announceGameOver sends the identical GAME_OVER payload to both players.
// Fire and forget: delivery failures are logged, never acted on.
func (s *Server) announceGameOver(ctx context.Context, sess *Session, gameResult *protocol.GameResult) {
	for _, player := range []Participant{sess.Player1, sess.Player2} {
		msg := s.newMessage(protocol.TypeGameOver, sess.ConversationID)
		msg.MatchID = sess.MatchID
		msg.GameType = protocol.GameTypeEvenOdd
		msg.GameResult = gameResult

		if _, err := s.sender.Send(ctx, player.Endpoint, msg); err != nil {
			slog.Warn("Failed to deliver game over", "matchID", sess.MatchID, "playerID", player.ID, "error", err)
		}
	}
}

// reportResult sends the outcome to the league manager exactly once.
func (s *Server) reportResult(ctx context.Context, sess *Session, result *protocol.MatchResult) {
	msg := s.newMessage(protocol.TypeMatchResultReport, sess.ConversationID)
	msg.LeagueID = sess.LeagueID
	msg.RoundID = sess.RoundID
	msg.MatchID = sess.MatchID
	msg.GameType = protocol.GameTypeEvenOdd
	msg.Result = result

	reply, err := s.sender.Send(ctx, s.cfg.LeagueURL, msg)
	if err != nil {
		slog.Error("Failed to report match result", "matchID", sess.MatchID, "error", err)
		return
	}
	if reply.MessageType != protocol.TypeMatchResultAcknowledged {
		slog.Error("League did not acknowledge result", "matchID", sess.MatchID, "message_type", reply.MessageType, "error_code", reply.ErrorCode)
	}
}

// notifyFault tells both players the match died to an internal error. The
// referee stays up and keeps accepting assignments.
func (s *Server) notifyFault(ctx context.Context, sess *Session, detail string) {
	for _, player := range []Participant{sess.Player1, sess.Player2} {
		msg := protocol.NewErrorMessage(s.senderTag(), protocol.CodeGameError, detail, sess.ConversationID)
		msg.MatchID = sess.MatchID
		if _, err := s.sender.Send(ctx, player.Endpoint, msg); err != nil {
			slog.Warn("Failed to deliver fault notice", "matchID", sess.MatchID, "playerID", player.ID, "error", err)
		}
	}
}
