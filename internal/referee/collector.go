package referee

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// collectChoice obtains one participant's parity choice. Each attempt sends
// a CHOOSE_PARITY_CALL carrying a deadline timestamp and waits at most the
// configured timeout. Timeouts, transport failures, malformed replies and
// illegal values all consume one retry from the participant's per-match
// budget; a timeout additionally sends the participant an out-of-band
// notice. Returns false once the budget is exhausted.
func (s *Server) collectChoice(ctx context.Context, sess *Session, player Participant) (string, bool) {
	opponent := sess.Opponent(player.ID)

	for sess.RetryCount(player.ID) < s.cfg.MaxRetries {
		if ctx.Err() != nil {
			return "", false
		}

		msg := s.newMessage(protocol.TypeChooseParityCall, sess.ConversationID)
		msg.MatchID = sess.MatchID
		msg.PlayerID = player.ID
		msg.GameType = protocol.GameTypeEvenOdd
		msg.Deadline = s.now().Add(s.cfg.ChoiceTimeout).UTC().Format(time.RFC3339Nano)
		msg.Context = &protocol.ChoiceContext{
			OpponentID: opponent.ID,
			RoundID:    sess.RoundID,
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.ChoiceTimeout)
		reply, err := s.sender.Send(attemptCtx, player.Endpoint, msg)
		cancel()

		if err != nil {
			attempt := sess.addRetry(player.ID)
			if errors.Is(err, context.DeadlineExceeded) {
				slog.Warn("Timeout waiting for choice", "matchID", sess.MatchID, "playerID", player.ID, "attempt", attempt)
				s.notifyTimeout(ctx, sess, player)
			} else {
				slog.Warn("Transport failure collecting choice", "matchID", sess.MatchID, "playerID", player.ID, "attempt", attempt, "error", err)
			}
			continue
		}

		if reply.MessageType == protocol.TypeChooseParityResponse &&
			(reply.Choice == protocol.ChoiceEven || reply.Choice == protocol.ChoiceOdd) {
			return reply.Choice, true
		}

		attempt := sess.addRetry(player.ID)
		slog.Warn("Invalid choice response", "matchID", sess.MatchID, "playerID", player.ID,
			"message_type", reply.MessageType, "choice", reply.Choice, "attempt", attempt)
	}

	return "", false
}

// notifyTimeout tells a participant it missed the decision deadline. Best
// effort: a failure here must not consume further budget or abort the match.
func (s *Server) notifyTimeout(ctx context.Context, sess *Session, player Participant) {
	notice := protocol.NewErrorMessage(s.senderTag(), protocol.CodeTimeout,
		"player "+player.ID+" did not respond in time", sess.ConversationID)
	notice.MatchID = sess.MatchID

	if _, err := s.sender.Send(ctx, player.Endpoint, notice); err != nil {
		slog.Warn("Failed to deliver timeout notice", "matchID", sess.MatchID, "playerID", player.ID, "error", err)
	}
}
