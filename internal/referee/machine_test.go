package referee

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

func boolPtr(b bool) *bool { return &b }

// scriptedOpponents answers the full match flow for both players: choices
// maps an endpoint to the parity that player declares, with empty meaning
// the player never answers.
func scriptedOpponents(choices map[string]string) func(ctx context.Context, endpoint string, msg *protocol.Message) (*protocol.Message, error) {
	return func(ctx context.Context, endpoint string, msg *protocol.Message) (*protocol.Message, error) {
		switch msg.MessageType {
		case protocol.TypeGameInvitation:
			reply := msg.Reply(protocol.TypeGameJoinAck, "player:test")
			reply.Accept = boolPtr(true)
			reply.ArrivalTimestamp = protocol.Timestamp()
			return reply, nil
		case protocol.TypeChooseParityCall:
			choice := choices[endpoint]
			if choice == "" {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			reply := msg.Reply(protocol.TypeChooseParityResponse, "player:test")
			reply.Choice = choice
			return reply, nil
		case protocol.TypeMatchResultReport:
			return msg.Reply(protocol.TypeMatchResultAcknowledged, "league_manager"), nil
		default:
			return msg.Reply(protocol.TypeAck, "player:test"), nil
		}
	}
}

func TestRunMatchDecisiveWin(t *testing.T) {
	sender := &stubSender{reply: scriptedOpponents(map[string]string{
		"http://a.test/rpc": "even",
		"http://b.test/rpc": "odd",
	})}
	s := newTestServer(sender)
	s.intn = func(int) int { return 41 } // drawn number 42, even

	sess := newTestSession()
	s.runMatch(context.Background(), sess)

	assert.Equal(t, StateCompleted, sess.State)
	assert.Equal(t, 42, sess.DrawnNumber)
	assert.Equal(t, "player_a", sess.WinnerID)

	reports := sender.byType(protocol.TypeMatchResultReport)
	require.Len(t, reports, 1)
	assert.Equal(t, "http://league.test/rpc", reports[0].endpoint)
	result := reports[0].msg.Result
	require.NotNil(t, result)
	require.NotNil(t, result.Winner)
	assert.Equal(t, "player_a", *result.Winner)
	assert.Equal(t, map[string]int{"player_a": 3, "player_b": 0}, result.Score)
	require.NotNil(t, result.Details)
	assert.Equal(t, 42, result.Details.DrawnNumber)

	overs := sender.byType(protocol.TypeGameOver)
	require.Len(t, overs, 2)
	endpoints := []string{overs[0].endpoint, overs[1].endpoint}
	assert.ElementsMatch(t, []string{"http://a.test/rpc", "http://b.test/rpc"}, endpoints)
	// Both players see the identical verdict.
	assert.Equal(t, overs[0].msg.GameResult, overs[1].msg.GameResult)
	assert.Equal(t, protocol.ResultStatusWin, overs[0].msg.GameResult.Status)
	require.NotNil(t, overs[0].msg.GameResult.WinnerPlayerID)
	assert.Equal(t, "player_a", *overs[0].msg.GameResult.WinnerPlayerID)
}

func TestRunMatchIdenticalChoicesDraw(t *testing.T) {
	sender := &stubSender{reply: scriptedOpponents(map[string]string{
		"http://a.test/rpc": "even",
		"http://b.test/rpc": "even",
	})}
	s := newTestServer(sender)
	s.intn = func(int) int { return 41 } // even draw, yet identical picks split

	sess := newTestSession()
	s.runMatch(context.Background(), sess)

	reports := sender.byType(protocol.TypeMatchResultReport)
	require.Len(t, reports, 1)
	result := reports[0].msg.Result
	require.NotNil(t, result)
	assert.Nil(t, result.Winner)
	assert.Equal(t, map[string]int{"player_a": 1, "player_b": 1}, result.Score)

	overs := sender.byType(protocol.TypeGameOver)
	require.Len(t, overs, 2)
	assert.Equal(t, protocol.ResultStatusDraw, overs[0].msg.GameResult.Status)
}

func TestRunMatchTechnicalLoss(t *testing.T) {
	sender := &stubSender{reply: scriptedOpponents(map[string]string{
		"http://a.test/rpc": "even",
		// player_b never answers and exhausts its retries.
	})}
	s := newTestServer(sender)
	s.cfg.MaxRetries = 1
	s.cfg.ChoiceTimeout = 20 * time.Millisecond

	sess := newTestSession()
	s.runMatch(context.Background(), sess)

	reports := sender.byType(protocol.TypeMatchResultReport)
	require.Len(t, reports, 1)
	result := reports[0].msg.Result
	require.NotNil(t, result)
	require.NotNil(t, result.Winner)
	assert.Equal(t, "player_a", *result.Winner)
	assert.Equal(t, map[string]int{"player_a": 3, "player_b": 0}, result.Score)
	require.NotNil(t, result.Details)
	assert.Equal(t, []string{"player_b"}, result.Details.TechnicalLoss)
	// No number is drawn for a walkover.
	assert.Zero(t, result.Details.DrawnNumber)
}

func TestRunMatchBothSilentScorelessDraw(t *testing.T) {
	sender := &stubSender{reply: scriptedOpponents(map[string]string{})}
	s := newTestServer(sender)
	s.cfg.MaxRetries = 1
	s.cfg.ChoiceTimeout = 20 * time.Millisecond

	sess := newTestSession()
	s.runMatch(context.Background(), sess)

	reports := sender.byType(protocol.TypeMatchResultReport)
	require.Len(t, reports, 1)
	result := reports[0].msg.Result
	require.NotNil(t, result)
	assert.Nil(t, result.Winner)
	assert.Equal(t, map[string]int{"player_a": 0, "player_b": 0}, result.Score)
	require.NotNil(t, result.Details)
	assert.ElementsMatch(t, []string{"player_a", "player_b"}, result.Details.TechnicalLoss)

	overs := sender.byType(protocol.TypeGameOver)
	require.Len(t, overs, 2)
	assert.Equal(t, protocol.ResultStatusDraw, overs[0].msg.GameResult.Status)
	assert.Nil(t, overs[0].msg.GameResult.WinnerPlayerID)
}

func TestRunMatchAbandonedOnDecline(t *testing.T) {
	sender := &stubSender{}
	sender.setReply(func(ctx context.Context, endpoint string, msg *protocol.Message) (*protocol.Message, error) {
		if msg.MessageType == protocol.TypeGameInvitation && endpoint == "http://b.test/rpc" {
			reply := msg.Reply(protocol.TypeGameJoinAck, "player:test")
			reply.Accept = boolPtr(false)
			return reply, nil
		}
		return scriptedOpponents(map[string]string{"http://a.test/rpc": "even"})(ctx, endpoint, msg)
	})
	s := newTestServer(sender)

	sess := newTestSession()
	s.runMatch(context.Background(), sess)

	// An abandoned match produces no game and no report.
	assert.Empty(t, sender.byType(protocol.TypeChooseParityCall))
	assert.Empty(t, sender.byType(protocol.TypeGameOver))
	assert.Empty(t, sender.byType(protocol.TypeMatchResultReport))
}

func TestRunMatchFaultNotifiesPlayers(t *testing.T) {
	sender := &stubSender{reply: scriptedOpponents(map[string]string{
		"http://a.test/rpc": "even",
		"http://b.test/rpc": "odd",
	})}
	s := newTestServer(sender)
	s.intn = func(int) int { panic("rng failure") }

	sess := newTestSession()
	require.NotPanics(t, func() {
		s.runMatch(context.Background(), sess)
	})

	faults := sender.byType(protocol.TypeError)
	require.Len(t, faults, 2)
	for _, f := range faults {
		assert.Equal(t, protocol.CodeGameError, f.msg.ErrorCode)
	}
	assert.Empty(t, sender.byType(protocol.TypeMatchResultReport))
}

func TestHandleAssignmentRunsMatch(t *testing.T) {
	done := make(chan *protocol.Message, 1)
	sender := &stubSender{}
	script := scriptedOpponents(map[string]string{
		"http://a.test/rpc": "odd",
		"http://b.test/rpc": "odd",
	})
	sender.setReply(func(ctx context.Context, endpoint string, msg *protocol.Message) (*protocol.Message, error) {
		reply, err := script(ctx, endpoint, msg)
		if msg.MessageType == protocol.TypeMatchResultReport {
			done <- msg
		}
		return reply, err
	})
	s := newTestServer(sender)

	assignment := protocol.NewMessage(protocol.TypeMatchAssignment, "league_manager")
	assignment.MatchID = "match_r1_1"
	assignment.LeagueID = "league_001"
	assignment.RoundID = 1
	assignment.Player1ID = "player_a"
	assignment.Player2ID = "player_b"
	assignment.Player1Endpoint = "http://a.test/rpc"
	assignment.Player2Endpoint = "http://b.test/rpc"

	ack := s.Handle(context.Background(), assignment)
	require.Equal(t, protocol.TypeMatchAssignmentAck, ack.MessageType)
	assert.Equal(t, "accepted", ack.Status)
	assert.Equal(t, "match_r1_1", ack.MatchID)

	select {
	case report := <-done:
		require.NotNil(t, report.Result)
		assert.Nil(t, report.Result.Winner) // identical choices draw
	case <-time.After(2 * time.Second):
		t.Fatal("match never reported a result")
	}
}

func TestHandleAssignmentRejectsIncomplete(t *testing.T) {
	s := newTestServer(&stubSender{reply: scriptedOpponents(nil)})

	assignment := protocol.NewMessage(protocol.TypeMatchAssignment, "league_manager")
	assignment.MatchID = "match_r1_1"
	assignment.Player1ID = "player_a"

	reply := s.Handle(context.Background(), assignment)
	assert.Equal(t, protocol.TypeError, reply.MessageType)
	assert.Equal(t, protocol.CodeMalformedResponse, reply.ErrorCode)
}
