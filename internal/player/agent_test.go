package player

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

type stubSender struct {
	mu    sync.Mutex
	sent  []*protocol.Message
	reply func(msg *protocol.Message) (*protocol.Message, error)
}

func (f *stubSender) Send(_ context.Context, _ string, msg *protocol.Message) (*protocol.Message, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	reply := f.reply
	f.mu.Unlock()
	return reply(msg)
}

func registrationReply(msg *protocol.Message) (*protocol.Message, error) {
	reply := msg.Reply(protocol.TypeLeagueRegisterResponse, "league_manager")
	reply.PlayerID = "player_abc123"
	reply.AuthToken = "issued-token"
	reply.LeagueID = "league_001"
	reply.Status = "ACCEPTED"
	return reply, nil
}

func newRegisteredAgent(t *testing.T) *Agent {
	t.Helper()
	a := NewAgent(Config{
		DisplayName: "Alice",
		Endpoint:    "http://alice.test/rpc",
		LeagueURL:   "http://league.test/rpc",
		Strategy:    StrategyAlternating,
	}, &stubSender{reply: registrationReply})
	require.NoError(t, a.Register(context.Background()))
	return a
}

func TestRegister(t *testing.T) {
	sender := &stubSender{reply: registrationReply}
	a := NewAgent(Config{
		DisplayName: "Alice",
		Endpoint:    "http://alice.test/rpc",
		LeagueURL:   "http://league.test/rpc",
		Strategy:    StrategyRandom,
	}, sender)

	require.NoError(t, a.Register(context.Background()))
	assert.Equal(t, "player_abc123", a.PlayerID())

	require.Len(t, sender.sent, 1)
	req := sender.sent[0]
	assert.Equal(t, protocol.TypeLeagueRegisterRequest, req.MessageType)
	require.NotNil(t, req.PlayerMeta)
	assert.Equal(t, "Alice", req.PlayerMeta.DisplayName)
	assert.Equal(t, "http://alice.test/rpc", req.PlayerMeta.ContactEndpoint)
	assert.Equal(t, "random", req.PlayerMeta.Strategy)
}

func TestRegisterRejected(t *testing.T) {
	sender := &stubSender{reply: func(msg *protocol.Message) (*protocol.Message, error) {
		return protocol.NewErrorMessage("league_manager", protocol.CodeInternalError, "full", msg.ConversationID), nil
	}}
	a := NewAgent(Config{DisplayName: "Alice", LeagueURL: "http://league.test/rpc"}, sender)
	assert.Error(t, a.Register(context.Background()))
}

func TestHandleInvitationAccepts(t *testing.T) {
	a := newRegisteredAgent(t)

	inv := protocol.NewMessage(protocol.TypeGameInvitation, "referee:referee_x")
	inv.MatchID = "match_r1_1"
	inv.RoundID = 1
	inv.OpponentID = "player_def456"
	inv.RoleInMatch = "PLAYER_A"

	ack := a.Handle(context.Background(), inv)
	assert.Equal(t, protocol.TypeGameJoinAck, ack.MessageType)
	assert.Equal(t, "match_r1_1", ack.MatchID)
	assert.Equal(t, inv.ConversationID, ack.ConversationID)
	assert.Equal(t, "issued-token", ack.AuthToken)
	require.NotNil(t, ack.Accept)
	assert.True(t, *ack.Accept)
	assert.NotEmpty(t, ack.ArrivalTimestamp)
}

func TestHandleChooseParityFollowsStrategy(t *testing.T) {
	a := newRegisteredAgent(t)

	call := protocol.NewMessage(protocol.TypeChooseParityCall, "referee:referee_x")
	call.MatchID = "match_r1_1"

	first := a.Handle(context.Background(), call)
	require.Equal(t, protocol.TypeChooseParityResponse, first.MessageType)
	assert.Contains(t, []string{"even", "odd"}, first.Choice)

	// The alternating strategy must flip on the next call.
	second := a.Handle(context.Background(), call)
	assert.NotEqual(t, first.Choice, second.Choice)
}

func TestHandleGameOverUpdatesRecord(t *testing.T) {
	a := newRegisteredAgent(t)

	inv := protocol.NewMessage(protocol.TypeGameInvitation, "referee:referee_x")
	inv.MatchID = "match_r1_1"
	inv.OpponentID = "player_def456"
	a.Handle(context.Background(), inv)

	call := protocol.NewMessage(protocol.TypeChooseParityCall, "referee:referee_x")
	call.MatchID = "match_r1_1"
	resp := a.Handle(context.Background(), call)
	myChoice := resp.Choice

	winner := "player_abc123"
	over := protocol.NewMessage(protocol.TypeGameOver, "referee:referee_x")
	over.MatchID = "match_r1_1"
	over.GameResult = &protocol.GameResult{
		Status:         protocol.ResultStatusWin,
		WinnerPlayerID: &winner,
		DrawnNumber:    42,
		Choices:        map[string]string{"player_abc123": myChoice, "player_def456": "odd"},
	}

	ack := a.Handle(context.Background(), over)
	assert.Equal(t, protocol.TypeAck, ack.MessageType)
	assert.Equal(t, "received", ack.Status)

	stats := a.Stats()
	assert.Equal(t, Stats{Wins: 1, TotalGames: 1}, stats)

	history := a.History()
	require.Len(t, history, 1)
	assert.Equal(t, "match_r1_1", history[0].MatchID)
	assert.Equal(t, "player_def456", history[0].OpponentID)
	assert.Equal(t, myChoice, history[0].MyChoice)
	assert.Equal(t, "odd", history[0].OpponentChoice)
	assert.Equal(t, 42, history[0].DrawnNumber)
	assert.Equal(t, OutcomeWin, history[0].Outcome)
}

func TestHandleGameOverLossAndDraw(t *testing.T) {
	a := newRegisteredAgent(t)

	winner := "player_def456"
	loss := protocol.NewMessage(protocol.TypeGameOver, "referee:referee_x")
	loss.GameResult = &protocol.GameResult{Status: protocol.ResultStatusWin, WinnerPlayerID: &winner}
	a.Handle(context.Background(), loss)

	draw := protocol.NewMessage(protocol.TypeGameOver, "referee:referee_x")
	draw.GameResult = &protocol.GameResult{Status: protocol.ResultStatusDraw}
	a.Handle(context.Background(), draw)

	assert.Equal(t, Stats{Losses: 1, Draws: 1, TotalGames: 2}, a.Stats())
}

func TestHandleRoundAnnouncement(t *testing.T) {
	a := newRegisteredAgent(t)

	ann := protocol.NewMessage(protocol.TypeRoundAnnouncement, "league_manager")
	ann.RoundID = 2
	ann.Schedule = []protocol.ScheduledMatch{
		{MatchID: "match_r2_1", RoundID: 2, Player1ID: "player_abc123", Player2ID: "player_def456"},
	}

	ack := a.Handle(context.Background(), ann)
	assert.Equal(t, protocol.TypeAck, ack.MessageType)
}

func TestHandleUnknownMessageType(t *testing.T) {
	a := newRegisteredAgent(t)

	msg := protocol.NewMessage("TELEPORT_REQUEST", "league_manager")
	reply := a.Handle(context.Background(), msg)
	assert.Equal(t, protocol.TypeAck, reply.MessageType)
	assert.Equal(t, "unknown_message_type", reply.Status)
}
