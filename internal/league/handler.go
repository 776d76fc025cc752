package league

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// Handler is the coordinator's message entry point: it authenticates
// privileged calls, routes by message type, and always answers — protocol
// faults come back as structured ERROR payloads.
type Handler struct {
	svc *Service
}

// NewHandler wraps the service for the transport boundary.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Handle dispatches one inbound message and returns the response payload.
func (h *Handler) Handle(ctx context.Context, msg *protocol.Message) *protocol.Message {
	switch msg.MessageType {
	case protocol.TypeRefereeRegisterRequest:
		return h.registerReferee(msg)
	case protocol.TypeLeagueRegisterRequest:
		return h.registerPlayer(msg)
	case protocol.TypeMatchResultReport:
		return h.recordResult(ctx, msg)
	case protocol.TypeLeagueQuery:
		return h.query(msg)
	default:
		slog.Warn("Unknown message type", "message_type", msg.MessageType, "sender", msg.Sender)
		return h.errorMessage(protocol.CodeUnknownMessageType, "unknown message type: "+msg.MessageType, msg.ConversationID)
	}
}

func (h *Handler) registerReferee(msg *protocol.Message) *protocol.Message {
	meta := protocol.RefereeMeta{DisplayName: "Unknown Referee"}
	if msg.RefereeMeta != nil {
		meta = *msg.RefereeMeta
	}
	id, token := h.svc.RegisterReferee(meta)

	reply := msg.Reply(protocol.TypeRefereeRegisterResponse, SenderName)
	reply.Status = "ACCEPTED"
	reply.RefereeID = id
	reply.AuthToken = token
	reply.LeagueID = h.svc.LeagueID()
	return reply
}

func (h *Handler) registerPlayer(msg *protocol.Message) *protocol.Message {
	meta := protocol.PlayerMeta{DisplayName: "Unknown Player"}
	if msg.PlayerMeta != nil {
		meta = *msg.PlayerMeta
	}
	id, token := h.svc.RegisterPlayer(meta)

	reply := msg.Reply(protocol.TypeLeagueRegisterResponse, SenderName)
	reply.Status = "ACCEPTED"
	reply.PlayerID = id
	reply.AuthToken = token
	reply.LeagueID = h.svc.LeagueID()
	return reply
}

func (h *Handler) recordResult(ctx context.Context, msg *protocol.Message) *protocol.Message {
	refereeID := senderID(msg.Sender, RoleReferee)
	if refereeID == "" {
		refereeID = msg.RefereeID
	}
	if !h.svc.ValidateAuth(refereeID, msg.AuthToken, RoleReferee) {
		return h.errorMessage(protocol.CodeAuthFailed, "invalid auth token", msg.ConversationID)
	}
	if msg.Result == nil {
		return h.errorMessage(protocol.CodeMalformedResponse, "result report carries no result", msg.ConversationID)
	}

	if err := h.svc.RecordMatchResult(ctx, msg.MatchID, msg.Result); err != nil {
		switch {
		case errors.Is(err, ErrMatchNotFound):
			return h.errorMessage(protocol.CodeMatchNotFound, err.Error(), msg.ConversationID)
		case errors.Is(err, ErrMatchAlreadyCompleted):
			return h.errorMessage(protocol.CodeMatchAlreadyCompleted, err.Error(), msg.ConversationID)
		default:
			slog.Error("Result ingestion failed", "matchID", msg.MatchID, "error", err)
			return h.errorMessage(protocol.CodeInternalError, err.Error(), msg.ConversationID)
		}
	}

	reply := msg.Reply(protocol.TypeMatchResultAcknowledged, SenderName)
	reply.MatchID = msg.MatchID
	return reply
}

func (h *Handler) query(msg *protocol.Message) *protocol.Message {
	playerID := msg.PlayerID
	if playerID == "" {
		playerID = senderID(msg.Sender, RolePlayer)
	}
	if !h.svc.ValidateAuth(playerID, msg.AuthToken, RolePlayer) {
		return h.errorMessage(protocol.CodeAuthFailed, "invalid auth token", msg.ConversationID)
	}

	reply := msg.Reply(protocol.TypeLeagueQueryResponse, SenderName)
	reply.QueryType = msg.QueryType

	switch msg.QueryType {
	case protocol.QueryGetStandings:
		reply.Data = h.svc.Standings()
	case protocol.QueryGetSchedule:
		reply.Data = h.svc.ScheduleData()
	case protocol.QueryGetNextMatch:
		if next, ok := h.svc.NextMatch(playerID); ok {
			reply.Data = next
		}
	case protocol.QueryGetPlayerStats:
		target := msg.TargetPlayerID
		if target == "" {
			target = playerID
		}
		if stats, ok := h.svc.PlayerStats(target); ok {
			reply.Data = stats
		}
	default:
		return h.errorMessage(protocol.CodeUnknownQuery, "unknown query type: "+msg.QueryType, msg.ConversationID)
	}
	return reply
}

func (h *Handler) errorMessage(code, errMsg, conversationID string) *protocol.Message {
	msg := protocol.NewErrorMessage(SenderName, code, errMsg, conversationID)
	msg.LeagueID = h.svc.LeagueID()
	return msg
}

// senderID extracts the identity from a "role:id" sender tag, or empty if
// the tag does not match the role.
func senderID(sender, role string) string {
	if id, ok := strings.CutPrefix(sender, role+":"); ok {
		return id
	}
	return ""
}
