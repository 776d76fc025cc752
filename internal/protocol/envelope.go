package protocol

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
)

// Version is the JSON-RPC protocol version tag every envelope carries.
const Version = "2.0"

// MethodUnknown is the routing method for message types outside the protocol.
const MethodUnknown = "unknown"

// methodByMessageType maps league.v2 message types to JSON-RPC method names.
// Requests and their responses share a method so that standard JSON-RPC
// routing works while the semantic type stays in the payload.
var methodByMessageType = map[string]string{
	TypeRefereeRegisterRequest:  "register_referee",
	TypeRefereeRegisterResponse: "register_referee",
	TypeLeagueRegisterRequest:   "register_player",
	TypeLeagueRegisterResponse:  "register_player",

	TypeMatchAssignment:    "assign_match",
	TypeMatchAssignmentAck: "assign_match",

	TypeGameInvitation:          "handle_game_invitation",
	TypeGameJoinAck:             "handle_game_invitation",
	TypeChooseParityCall:        "choose_parity",
	TypeChooseParityResponse:    "choose_parity",
	TypeGameOver:                "notify_match_result",
	TypeMatchResultReport:       "report_match_result",
	TypeMatchResultAcknowledged: "report_match_result",

	TypeRoundAnnouncement:     "announce_round",
	TypeRoundCompleted:        "notify_round_completed",
	TypeLeagueStandingsUpdate: "update_standings",
	TypeLeagueCompleted:       "notify_league_completed",

	TypeLeagueQuery:         "query_league",
	TypeLeagueQueryResponse: "query_league",
	TypeAck:                 "acknowledge",
	TypeError:               "error",
}

// MethodFor resolves a message type to its JSON-RPC method name. Unmapped
// types resolve to MethodUnknown, never to an error.
func MethodFor(messageType string) string {
	if m, ok := methodByMessageType[messageType]; ok {
		return m
	}
	return MethodUnknown
}

// Envelope is the JSON-RPC 2.0 frame around a league.v2 message. Exactly one
// of Params (request), Result (response) or Error (error response) is set.
// ID is the correlation id: opaque, and echoed byte-for-byte by responses.
type Envelope struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  *Message        `json:"params,omitempty"`
	Result  *Message        `json:"result,omitempty"`
	Error   *Message        `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Wrap frames a request payload under the given correlation id. The method is
// derived from the payload's message type.
func Wrap(payload *Message, correlationID json.RawMessage) *Envelope {
	return &Envelope{
		Version: Version,
		Method:  MethodFor(payload.MessageType),
		Params:  payload,
		ID:      correlationID,
	}
}

// WrapResponse frames a response payload under the correlation id of the
// request it answers.
func WrapResponse(result *Message, correlationID json.RawMessage) *Envelope {
	return &Envelope{
		Version: Version,
		Result:  result,
		ID:      correlationID,
	}
}

// WrapError frames an ERROR payload as a JSON-RPC error response.
func WrapError(errMsg *Message, correlationID json.RawMessage) *Envelope {
	return &Envelope{
		Version: Version,
		Error:   errMsg,
		ID:      correlationID,
	}
}

// Unwrap returns the envelope's payload: request params if present, then the
// result, then the error payload. An envelope with no payload at all yields
// an empty message rather than nil so callers never have to nil-check.
func (e *Envelope) Unwrap() *Message {
	switch {
	case e.Params != nil:
		return e.Params
	case e.Result != nil:
		return e.Result
	case e.Error != nil:
		return e.Error
	default:
		return &Message{}
	}
}

// IsEnvelope reports whether raw JSON is a JSON-RPC 2.0 envelope.
func IsEnvelope(data []byte) bool {
	var probe struct {
		Version string `json:"jsonrpc"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Version == Version
}

// NewCorrelationID produces a fresh string correlation id.
func NewCorrelationID() json.RawMessage {
	return json.RawMessage(strconv.Quote(uuid.NewString()))
}
