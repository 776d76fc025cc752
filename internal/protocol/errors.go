package protocol

// Structured error codes carried in ERROR payloads.
const (
	CodeAuthFailed               = "AUTH_FAILED"
	CodeMatchNotFound            = "MATCH_NOT_FOUND"
	CodeMatchAlreadyCompleted    = "MATCH_ALREADY_COMPLETED"
	CodeInsufficientParticipants = "INSUFFICIENT_PARTICIPANTS"
	CodeScheduleAlreadyExists    = "SCHEDULE_ALREADY_EXISTS"
	CodeUnknownMessageType       = "UNKNOWN_MESSAGE_TYPE"
	CodeUnknownQuery             = "UNKNOWN_QUERY"
	CodeTransportFailure         = "TRANSPORT_FAILURE"
	CodeMalformedResponse        = "MALFORMED_RESPONSE"
	CodeTimeout                  = "TIMEOUT"
	CodeGameError                = "GAME_ERROR"
	CodeInternalError            = "INTERNAL_ERROR"
)
