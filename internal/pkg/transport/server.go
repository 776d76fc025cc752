package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cheildo/parity-league-backend/internal/pkg/audit"
	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// Handler is one agent role's message entry point. It always returns a
// response payload; protocol faults come back as ERROR messages, never as a
// dropped request.
type Handler interface {
	Handle(ctx context.Context, msg *protocol.Message) *protocol.Message
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *protocol.Message) *protocol.Message

func (f HandlerFunc) Handle(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return f(ctx, msg)
}

// NewRouter mounts handler at POST /rpc on a fresh chi router. Additional
// routes (websocket feeds, admin endpoints) can be attached via extra.
func NewRouter(handler Handler, trail audit.Trail, extra ...func(chi.Router)) *chi.Mux {
	if trail == nil {
		trail = audit.Nop{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/rpc", func(w http.ResponseWriter, req *http.Request) {
		serveRPC(w, req, handler, trail)
	})

	for _, mount := range extra {
		mount(r)
	}
	return r
}

func serveRPC(w http.ResponseWriter, req *http.Request, handler Handler, trail audit.Trail) {
	ctx := req.Context()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		writeEnvelope(w, protocol.WrapError(
			protocol.NewErrorMessage("transport", protocol.CodeMalformedResponse, "unreadable request body", ""), nil))
		return
	}

	var env protocol.Envelope
	if !protocol.IsEnvelope(body) || json.Unmarshal(body, &env) != nil {
		// Tolerate bare (non-envelope) payloads the way the v2 agents do:
		// try to decode the body as a raw message before rejecting it.
		var bare protocol.Message
		if err := json.Unmarshal(body, &bare); err != nil || bare.MessageType == "" {
			writeEnvelope(w, protocol.WrapError(
				protocol.NewErrorMessage("transport", protocol.CodeMalformedResponse, "request is not a league.v2 envelope", ""), nil))
			return
		}
		env = *protocol.Wrap(&bare, nil)
	}

	trail.Record(ctx, audit.DirectionReceived, &env)

	reply := handler.Handle(ctx, env.Unwrap())
	if reply == nil {
		reply = protocol.NewMessage(protocol.TypeAck, "transport")
	}

	// The response echoes the request's correlation id byte-for-byte.
	replyEnv := protocol.WrapResponse(reply, env.ID)
	trail.Record(ctx, audit.DirectionSent, replyEnv)
	writeEnvelope(w, replyEnv)
}

func writeEnvelope(w http.ResponseWriter, env *protocol.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("Failed to write response envelope", "error", err)
	}
}
