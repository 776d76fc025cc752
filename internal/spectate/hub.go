// Package spectate streams league events to WebSocket spectators. The hub is
// an event sink: every league broadcast published to it is fanned out to all
// connected spectators as JSON.
package spectate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// upgrader upgrades an HTTP connection to a persistent WebSocket connection.
var upgrader = websocket.Upgrader{
	// Allow connections from any origin (for development).
	// In production, restrict this to the spectator UI's origin.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
)

// spectator is one connected observer. The write mutex serializes frames:
// gorilla/websocket allows at most one concurrent writer per connection, and
// concurrent result ingestions publish concurrently.
type spectator struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (s *spectator) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub fans league events out to connected spectators. It satisfies the event
// sink contract, so the league service can publish to it like any other sink.
type Hub struct {
	mu    sync.Mutex
	conns map[string]*spectator
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*spectator)}
}

// Publish sends one league event to every connected spectator. A spectator
// that cannot be written to is dropped; one dead connection never blocks the
// rest.
func (h *Hub) Publish(_ context.Context, msg *protocol.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to encode spectator event", "message_type", msg.MessageType, "error", err)
		return
	}

	h.mu.Lock()
	targets := make(map[string]*spectator, len(h.conns))
	for id, spec := range h.conns {
		targets[id] = spec
	}
	h.mu.Unlock()

	for id, spec := range targets {
		if err := spec.write(payload); err != nil {
			slog.Warn("Dropping spectator, write failed", "connID", id, "error", err)
			h.drop(id, spec)
		}
	}
}

// Count returns the number of connected spectators.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) add(id string, spec *spectator) {
	h.mu.Lock()
	h.conns[id] = spec
	h.mu.Unlock()
}

func (h *Hub) drop(id string, spec *spectator) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
	spec.conn.Close()
}

// ServeHTTP upgrades the request and keeps the spectator registered for the
// lifetime of the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}

	id := uuid.NewString()
	spec := &spectator{conn: conn}
	h.add(id, spec)
	slog.Info("Spectator connected", "connID", id, "remote", r.RemoteAddr)

	h.readPump(id, spec)
}

// readPump drains the connection until the client goes away. Spectators are
// not expected to send anything; the loop exists to detect disconnects and
// answer pings.
func (h *Hub) readPump(id string, spec *spectator) {
	defer func() {
		slog.Info("Spectator disconnected", "connID", id)
		h.drop(id, spec)
	}()

	conn := spec.conn
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("Spectator connection closed unexpectedly", "connID", id, "error", err)
			}
			return
		}
	}
}
