// Package audit records every envelope an agent sends or receives on an
// append-only trail. The trail is a hook point: the core calls Record around
// each send/receive and the sink decides the storage.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// Direction of an audited envelope relative to the recording agent.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// Trail is an append-only record of envelopes. Implementations must be safe
// for concurrent use and must never fail the caller: auditing is best-effort.
type Trail interface {
	Record(ctx context.Context, direction string, env *protocol.Envelope)
}

// Nop is a Trail that discards everything.
type Nop struct{}

func (Nop) Record(context.Context, string, *protocol.Envelope) {}

// Multi fans one Record out to several trails.
type Multi []Trail

func (m Multi) Record(ctx context.Context, direction string, env *protocol.Envelope) {
	for _, t := range m {
		t.Record(ctx, direction, env)
	}
}

// entry is the stored line format: timestamp, direction, full envelope.
type entry struct {
	Timestamp string             `json:"timestamp"`
	Direction string             `json:"direction"`
	Message   *protocol.Envelope `json:"message"`
}

// JSONL appends one JSON object per envelope to a local file.
type JSONL struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONL opens (creating if needed) the trail file in append mode.
func NewJSONL(path string) (*JSONL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONL{file: f}, nil
}

func (j *JSONL) Record(_ context.Context, direction string, env *protocol.Envelope) {
	line, err := json.Marshal(entry{
		Timestamp: protocol.Timestamp(),
		Direction: direction,
		Message:   env,
	})
	if err != nil {
		slog.Error("Failed to marshal audit entry", "error", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.file.Write(append(line, '\n')); err != nil {
		slog.Error("Failed to append audit entry", "error", err)
	}
}

// Close flushes and closes the underlying file.
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
