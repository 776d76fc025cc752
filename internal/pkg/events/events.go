// Package events decouples the league coordinator from its observers. The
// coordinator publishes each league broadcast as an event; sinks deliver it
// best-effort to Kafka topics, websocket feeds, or anything else.
package events

import (
	"context"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// Sink receives league broadcast messages. Publish must be best-effort: a
// failing sink logs and moves on, it never propagates an error back into
// coordinator state.
type Sink interface {
	Publish(ctx context.Context, msg *protocol.Message)
}

// Fanout delivers every event to all sinks in order.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, msg *protocol.Message) {
	for _, s := range f {
		s.Publish(ctx, msg)
	}
}
