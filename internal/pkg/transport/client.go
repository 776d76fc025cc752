// Package transport carries league.v2 envelopes over HTTP. Agents send with
// Client and receive through a chi router that dispatches to a Handler. The
// core never touches HTTP directly; it sees messages in, messages out.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cheildo/parity-league-backend/internal/pkg/audit"
	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// Sentinel errors for the two transport-level failure classes.
var (
	ErrTransportFailure  = errors.New("transport failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// Client sends league messages to peer agents as JSON-RPC over HTTP POST.
type Client struct {
	http  *http.Client
	trail audit.Trail

	// Token, when set, is injected into outgoing messages that carry no
	// auth token yet. Agents set it once registration succeeds.
	Token func() string
}

// NewClient builds a client with the given per-request timeout. A nil trail
// disables auditing.
func NewClient(timeout time.Duration, trail audit.Trail) *Client {
	if trail == nil {
		trail = audit.Nop{}
	}
	return &Client{
		http:  &http.Client{Timeout: timeout},
		trail: trail,
	}
}

// Send wraps msg in an envelope, posts it to endpoint and returns the
// unwrapped response payload. Network and HTTP-status failures surface as
// ErrTransportFailure, undecodable bodies as ErrMalformedResponse. The
// response is matched to the request by the echoed correlation id.
func (c *Client) Send(ctx context.Context, endpoint string, msg *protocol.Message) (*protocol.Message, error) {
	if c.Token != nil && msg.AuthToken == "" {
		msg.AuthToken = c.Token()
	}

	env := protocol.Wrap(msg, protocol.NewCorrelationID())
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.trail.Record(ctx, audit.DirectionSent, env)

	resp, err := c.http.Do(req)
	if err != nil {
		// Keep context errors recognizable so callers can tell a timeout
		// from a refused connection.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrTransportFailure, endpoint, resp.StatusCode)
	}

	var replyEnv protocol.Envelope
	if err := json.Unmarshal(raw, &replyEnv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !bytes.Equal(replyEnv.ID, env.ID) {
		return nil, fmt.Errorf("%w: correlation id mismatch", ErrMalformedResponse)
	}

	c.trail.Record(ctx, audit.DirectionReceived, &replyEnv)
	return replyEnv.Unwrap(), nil
}
