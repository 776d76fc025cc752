package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

func TestClientServerRoundTrip(t *testing.T) {
	handler := HandlerFunc(func(_ context.Context, msg *protocol.Message) *protocol.Message {
		require.Equal(t, protocol.TypeLeagueQuery, msg.MessageType)
		reply := msg.Reply(protocol.TypeLeagueQueryResponse, "league_manager")
		reply.QueryType = msg.QueryType
		return reply
	})

	srv := httptest.NewServer(NewRouter(handler, nil))
	defer srv.Close()

	client := NewClient(2*time.Second, nil)
	msg := protocol.NewMessage(protocol.TypeLeagueQuery, "player:player_1")
	msg.QueryType = protocol.QueryGetStandings

	reply, err := client.Send(context.Background(), srv.URL+"/rpc", msg)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeLeagueQueryResponse, reply.MessageType)
	assert.Equal(t, protocol.QueryGetStandings, reply.QueryType)
	assert.Equal(t, msg.ConversationID, reply.ConversationID)
}

func TestServerEchoesCorrelationID(t *testing.T) {
	srv := httptest.NewServer(NewRouter(HandlerFunc(func(_ context.Context, msg *protocol.Message) *protocol.Message {
		return msg.Reply(protocol.TypeAck, "league_manager")
	}), nil))
	defer srv.Close()

	env := protocol.Wrap(protocol.NewMessage(protocol.TypeAck, "player:p1"), json.RawMessage(`12345`))
	body, err := json.Marshal(env)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/rpc", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var replyEnv protocol.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&replyEnv))
	assert.Equal(t, `12345`, string(replyEnv.ID))
	assert.NotNil(t, replyEnv.Result)
}

func TestServerRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(NewRouter(HandlerFunc(func(_ context.Context, msg *protocol.Message) *protocol.Message {
		t.Fatal("handler must not run for malformed bodies")
		return nil
	}), nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/rpc", "application/json", bytes.NewReader([]byte(`{{not json`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var replyEnv protocol.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&replyEnv))
	require.NotNil(t, replyEnv.Error)
	assert.Equal(t, protocol.CodeMalformedResponse, replyEnv.Error.ErrorCode)
}

func TestServerAcceptsBareMessage(t *testing.T) {
	srv := httptest.NewServer(NewRouter(HandlerFunc(func(_ context.Context, msg *protocol.Message) *protocol.Message {
		return msg.Reply(protocol.TypeAck, "league_manager")
	}), nil))
	defer srv.Close()

	raw := []byte(`{"protocol":"league.v2","message_type":"ACK","sender":"player:p1","timestamp":"2026-01-01T00:00:00Z"}`)
	resp, err := http.Post(srv.URL+"/rpc", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var replyEnv protocol.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&replyEnv))
	require.NotNil(t, replyEnv.Result)
	assert.Equal(t, protocol.TypeAck, replyEnv.Result.MessageType)
}

func TestClientTransportFailure(t *testing.T) {
	client := NewClient(200*time.Millisecond, nil)
	_, err := client.Send(context.Background(), "http://127.0.0.1:1/rpc", protocol.NewMessage(protocol.TypeAck, "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportFailure)
}

func TestClientMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`this is not an envelope`))
	}))
	defer srv.Close()

	client := NewClient(time.Second, nil)
	_, err := client.Send(context.Background(), srv.URL, protocol.NewMessage(protocol.TypeAck, "x"))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClientInjectsAuthToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(NewRouter(HandlerFunc(func(_ context.Context, msg *protocol.Message) *protocol.Message {
		got = msg.AuthToken
		return msg.Reply(protocol.TypeAck, "league_manager")
	}), nil))
	defer srv.Close()

	client := NewClient(time.Second, nil)
	client.Token = func() string { return "tok-abc" }

	_, err := client.Send(context.Background(), srv.URL+"/rpc", protocol.NewMessage(protocol.TypeAck, "referee:r1"))
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", got)
}
