// Package testhelpers provides common utilities for testing the chat server.
//
// It starts in-process servers behind httptest, dials WebSocket peers with an
// allowed Origin, and reads the newline-batched envelopes the server writes.
package testhelpers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/server"
)

// TestOrigin is the Origin header sent by ConnectWebSocket. Servers started
// by NewTestServer allow it.
const TestOrigin = "http://localhost:8080"

// DefaultWait bounds every read made through a Peer.
const DefaultWait = 2 * time.Second

// NewTestServer starts a chat server behind httptest. configure, when not
// nil, adjusts the default configuration first. Both are torn down when the
// test ends.
func NewTestServer(t *testing.T, configure func(*server.Config)) (*server.Server, *httptest.Server) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{TestOrigin}
	if configure != nil {
		configure(cfg)
	}

	srv, err := server.New(*cfg, logs.GetLoggerFromLevel(slog.LevelError))
	require.NoError(t, err)
	srv.Start()

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(5 * time.Second)
	})
	return srv, ts
}

// WebSocketURL converts an httptest URL into the /ws endpoint URL.
func WebSocketURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

// ConnectWebSocket creates a WebSocket connection to the specified URL.
// It returns the connection or an error if connection fails.
func ConnectWebSocket(url string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", TestOrigin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// Peer is one test connection. It buffers envelopes that arrived batched in
// a single frame so they can be consumed one at a time.
type Peer struct {
	t       *testing.T
	Conn    *websocket.Conn
	pending []protocol.Envelope
}

// Dial connects a new Peer to the server at httpURL.
func Dial(t *testing.T, httpURL string) *Peer {
	t.Helper()

	conn, _, err := ConnectWebSocket(WebSocketURL(httpURL))
	require.NoError(t, err)
	p := &Peer{t: t, Conn: conn}
	t.Cleanup(func() { _ = conn.Close() })
	return p
}

// Send writes one envelope.
func (p *Peer) Send(event string, data any) {
	p.t.Helper()

	raw, err := protocol.Encode(event, data)
	require.NoError(p.t, err)
	require.NoError(p.t, p.Conn.WriteMessage(websocket.TextMessage, raw))
}

// SendRaw writes a frame as is.
func (p *Peer) SendRaw(raw []byte) {
	p.t.Helper()
	require.NoError(p.t, p.Conn.WriteMessage(websocket.TextMessage, raw))
}

// Join sends a join request.
func (p *Peer) Join(username, roomID string) {
	p.t.Helper()
	p.Send(protocol.EventJoin, protocol.JoinRequest{Username: username, RoomID: roomID})
}

// Say posts a message to the joined room.
func (p *Peer) Say(message string) {
	p.t.Helper()
	p.Send(protocol.EventSendMessage, protocol.SendMessageRequest{Message: message})
}

// Leave sends a leaveRoom request.
func (p *Peer) Leave() {
	p.t.Helper()
	p.Send(protocol.EventLeaveRoom, protocol.LeaveRoomRequest{})
}

// Next returns the next envelope, reading a new frame when the buffer is
// empty. A read that times out leaves the connection unusable.
func (p *Peer) Next(wait time.Duration) (protocol.Envelope, error) {
	for len(p.pending) == 0 {
		if err := p.Conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return protocol.Envelope{}, err
		}
		_, raw, err := p.Conn.ReadMessage()
		if err != nil {
			return protocol.Envelope{}, err
		}
		envs, err := protocol.DecodeStream(raw)
		if err != nil {
			return protocol.Envelope{}, err
		}
		p.pending = envs
	}

	env := p.pending[0]
	p.pending = p.pending[1:]
	return env, nil
}

// Expect reads the next envelope, requires it to be named event and decodes
// its data into out when out is not nil.
func (p *Peer) Expect(event string, out any) {
	p.t.Helper()

	env, err := p.Next(DefaultWait)
	require.NoError(p.t, err, "waiting for %s", event)
	require.Equal(p.t, event, env.Event, "unexpected envelope %s", string(env.Data))
	if out != nil {
		require.NoError(p.t, json.Unmarshal(env.Data, out))
	}
}

// ExpectMembership reads a userJoined or userLeft envelope.
func (p *Peer) ExpectMembership(event string) protocol.MembershipChanged {
	p.t.Helper()

	var payload protocol.MembershipChanged
	p.Expect(event, &payload)
	return payload
}

// ExpectMessage reads a messageReceived envelope.
func (p *Peer) ExpectMessage() protocol.MessageReceived {
	p.t.Helper()

	var payload protocol.MessageReceived
	p.Expect(protocol.EventMessageReceived, &payload)
	return payload
}

// ExpectError reads an error envelope.
func (p *Peer) ExpectError() protocol.Error {
	p.t.Helper()

	var payload protocol.Error
	p.Expect(protocol.EventError, &payload)
	return payload
}

// ExpectNothing requires that no envelope arrives within wait. It must be the
// last read made on the peer.
func (p *Peer) ExpectNothing(wait time.Duration) {
	p.t.Helper()

	env, err := p.Next(wait)
	if err == nil {
		p.t.Fatalf("expected no envelope, got %s %s", env.Event, string(env.Data))
	}
	var netErr interface{ Timeout() bool }
	require.True(p.t, errors.As(err, &netErr) && netErr.Timeout(), "expected read timeout, got %v", err)
}

// Close sends a close frame and closes the connection.
func (p *Peer) Close() {
	_ = p.Conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = p.Conn.Close()
}
