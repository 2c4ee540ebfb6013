// Package client is a Go library for talking to the chat server over its
// WebSocket protocol. It is used by the roomchat-client command and by tests.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

const (
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	defaultBuffer    = 64
)

// ErrClosed is returned by requests made after the connection has ended.
var ErrClosed = errors.New("client closed")

// Event is one envelope received from the server. Exactly one of the payload
// pointers is set, matching Name.
type Event struct {
	Name       string
	Membership *protocol.MembershipChanged
	Message    *protocol.MessageReceived
	History    *protocol.HistoryResult
	Error      *protocol.Error
}

// Option configures Dial.
type Option func(*Client)

// WithOrigin sets the Origin header of the handshake.
func WithOrigin(origin string) Option {
	return func(c *Client) { c.origin = origin }
}

// WithLogger sets the logger used for decode and read failures.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithBuffer sets how many received events may wait in Events.
func WithBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// Client is one connection to the chat server. Requests may be issued from
// any goroutine; events are read from Events.
type Client struct {
	conn    *websocket.Conn
	log     *slog.Logger
	origin  string
	buffer  int
	events  chan Event
	done    chan struct{}
	closing chan struct{}
	once    sync.Once
	writeMu sync.Mutex

	mu       sync.Mutex
	pending  protocol.JoinRequest
	username string
	roomID   string
	err      error
}

// Dial connects to the WebSocket endpoint at url and starts reading events.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		log:     slog.Default(),
		buffer:  defaultBuffer,
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = make(chan Event, c.buffer)

	header := http.Header{}
	if c.origin != "" {
		header.Set("Origin", c.origin)
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c.conn = conn

	go c.readLoop()
	return c, nil
}

// Events returns the channel of received events. It is closed when the
// connection ends.
func (c *Client) Events() <-chan Event { return c.events }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Identity returns the username and room this client is joined as. Both are
// empty while not joined.
func (c *Client) Identity() (username, roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username, c.roomID
}

// Join asks to join roomID as username. The membership becomes visible in
// Identity once the server confirms it.
func (c *Client) Join(username, roomID string) error {
	req := protocol.JoinRequest{Username: username, RoomID: roomID}
	c.mu.Lock()
	c.pending = req
	c.mu.Unlock()
	return c.send(protocol.EventJoin, req)
}

// Send posts message to the joined room.
func (c *Client) Send(message string) error {
	return c.send(protocol.EventSendMessage, protocol.SendMessageRequest{Message: message})
}

// Leave leaves the joined room.
func (c *Client) Leave() error {
	if err := c.send(protocol.EventLeaveRoom, protocol.LeaveRoomRequest{}); err != nil {
		return err
	}
	c.mu.Lock()
	c.username, c.roomID = "", ""
	c.pending = protocol.JoinRequest{}
	c.mu.Unlock()
	return nil
}

// History requests up to limit recent messages of the joined room. A limit
// of zero asks for the server default.
func (c *Client) History(limit int) error {
	return c.send(protocol.EventHistory, protocol.HistoryRequest{Limit: limit})
}

// Close sends a close frame and tears the connection down. Events not yet
// received are discarded.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closing)

		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		if cerr := c.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})
	<-c.done
	return err
}

func (c *Client) send(event string, data any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	raw, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
				c.log.Debug("Connection ended", "error", err)
			}
			return
		}

		envs, err := protocol.DecodeStream(raw)
		if err != nil {
			c.log.Warn("Discarding undecodable frame", "error", err)
		}
		for _, env := range envs {
			evt, err := decode(env)
			if err != nil {
				c.log.Warn("Discarding unknown envelope", "event", env.Event, "error", err)
				continue
			}
			c.track(evt)
			select {
			case c.events <- evt:
			case <-c.closing:
				return
			}
		}
	}
}

// track follows the confirmed membership of this client.
func (c *Client) track(evt Event) {
	if evt.Name != protocol.EventUserJoined {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	m := evt.Membership
	if c.pending.Username != "" && m.Username == c.pending.Username && m.RoomID == c.pending.RoomID {
		c.username, c.roomID = m.Username, m.RoomID
	}
}

func decode(env protocol.Envelope) (Event, error) {
	evt := Event{Name: env.Event}
	var target any
	switch env.Event {
	case protocol.EventUserJoined, protocol.EventUserLeft:
		evt.Membership = &protocol.MembershipChanged{}
		target = evt.Membership
	case protocol.EventMessageReceived:
		evt.Message = &protocol.MessageReceived{}
		target = evt.Message
	case protocol.EventHistoryResult:
		evt.History = &protocol.HistoryResult{}
		target = evt.History
	case protocol.EventError:
		evt.Error = &protocol.Error{}
		target = evt.Error
	default:
		return Event{}, fmt.Errorf("unsupported event %q", env.Event)
	}

	if err := json.Unmarshal(env.Data, target); err != nil {
		return Event{}, fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return evt, nil
}
