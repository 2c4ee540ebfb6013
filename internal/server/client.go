// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, inbound event routing, and lifecycle control for each
// connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Client represents one WebSocket connection. It owns the connection, the
// buffered channel of encoded events waiting to be written, and the session
// identifier the manager knows it by.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	manager        *chat.Manager
	addr           string
	closed         bool
	maxMessageSize int64
	maxBodyLength  int
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
	log            *slog.Logger
	metrics        *Metrics
}

// NewClient creates a Client for conn with a fresh connection id. The send
// channel is buffered to SendBufferSize events.
func NewClient(conn *websocket.Conn, hub *Hub, manager *chat.Manager, addr string, cfg Config) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	id := uuid.NewString()

	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		hub:            hub,
		manager:        manager,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		maxBodyLength:  cfg.MaxBodyLength,
		rateLimiter:    newRateLimiter(cfg.RateLimit),
		rateLimit:      cfg.RateLimit,
		log:            hub.log.With("client", id),
		metrics:        hub.metrics,
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// GetSendChan returns the client's send channel for reading outgoing events.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs the read failure according to its type. Every read
// error ends the read loop.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Frame exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("Client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("Client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket error", "error", err)
	default:
		c.log.Warn("WebSocket read error", "error", err)
	}
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the frame should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.metrics.frameDropped("rate_limited")
		c.log.Warn("Rate limit exceeded; discarding frame", "burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processMessage decodes one inbound frame and routes it to the session
// manager. Failures are reported back to this client as error events.
func (c *Client) processMessage(ctx context.Context, raw []byte) {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		c.metrics.frameDropped("invalid")
		c.manager.Reject(ctx, c.id, "", err)
		return
	}

	if err := c.route(ctx, env); err != nil {
		c.manager.Reject(ctx, c.id, env.Event, err)
	}
}

func (c *Client) route(ctx context.Context, env protocol.Envelope) error {
	switch env.Event {
	case protocol.EventJoin:
		var req protocol.JoinRequest
		if err := protocol.Bind(env, &req); err != nil {
			return err
		}
		return c.manager.HandleJoin(ctx, c.id, req.Username, req.RoomID)

	case protocol.EventSendMessage:
		var req protocol.SendMessageRequest
		if err := protocol.Bind(env, &req); err != nil {
			return err
		}
		if err := protocol.CheckBody(req.Message, c.maxBodyLength); err != nil {
			return err
		}
		if err := c.manager.CheckIdentity(c.id, req.Username, req.RoomID); err != nil {
			return err
		}
		_, err := c.manager.HandleMessage(ctx, c.id, req.Message)
		return err

	case protocol.EventLeaveRoom:
		var req protocol.LeaveRoomRequest
		if err := protocol.Bind(env, &req); err != nil {
			return err
		}
		if err := c.manager.CheckIdentity(c.id, req.Username, req.RoomID); err != nil {
			return err
		}
		return c.manager.HandleLeave(ctx, c.id)

	case protocol.EventHistory:
		var req protocol.HistoryRequest
		if err := protocol.Bind(env, &req); err != nil {
			return err
		}
		history, err := c.manager.HandleHistory(ctx, c.id, req.Limit)
		if err != nil {
			return err
		}
		_, roomID, _ := c.session()
		return c.hub.Deliver(ctx, []string{c.id}, chat.Event{Kind: chat.KindHistory, RoomID: roomID, History: history})

	default:
		return fmt.Errorf("%w: unsupported event %q", chat.ErrInvalidEvent, env.Event)
	}
}

func (c *Client) session() (chat.State, string, string) {
	s, ok := c.manager.Session(c.id)
	if !ok {
		return chat.StateDisconnected, "", ""
	}
	return s.Identity()
}

func (c *Client) readPump(ctx context.Context) {
	c.manager.Connect(c.id)
	defer func() {
		// The session leaves its room before the connection is unregistered
		// so the remaining members are told while the hub still runs.
		c.manager.HandleDisconnect(context.WithoutCancel(ctx), c.id)
		c.hub.detach(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("Error closing connection in readPump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(ctx, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("Error closing connection in writePump", "error", err)
	}
}

// handleMessage writes outgoing events and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.log.Warn("Error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("Error writing close message", "error", err)
	}
	return false
}

// writeTextMessage writes a text frame holding message and any events queued
// behind it, one envelope per line
func (c *Client) writeTextMessage(message []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		c.log.Warn("Error creating writer", "error", err)
		return false
	}

	if _, err := w.Write(message); err != nil {
		c.log.Warn("Error writing message", "error", err)
		return false
	}

	if !c.writeQueuedMessages(w) {
		return false
	}

	if err := w.Close(); err != nil {
		c.log.Warn("Error closing writer", "error", err)
		return false
	}
	return true
}

// writeQueuedMessages writes any additional queued events with newline separators
func (c *Client) writeQueuedMessages(w io.Writer) bool {
	n := len(c.send)
	for i := 0; i < n; i++ {
		message, ok := <-c.send
		if !ok {
			return true
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			c.log.Warn("Error writing newline", "error", err)
			return false
		}
		if _, err := w.Write(message); err != nil {
			c.log.Warn("Error writing queued message", "error", err)
			return false
		}
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.log.Warn("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn("Error writing ping message", "error", err)
		return false
	}
	return true
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
