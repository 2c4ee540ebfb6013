// Package protocol defines the JSON envelopes exchanged over the chat
// WebSocket, shared by the server transport and the client library.
//
// Every frame carries one or more envelopes of the form
// {"event": "<name>", "data": {...}}. The server may batch several envelopes
// into one frame separated by newlines, so readers decode frames as a stream.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Inbound event names.
const (
	EventJoin        = "join"
	EventSendMessage = "sendMessage"
	EventLeaveRoom   = "leaveRoom"
	EventHistory     = "history"
)

// Outbound event names.
const (
	EventUserJoined      = string(chat.KindUserJoined)
	EventUserLeft        = string(chat.KindUserLeft)
	EventMessageReceived = string(chat.KindMessageReceived)
	EventHistoryResult   = string(chat.KindHistory)
	EventError           = string(chat.KindError)
)

// Envelope is one event on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest asks to join RoomID as Username.
type JoinRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	RoomID   string `json:"roomId" validate:"required,max=128"`
}

// SendMessageRequest posts Message to the joined room. Username and RoomID are
// optional and, when present, must match the session.
type SendMessageRequest struct {
	Username string `json:"username,omitempty" validate:"max=64"`
	RoomID   string `json:"roomId,omitempty" validate:"max=128"`
	Message  string `json:"message" validate:"required"`
}

// LeaveRoomRequest leaves the joined room.
type LeaveRoomRequest struct {
	Username string `json:"username,omitempty" validate:"max=64"`
	RoomID   string `json:"roomId,omitempty" validate:"max=128"`
}

// HistoryRequest asks for the most recent messages of the joined room.
type HistoryRequest struct {
	Limit int `json:"limit,omitempty" validate:"gte=0,lte=500"`
}

// MembershipChanged is the payload of userJoined and userLeft.
type MembershipChanged struct {
	Username string   `json:"username"`
	RoomID   string   `json:"roomId"`
	Users    []string `json:"users"`
}

// MessageReceived is the payload of messageReceived.
type MessageReceived struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// HistoryEntry is one message of a history reply.
type HistoryEntry struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Seq      uint64 `json:"seq"`
}

// HistoryResult is the payload of a history reply.
type HistoryResult struct {
	RoomID   string         `json:"roomId"`
	Messages []HistoryEntry `json:"messages"`
}

// Error is the payload of a rejected operation.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Encode wraps data in an envelope named event.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// EncodeEvent renders a domain event as its wire envelope.
func EncodeEvent(evt chat.Event) ([]byte, error) {
	switch evt.Kind {
	case chat.KindUserJoined, chat.KindUserLeft:
		users := evt.Users
		if users == nil {
			users = []string{}
		}
		return Encode(string(evt.Kind), MembershipChanged{Username: evt.Username, RoomID: evt.RoomID, Users: users})
	case chat.KindMessageReceived:
		return Encode(EventMessageReceived, MessageReceived{Username: evt.Username, Message: evt.Message})
	case chat.KindHistory:
		entries := lo.Map(evt.History, func(m chat.Message, _ int) HistoryEntry {
			return HistoryEntry{Username: m.Sender, Message: m.Body, Seq: m.Seq}
		})
		return Encode(EventHistoryResult, HistoryResult{RoomID: evt.RoomID, Messages: entries})
	case chat.KindError:
		return Encode(EventError, Error{Code: evt.Code, Message: evt.Reason, Event: evt.Request})
	default:
		return nil, fmt.Errorf("encode event: unknown kind %q", evt.Kind)
	}
}

// DecodeEnvelope parses a single inbound frame.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", chat.ErrInvalidEvent, err)
	}
	if strings.TrimSpace(env.Event) == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", chat.ErrInvalidEvent)
	}
	return env, nil
}

// DecodeStream parses every envelope batched into one frame.
func DecodeStream(raw []byte) ([]Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var out []Envelope
	for {
		var env Envelope
		err := dec.Decode(&env)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("decode frame: %w", err)
		}
		out = append(out, env)
	}
}

// Bind decodes the payload of env into v, trims its identifier fields and
// validates it. Failures wrap chat.ErrInvalidEvent.
func Bind(env Envelope, v any) error {
	data := env.Data
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", chat.ErrInvalidEvent, env.Event, err)
	}
	trim(v)
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", chat.ErrInvalidEvent, env.Event, err)
	}
	return nil
}

// CheckBody enforces the body length limit in runes. A limit of zero or less
// disables the check.
func CheckBody(body string, maxRunes int) error {
	if !utf8.ValidString(body) {
		return fmt.Errorf("%w: message is not valid UTF-8", chat.ErrInvalidEvent)
	}
	if maxRunes > 0 && utf8.RuneCountInString(body) > maxRunes {
		return fmt.Errorf("%w: message longer than %d characters", chat.ErrInvalidEvent, maxRunes)
	}
	return nil
}

func trim(v any) {
	switch req := v.(type) {
	case *JoinRequest:
		req.Username = strings.TrimSpace(req.Username)
		req.RoomID = strings.TrimSpace(req.RoomID)
	case *SendMessageRequest:
		req.Username = strings.TrimSpace(req.Username)
		req.RoomID = strings.TrimSpace(req.RoomID)
	case *LeaveRoomRequest:
		req.Username = strings.TrimSpace(req.Username)
		req.RoomID = strings.TrimSpace(req.RoomID)
	}
}
