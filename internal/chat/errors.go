package chat

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotJoined       = errors.New("not joined to a room")
	ErrAlreadyJoined   = errors.New("already joined to a room")
	ErrUsernameTaken   = errors.New("username already taken in room")
	ErrSessionClosed   = errors.New("session closed")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrDeliveryFailure = errors.New("delivery failure")

	errRoomClosed = errors.New("room closed")
)

// Error codes reported to clients in rejected-operation events.
const (
	CodeRoomNotFound  = "ROOM_NOT_FOUND"
	CodeNotJoined     = "NOT_JOINED"
	CodeAlreadyJoined = "ALREADY_JOINED"
	CodeUsernameTaken = "USERNAME_TAKEN"
	CodeSessionClosed = "SESSION_CLOSED"
	CodeInvalidEvent  = "INVALID_EVENT"
	CodeInternal      = "INTERNAL"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, CodeRoomNotFound},
	{ErrNotJoined, CodeNotJoined},
	{ErrAlreadyJoined, CodeAlreadyJoined},
	{ErrUsernameTaken, CodeUsernameTaken},
	{ErrSessionClosed, CodeSessionClosed},
	{ErrInvalidEvent, CodeInvalidEvent},
}

// Code maps an error returned by the Manager to its wire error code.
func Code(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// DeliveryError reports that one recipient could not be handed an event.
type DeliveryError struct {
	ClientID string
	Kind     EventKind
	Reason   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %s: %s", e.Kind, e.ClientID, e.Reason)
}

func (e *DeliveryError) Unwrap() error { return ErrDeliveryFailure }
