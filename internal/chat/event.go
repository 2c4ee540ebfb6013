//go:generate go run go.uber.org/mock/mockgen -source=event.go -destination=mocks/mock_event.go -package=mocks

package chat

import "context"

// EventKind names an outbound event. The values double as wire event names.
type EventKind string

const (
	KindUserJoined      EventKind = "userJoined"
	KindUserLeft        EventKind = "userLeft"
	KindMessageReceived EventKind = "messageReceived"
	KindHistory         EventKind = "history"
	KindError           EventKind = "error"
)

// Event is one outbound server event. Which fields are meaningful depends on
// Kind: membership events carry Users, message events carry Message, history
// events carry History and error events carry Code and Reason.
type Event struct {
	Kind     EventKind
	RoomID   string
	Username string
	Users    []string
	Message  string
	Seq      uint64
	History  []Message
	Code     string
	Reason   string
	// Request is the inbound event name that was rejected.
	Request  string
}

// Dispatcher delivers events to connections identified by client id.
//
// Deliver must not block on network I/O: the Manager calls it while holding a
// room's delivery turn. A failure for one recipient must not prevent delivery
// to the others; the returned error joins one *DeliveryError per failed
// recipient.
type Dispatcher interface {
	Deliver(ctx context.Context, recipients []string, evt Event) error
}

// Observer receives lifecycle notifications for metrics. All methods must be
// safe for concurrent use.
type Observer interface {
	RoomOpened(roomID string)
	RoomClosed(roomID string)
	SessionOpened()
	SessionClosed()
	EventCommitted(kind EventKind)
	OperationRejected(code string)
}

type nopObserver struct{}

func (nopObserver) RoomOpened(string) {}
func (nopObserver) RoomClosed(string) {}
func (nopObserver) SessionOpened() {}
func (nopObserver) SessionClosed() {}
func (nopObserver) EventCommitted(EventKind) {}
func (nopObserver) OperationRejected(string) {}
