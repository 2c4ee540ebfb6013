package chat

import "time"

// Message is one chat line recorded by a Room. Seq is its 1-based position in
// the room's history and serves as the ordering key. Messages are values and
// are never modified after they are appended.
type Message struct {
	Seq       uint64
	RoomID    string
	Sender    string
	Body      string
	CreatedAt time.Time
}
