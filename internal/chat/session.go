package chat

import "sync"

// State is the position of a Session in its lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Session is the server-side record of which room, if any, one connection
// belongs to and under which member identifier.
type Session struct {
	mu       sync.Mutex
	clientID string
	state    State
	roomID   string
	memberID string
	room     *Room
	// closed is set once the transport connection is gone; the session then
	// rejects every operation.
	closed bool
}

func newSession(clientID string) *Session {
	return &Session{clientID: clientID}
}

// ClientID returns the connection identifier the session is bound to.
func (s *Session) ClientID() string { return s.clientID }

// Identity reports the current state together with the joined room and
// member identifiers, which are empty unless the state is StateJoined.
func (s *Session) Identity() (State, string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.roomID, s.memberID
}

func (s *Session) enter(room *Room, memberID string) {
	s.state = StateJoined
	s.room = room
	s.roomID = room.ID()
	s.memberID = memberID
}

func (s *Session) exit() {
	s.state = StateDisconnected
	s.room = nil
	s.roomID = ""
	s.memberID = ""
}
