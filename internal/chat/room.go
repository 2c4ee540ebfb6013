package chat

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Room holds the ordered member list and the append-only message history of
// one chat room.
//
// mu guards all state and is held only for a single mutation. turn orders
// the publication of committed events: it is taken before mu is released, so
// events leave the room in the order they were committed even though no state
// lock is held while they are delivered.
type Room struct {
	id string

	mu       sync.Mutex
	members  []string
	owners   map[string]string
	messages []Message
	events   uint64
	closed   bool

	turn sync.Mutex
}

// publishFunc hands a committed event to its recipients' connections.
type publishFunc func(evt Event, recipients []string)

type outcome struct {
	evt        Event
	recipients []string
	changed    bool
	err        error
}

// NewRoom returns an empty room.
func NewRoom(id string) *Room {
	return &Room{
		id:     id,
		owners: make(map[string]string),
	}
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// AddMember appends memberID to the member list unless it is already present.
// It returns the membership after the call and whether memberID was added.
func (r *Room) AddMember(memberID string) ([]string, bool) {
	out := r.commit(func() outcome { return r.admitLocked("", memberID) }, nil)
	return out.evt.Users, out.changed
}

// RemoveMember removes memberID if present. Removing an absent member is a
// no-op. It returns the membership after the call and whether memberID was
// removed.
func (r *Room) RemoveMember(memberID string) ([]string, bool) {
	out := r.commit(func() outcome { return r.releaseLocked("", memberID, false) }, nil)
	return out.evt.Users, out.changed
}

// AppendMessage records a message from senderID. The sender does not have to
// be a member of the room.
func (r *Room) AppendMessage(senderID, body string) Message {
	out := r.commit(func() outcome { return r.appendLocked(senderID, body) }, nil)
	return out.evt.History[0]
}

// Members returns a snapshot of the member list in join order.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.members)
}

// Len returns the number of members.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// MessageCount returns the number of messages recorded so far.
func (r *Room) MessageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// History returns up to limit of the most recent messages, oldest first.
// A limit of zero or less returns the whole history.
func (r *Room) History(limit int) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := 0
	if limit > 0 && len(r.messages) > limit {
		start = len(r.messages) - limit
	}
	return slices.Clone(r.messages[start:])
}

func (r *Room) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// An empty clientID in the helpers below stands for direct calls that are not
// tied to a connection.

// join admits memberID on behalf of clientID and publishes userJoined to the
// members, joiner included. Rejoining with the member the client already owns
// is a no-op that reports changed=false.
func (r *Room) join(clientID, memberID string, publish publishFunc) (Event, bool, error) {
	out := r.commit(func() outcome { return r.admitLocked(clientID, memberID) }, publish)
	return out.evt, out.changed, out.err
}

// leave removes memberID if clientID owns it and publishes userLeft to the
// remaining members. With reap set, removing the last member closes the room
// so that no later join can be admitted to it.
func (r *Room) leave(clientID, memberID string, reap bool, publish publishFunc) (Event, bool) {
	out := r.commit(func() outcome { return r.releaseLocked(clientID, memberID, reap) }, publish)
	return out.evt, out.changed
}

// post appends a message and publishes messageReceived to every member.
func (r *Room) post(senderID, body string, publish publishFunc) Message {
	out := r.commit(func() outcome { return r.appendLocked(senderID, body) }, publish)
	return out.evt.History[0]
}

// commit runs mutate under mu and, when it changed the room, publishes the
// resulting event while holding the delivery turn.
func (r *Room) commit(mutate func() outcome, publish publishFunc) outcome {
	r.mu.Lock()
	out := mutate()
	if out.err != nil || !out.changed || publish == nil {
		r.mu.Unlock()
		return out
	}
	r.turn.Lock()
	r.mu.Unlock()
	defer r.turn.Unlock()

	publish(out.evt, out.recipients)
	return out
}

func (r *Room) admitLocked(clientID, memberID string) outcome {
	if r.closed {
		return outcome{err: errRoomClosed}
	}
	if owner, ok := r.owners[memberID]; ok {
		if clientID != "" && owner != clientID {
			return outcome{err: ErrUsernameTaken}
		}
		return outcome{evt: r.membershipLocked(KindUserJoined, memberID)}
	}

	r.members = append(r.members, memberID)
	r.owners[memberID] = clientID
	r.events++
	return outcome{
		evt:        r.membershipLocked(KindUserJoined, memberID),
		recipients: r.recipientsLocked(),
		changed:    true,
	}
}

func (r *Room) releaseLocked(clientID, memberID string, reap bool) outcome {
	owner, ok := r.owners[memberID]
	if !ok || (clientID != "" && owner != clientID) {
		return outcome{evt: r.membershipLocked(KindUserLeft, memberID)}
	}

	delete(r.owners, memberID)
	r.members = lo.Without(r.members, memberID)
	r.events++
	if reap && len(r.members) == 0 {
		r.closed = true
	}
	return outcome{
		evt:        r.membershipLocked(KindUserLeft, memberID),
		recipients: r.recipientsLocked(),
		changed:    true,
	}
}

func (r *Room) appendLocked(senderID, body string) outcome {
	msg := Message{
		Seq:       uint64(len(r.messages) + 1),
		RoomID:    r.id,
		Sender:    senderID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	r.messages = append(r.messages, msg)
	r.events++
	return outcome{
		evt: Event{
			Kind:     KindMessageReceived,
			RoomID:   r.id,
			Username: senderID,
			Message:  body,
			Seq:      r.events,
			History:  []Message{msg},
		},
		recipients: r.recipientsLocked(),
		changed:    true,
	}
}

func (r *Room) membershipLocked(kind EventKind, memberID string) Event {
	return Event{
		Kind:     kind,
		RoomID:   r.id,
		Username: memberID,
		Users:    slices.Clone(r.members),
		Seq:      r.events,
	}
}

// recipientsLocked lists the connections owning a member, in member order.
// Members added without an owning connection receive nothing.
func (r *Room) recipientsLocked() []string {
	return lo.FilterMap(r.members, func(member string, _ int) (string, bool) {
		owner := r.owners[member]
		return owner, owner != ""
	})
}
