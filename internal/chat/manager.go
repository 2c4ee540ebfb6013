package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Tyrowin/roomchat/internal/chat"

// DefaultHistoryLimit caps history replies when no limit is configured.
const DefaultHistoryLimit = 50

// Option configures a Manager.
type Option func(*Manager)

// WithReapPolicy sets what happens to rooms that become empty.
func WithReapPolicy(policy ReapPolicy) Option {
	return func(m *Manager) {
		m.reap = policy != RetainEmpty
	}
}

// WithHistoryLimit caps the number of messages returned by HandleHistory.
func WithHistoryLimit(limit int) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.historyLimit = limit
		}
	}
}

// WithObserver registers an observer for session and event counts.
func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		if observer != nil {
			m.observer = observer
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// Manager binds connections to sessions and routes their inbound events to
// rooms held by the Registry.
type Manager struct {
	registry     *Registry
	dispatcher   Dispatcher
	log          *slog.Logger
	observer     Observer
	tracer       trace.Tracer
	reap         bool
	historyLimit int

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager wires a Manager to its registry and dispatcher.
func NewManager(registry *Registry, dispatcher Dispatcher, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		registry:     registry,
		dispatcher:   dispatcher,
		log:          log,
		observer:     nopObserver{},
		tracer:       otel.Tracer(tracerName),
		reap:         true,
		historyLimit: DefaultHistoryLimit,
		sessions:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the registry the manager operates on.
func (m *Manager) Registry() *Registry { return m.registry }

// Connect registers a fresh Disconnected session for clientID. Connecting an
// id that already has a session returns the existing one.
func (m *Manager) Connect(clientID string) *Session {
	s, _ := m.session(clientID, true)
	return s
}

// Session returns the live session of clientID.
func (m *Manager) Session(clientID string) (*Session, bool) {
	return m.session(clientID, false)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) session(clientID string, create bool) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[clientID]; ok {
		return s, true
	}
	if !create {
		return nil, false
	}
	s := newSession(clientID)
	m.sessions[clientID] = s
	m.observer.SessionOpened()
	return s, true
}

// HandleJoin admits memberID into roomID on behalf of clientID, creating the
// room if needed, and broadcasts userJoined to every member including the
// joiner. A client is in at most one room: joining another room, or the same
// room under another name, fails with ErrAlreadyJoined. Repeating the current
// join is a no-op and only the joiner is sent the membership snapshot.
func (m *Manager) HandleJoin(ctx context.Context, clientID, memberID, roomID string) (err error) {
	ctx, span := m.startSpan(ctx, "chat.join", clientID,
		attribute.String("chat.room_id", roomID),
		attribute.String("chat.member_id", memberID))
	defer func() { endSpan(span, err) }()

	s, _ := m.session(clientID, true)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.state == StateJoined {
		if s.roomID != roomID || s.memberID != memberID {
			return fmt.Errorf("%w: in room %q as %q", ErrAlreadyJoined, s.roomID, s.memberID)
		}
		m.replay(ctx, clientID, s.room, memberID)
		return nil
	}

	for {
		room := m.registry.GetOrCreate(roomID)
		_, changed, err := room.join(clientID, memberID, m.publish(ctx))
		if errors.Is(err, errRoomClosed) {
			// Lost a race with the reap of the last member; the registry
			// hands out a fresh room on the next pass.
			continue
		}
		if err != nil {
			return fmt.Errorf("join %q as %q: %w", roomID, memberID, err)
		}

		s.enter(room, memberID)
		if !changed {
			m.replay(ctx, clientID, room, memberID)
		}
		m.log.Info("Member joined room", "client", clientID, "room", roomID, "member", memberID)
		return nil
	}
}

// HandleMessage appends body to the client's room under its member identifier
// and broadcasts messageReceived to every current member.
func (m *Manager) HandleMessage(ctx context.Context, clientID, body string) (msg Message, err error) {
	ctx, span := m.startSpan(ctx, "chat.message", clientID)
	defer func() { endSpan(span, err) }()

	s, err := m.joined(clientID)
	if err != nil {
		return Message{}, err
	}
	defer s.mu.Unlock()

	span.SetAttributes(attribute.String("chat.room_id", s.roomID))
	msg = s.room.post(s.memberID, body, m.publish(ctx))
	m.log.Debug("Message appended", "client", clientID, "room", s.roomID, "seq", msg.Seq)
	return msg, nil
}

// HandleLeave removes the client's member from its room and broadcasts
// userLeft to the members that remain.
func (m *Manager) HandleLeave(ctx context.Context, clientID string) (err error) {
	ctx, span := m.startSpan(ctx, "chat.leave", clientID)
	defer func() { endSpan(span, err) }()

	s, err := m.joined(clientID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	m.leaveLocked(ctx, s)
	return nil
}

// HandleHistory returns the most recent messages of the client's room, capped
// by the configured history limit. A limit of zero or less asks for the cap.
func (m *Manager) HandleHistory(ctx context.Context, clientID string, limit int) (history []Message, err error) {
	_, span := m.startSpan(ctx, "chat.history", clientID)
	defer func() { endSpan(span, err) }()

	s, err := m.joined(clientID)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if limit <= 0 || limit > m.historyLimit {
		limit = m.historyLimit
	}
	return s.room.History(limit), nil
}

// HandleDisconnect tears the session of clientID down, leaving its room if it
// was joined. It is safe to call any number of times; only the first call has
// an effect.
func (m *Manager) HandleDisconnect(ctx context.Context, clientID string) {
	m.mu.Lock()
	s, ok := m.sessions[clientID]
	delete(m.sessions, clientID)
	m.mu.Unlock()
	if !ok {
		return
	}

	ctx, span := m.startSpan(ctx, "chat.disconnect", clientID)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.state == StateJoined {
		m.leaveLocked(ctx, s)
	}
	m.observer.SessionClosed()
}

// CheckIdentity verifies that the username and room named by an inbound event
// match the client's session. Empty values are not checked.
func (m *Manager) CheckIdentity(clientID, username, roomID string) error {
	s, ok := m.Session(clientID)
	if !ok {
		return ErrNotJoined
	}
	state, joinedRoom, member := s.Identity()
	if state != StateJoined {
		return ErrNotJoined
	}
	if roomID != "" && roomID != joinedRoom {
		return fmt.Errorf("%w: room %q", ErrNotJoined, roomID)
	}
	if username != "" && username != member {
		return fmt.Errorf("%w: as %q", ErrNotJoined, username)
	}
	return nil
}

// Reject reports a failed operation back to the client that issued it.
func (m *Manager) Reject(ctx context.Context, clientID, request string, cause error) {
	code := Code(cause)
	m.observer.OperationRejected(code)
	m.log.Info("Operation rejected", "client", clientID, "event", request, "code", code, "error", cause)

	evt := Event{Kind: KindError, Code: code, Reason: cause.Error(), Request: request}
	if err := m.dispatcher.Deliver(ctx, []string{clientID}, evt); err != nil {
		m.log.Warn("Could not report rejection", "client", clientID, "error", err)
	}
}

// joined returns the session of clientID locked, or ErrNotJoined.
func (m *Manager) joined(clientID string) (*Session, error) {
	s, ok := m.Session(clientID)
	if !ok {
		return nil, ErrNotJoined
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.state != StateJoined {
		s.mu.Unlock()
		return nil, ErrNotJoined
	}
	return s, nil
}

func (m *Manager) leaveLocked(ctx context.Context, s *Session) {
	room, member := s.room, s.memberID
	room.leave(s.clientID, member, m.reap, m.publish(ctx))
	s.exit()

	if m.reap && room.isClosed() {
		m.registry.remove(room)
		m.log.Info("Room reaped", "room", room.ID())
	}
	m.log.Info("Member left room", "client", s.clientID, "room", room.ID(), "member", member)
}

// replay sends the current membership of room to clientID alone.
func (m *Manager) replay(ctx context.Context, clientID string, room *Room, memberID string) {
	evt := Event{Kind: KindUserJoined, RoomID: room.ID(), Username: memberID, Users: room.Members()}
	if err := m.dispatcher.Deliver(ctx, []string{clientID}, evt); err != nil {
		m.log.Warn("Could not replay membership", "client", clientID, "error", err)
	}
}

func (m *Manager) publish(ctx context.Context) publishFunc {
	return func(evt Event, recipients []string) {
		m.observer.EventCommitted(evt.Kind)
		if len(recipients) == 0 {
			return
		}
		if err := m.dispatcher.Deliver(ctx, recipients, evt); err != nil {
			m.log.Warn("Broadcast incomplete", "room", evt.RoomID, "event", evt.Kind, "error", err)
		}
	}
}

func (m *Manager) startSpan(ctx context.Context, name, clientID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("chat.client_id", clientID))
	return m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
