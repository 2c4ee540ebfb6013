package chat

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// ReapPolicy decides what happens to a room once its last member leaves.
type ReapPolicy string

const (
	// ReapWhenEmpty removes a room from the Registry when it becomes empty.
	ReapWhenEmpty ReapPolicy = "reap"
	// RetainEmpty keeps empty rooms, and their history, until shutdown.
	RetainEmpty ReapPolicy = "retain"
)

// ParseReapPolicy validates a policy name.
func ParseReapPolicy(s string) (ReapPolicy, error) {
	switch ReapPolicy(s) {
	case ReapWhenEmpty, RetainEmpty:
		return ReapPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown reap policy %q", s)
	}
}

// RoomInfo summarises one room for listings.
type RoomInfo struct {
	ID       string `json:"roomId"`
	Members  int    `json:"members"`
	Messages int    `json:"messages"`
}

// Registry owns the set of active rooms.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	observer Observer
}

// NewRegistry creates an empty registry. A nil observer is allowed.
func NewRegistry(observer Observer) *Registry {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Registry{
		rooms:    make(map[string]*Room),
		observer: observer,
	}
}

// GetOrCreate returns the room for roomID, creating an empty one if it does
// not exist. A room that has been closed by reaping is replaced.
func (g *Registry) GetOrCreate(roomID string) *Room {
	g.mu.RLock()
	room, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if ok && !room.isClosed() {
		return room
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if stale, ok := g.rooms[roomID]; ok {
		if !stale.isClosed() {
			return stale
		}
		g.observer.RoomClosed(roomID)
	}
	room = NewRoom(roomID)
	g.rooms[roomID] = room
	g.observer.RoomOpened(roomID)
	return room
}

// Get looks a room up without creating it.
func (g *Registry) Get(roomID string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	room, ok := g.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, roomID)
	}
	return room, nil
}

// Len returns the number of rooms currently registered.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Snapshot lists every registered room sorted by id.
func (g *Registry) Snapshot() []RoomInfo {
	g.mu.RLock()
	rooms := lo.Values(g.rooms)
	g.mu.RUnlock()

	infos := lo.Map(rooms, func(room *Room, _ int) RoomInfo {
		return RoomInfo{ID: room.ID(), Members: room.Len(), Messages: room.MessageCount()}
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// remove drops room from the registry if it is still the registered instance
// for its id.
func (g *Registry) remove(room *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if current, ok := g.rooms[room.ID()]; ok && current == room {
		delete(g.rooms, room.ID())
		g.observer.RoomClosed(room.ID())
	}
}
