package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreate_Returns_Same_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(nil)

	first := registry.GetOrCreate("R1")
	second := registry.GetOrCreate("R1")

	req.Same(first, second)
	req.Equal(1, registry.Len())
}

func TestRegistry_GetOrCreate_Concurrently_Creates_One_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(nil)

	const n = 32
	rooms := make([]*Room, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			rooms[i] = registry.GetOrCreate("R1")
		}(i)
	}
	wg.Wait()

	req.Equal(1, registry.Len())
	for _, room := range rooms {
		req.Same(rooms[0], room)
	}
}

func TestRegistry_Get_Unknown_Room(t *testing.T) {
	registry := NewRegistry(nil)

	room, err := registry.Get("missing")

	require.ErrorIs(t, err, ErrRoomNotFound)
	require.Nil(t, room)
}

func TestRegistry_GetOrCreate_Replaces_Closed_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(nil)
	log := &publishLog{}

	room := registry.GetOrCreate("R1")
	_, _, _ = room.join("c1", "A", log.publish)
	room.leave("c1", "A", true, log.publish)

	fresh := registry.GetOrCreate("R1")
	req.NotSame(room, fresh)
	req.False(fresh.isClosed())
}

func TestRegistry_Remove_Ignores_Stale_Instance(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(nil)
	log := &publishLog{}

	stale := registry.GetOrCreate("R1")
	_, _, _ = stale.join("c1", "A", log.publish)
	stale.leave("c1", "A", true, log.publish)
	fresh := registry.GetOrCreate("R1")

	registry.remove(stale)

	current, err := registry.Get("R1")
	req.NoError(err)
	req.Same(fresh, current)
}

func TestRegistry_Snapshot_Is_Sorted(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(nil)
	registry.GetOrCreate("b").AddMember("x")
	registry.GetOrCreate("a").AppendMessage("y", "hello")

	req.Equal([]RoomInfo{
		{ID: "a", Members: 0, Messages: 1},
		{ID: "b", Members: 1, Messages: 0},
	}, registry.Snapshot())
}

func TestParseReapPolicy(t *testing.T) {
	req := require.New(t)

	policy, err := ParseReapPolicy("retain")
	req.NoError(err)
	req.Equal(RetainEmpty, policy)

	_, err = ParseReapPolicy("forever")
	req.Error(err)
}
