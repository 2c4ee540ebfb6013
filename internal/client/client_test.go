package client_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/client"
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/testhelpers"
)

func dial(t *testing.T, url string) *client.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, testhelpers.WebSocketURL(url),
		client.WithOrigin(testhelpers.TestOrigin),
		client.WithLogger(logs.GetLoggerFromLevel(slog.LevelDebug)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func next(t *testing.T, c *client.Client, name string) client.Event {
	t.Helper()

	select {
	case evt, ok := <-c.Events():
		require.True(t, ok, "connection ended while waiting for %s", name)
		require.Equal(t, name, evt.Name)
		return evt
	case <-time.After(testhelpers.DefaultWait):
		t.Fatalf("timed out waiting for %s", name)
		return client.Event{}
	}
}

func TestClient_Conversation(t *testing.T) {
	req := require.New(t)
	_, ts := testhelpers.NewTestServer(t, nil)
	alice := dial(t, ts.URL)
	bob := dial(t, ts.URL)

	// Given both clients joined the same room
	req.NoError(alice.Join("alice", "lobby"))
	evt := next(t, alice, protocol.EventUserJoined)
	req.Equal([]string{"alice"}, evt.Membership.Users)
	name, room := alice.Identity()
	req.Equal("alice", name)
	req.Equal("lobby", room)

	req.NoError(bob.Join("bob", "lobby"))
	next(t, bob, protocol.EventUserJoined)
	req.Equal([]string{"alice", "bob"}, next(t, alice, protocol.EventUserJoined).Membership.Users)

	// When alice talks
	req.NoError(alice.Send("hello bob"))

	// Then both see the message
	req.Equal(protocol.MessageReceived{Username: "alice", Message: "hello bob"}, *next(t, bob, protocol.EventMessageReceived).Message)
	next(t, alice, protocol.EventMessageReceived)

	req.NoError(bob.History(10))
	history := next(t, bob, protocol.EventHistoryResult).History
	req.Equal("lobby", history.RoomID)
	req.Len(history.Messages, 1)

	req.NoError(bob.Leave())
	name, room = bob.Identity()
	req.Empty(name)
	req.Empty(room)
	left := next(t, alice, protocol.EventUserLeft).Membership
	req.Equal("bob", left.Username)
	req.Equal([]string{"alice"}, left.Users)
}

func TestClient_ErrorEvent(t *testing.T) {
	_, ts := testhelpers.NewTestServer(t, nil)
	c := dial(t, ts.URL)

	require.NoError(t, c.Send("too early"))

	evt := next(t, c, protocol.EventError)
	require.Equal(t, chat.CodeNotJoined, evt.Error.Code)
	name, _ := c.Identity()
	require.Empty(t, name)
}

func TestClient_Close(t *testing.T) {
	req := require.New(t)
	_, ts := testhelpers.NewTestServer(t, nil)
	c := dial(t, ts.URL)

	req.NoError(c.Close())
	req.NoError(c.Close())

	_, open := <-c.Events()
	req.False(open)
	req.ErrorIs(c.Send("anyone?"), client.ErrClosed)
}

func TestClient_ServerShutdown(t *testing.T) {
	srv, ts := testhelpers.NewTestServer(t, nil)
	c := dial(t, ts.URL)

	require.NoError(t, srv.Shutdown(2*time.Second))

	select {
	case <-c.Done():
	case <-time.After(testhelpers.DefaultWait):
		t.Fatal("client did not notice the shutdown")
	}
}

func TestDial_RejectedOrigin(t *testing.T) {
	_, ts := testhelpers.NewTestServer(t, nil)

	_, err := client.Dial(context.Background(), testhelpers.WebSocketURL(ts.URL),
		client.WithOrigin("http://evil.example"))

	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}
