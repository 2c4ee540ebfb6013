package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/client"
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/testhelpers"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want command
		skip bool
	}{
		{line: "   ", skip: true},
		{line: "hello there", want: command{message: "hello there"}},
		{line: "/leave", want: command{leave: true}},
		{line: "  /quit ", want: command{quit: true}},
		{line: "/history", want: command{history: true}},
		{line: "/history 5", want: command{history: true, limit: 5}},
		{line: "/history lots", want: command{history: true}},
		{line: "/shrug", want: command{message: "/shrug"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, skip := parseLine(tt.line)
			assert.Equal(t, tt.skip, skip)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender(t *testing.T) {
	joined := render(client.Event{
		Name:       protocol.EventUserJoined,
		Membership: &protocol.MembershipChanged{Username: "B", RoomID: "R1", Users: []string{"A", "B"}},
	})
	assert.Contains(t, joined, "B joined R1")
	assert.Contains(t, joined, "A, B")

	msg := render(client.Event{
		Name:    protocol.EventMessageReceived,
		Message: &protocol.MessageReceived{Username: "A", Message: "hi"},
	})
	assert.Contains(t, msg, "A:")
	assert.Contains(t, msg, "hi")

	history := render(client.Event{
		Name: protocol.EventHistoryResult,
		History: &protocol.HistoryResult{RoomID: "R1", Messages: []protocol.HistoryEntry{
			{Username: "A", Message: "first", Seq: 1},
		}},
	})
	assert.Contains(t, history, "history of R1")
	assert.Contains(t, history, "first")

	failure := render(client.Event{
		Name:  protocol.EventError,
		Error: &protocol.Error{Code: chat.CodeNotJoined, Message: "not joined to a room"},
	})
	assert.Contains(t, failure, chat.CodeNotJoined)
}

func TestFetchRooms(t *testing.T) {
	req := require.New(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rooms" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rooms":[{"roomId":"R1","members":2,"messages":7}]}`))
	}))
	defer ts.Close()

	rooms, err := fetchRooms(context.Background(), ts.URL+"/")

	req.NoError(err)
	req.Equal([]chat.RoomInfo{{ID: "R1", Members: 2, Messages: 7}}, rooms)

	var out bytes.Buffer
	printRooms(&out, rooms)
	req.Contains(out.String(), "R1")
	req.Contains(out.String(), "7")
}

func TestFetchRooms_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := fetchRooms(context.Background(), ts.URL)

	require.ErrorContains(t, err, "unexpected status")
}

func TestPrintRooms_Empty(t *testing.T) {
	var out bytes.Buffer
	printRooms(&out, nil)
	assert.Equal(t, "No rooms.\n", out.String())
}

// syncBuffer is a bytes.Buffer safe for one writer and one polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunChat_SendsLinesAndLeavesOnEOF(t *testing.T) {
	req := require.New(t)
	srv, ts := testhelpers.NewTestServer(t, nil)

	c, err := client.Dial(context.Background(), testhelpers.WebSocketURL(ts.URL), client.WithOrigin(testhelpers.TestOrigin))
	req.NoError(err)
	defer func() { _ = c.Close() }()
	req.NoError(c.Join("alice", "lobby"))

	in, feed := io.Pipe()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- runChat(context.Background(), c, in, out) }()

	// Given alice has joined
	req.Eventually(func() bool { return strings.Contains(out.String(), "alice joined lobby") }, 2*time.Second, 10*time.Millisecond)

	// When she types a line
	_, err = io.WriteString(feed, "hello everyone\n")
	req.NoError(err)
	req.Eventually(func() bool { return strings.Contains(out.String(), "hello everyone") }, 2*time.Second, 10*time.Millisecond)

	// Then end of input leaves the room
	req.NoError(feed.Close())
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("runChat did not return at end of input")
	}
	req.Eventually(func() bool {
		rooms := srv.Registry().Snapshot()
		return len(rooms) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
