package server

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
)

func newTestHub() *Hub {
	return NewHub(logs.GetLoggerFromLevel(slog.LevelDebug), NewMetrics(prometheus.NewRegistry()))
}

// attach adds a connectionless client directly to the hub's map.
func attach(h *Hub, id string, buffer int) *Client {
	c := &Client{id: id, send: make(chan []byte, buffer), hub: h, log: h.log, metrics: h.metrics}
	h.mutex.Lock()
	h.clients[id] = c
	h.mutex.Unlock()
	h.metrics.connectionOpened()
	return c
}

func message(body string) chat.Event {
	return chat.Event{Kind: chat.KindMessageReceived, RoomID: "R1", Username: "A", Message: body}
}

func TestHub_Deliver_QueuesForEveryRecipient(t *testing.T) {
	req := require.New(t)
	h := newTestHub()
	a := attach(h, "a", 4)
	b := attach(h, "b", 4)

	err := h.Deliver(context.Background(), []string{"a", "b"}, message("hi"))

	req.NoError(err)
	want := `{"event":"messageReceived","data":{"username":"A","message":"hi"}}`
	req.JSONEq(want, string(<-a.send))
	req.JSONEq(want, string(<-b.send))
}

func TestHub_Deliver_UnknownRecipient(t *testing.T) {
	req := require.New(t)
	h := newTestHub()
	a := attach(h, "a", 4)

	err := h.Deliver(context.Background(), []string{"ghost", "a"}, message("hi"))

	req.ErrorIs(err, chat.ErrDeliveryFailure)
	var de *chat.DeliveryError
	req.True(errors.As(err, &de))
	req.Equal("ghost", de.ClientID)
	req.Equal("not connected", de.Reason)
	// The other recipient is still served.
	req.Len(a.send, 1)
	req.Equal(1, h.Len())
}

func TestHub_Deliver_FullBufferDropsOnlyThatClient(t *testing.T) {
	req := require.New(t)
	h := newTestHub()
	slow := attach(h, "slow", 1)
	fast := attach(h, "fast", 4)

	// Given the slow client's buffer is already full
	req.NoError(h.Deliver(context.Background(), []string{"slow", "fast"}, message("one")))

	// When another event arrives
	err := h.Deliver(context.Background(), []string{"slow", "fast"}, message("two"))

	// Then only the slow client is dropped and its channel closed
	req.ErrorIs(err, chat.ErrDeliveryFailure)
	req.Equal(1, h.Len())
	req.Len(fast.send, 2)
	<-slow.send
	_, open := <-slow.send
	req.False(open)
	req.Equal(1.0, testutil.ToFloat64(h.metrics.deliveryFailures.WithLabelValues(string(chat.KindMessageReceived))))
	req.Equal(1.0, testutil.ToFloat64(h.metrics.connections))
}

func TestHub_Deliver_EncodingError(t *testing.T) {
	h := newTestHub()

	err := h.Deliver(context.Background(), []string{"a"}, chat.Event{Kind: "bogus"})

	require.Error(t, err)
	require.NotErrorIs(t, err, chat.ErrDeliveryFailure)
}

func TestHub_RemoveClients_Idempotent(t *testing.T) {
	h := newTestHub()
	c := attach(h, "a", 1)

	h.removeClients([]*Client{c}, "test")
	h.removeClients([]*Client{c}, "test")

	require.Equal(t, 0, h.Len())
	require.True(t, c.closed)
}

func TestHub_Shutdown(t *testing.T) {
	req := require.New(t)
	h := newTestHub()
	go h.Run()

	req.NoError(h.Shutdown(time.Second))

	// Detaching after the loop stopped does not block.
	c := attach(h, "late", 1)
	h.detach(c)
	req.Equal(0, h.Len())
}

func TestHub_RegisterNilIsIgnored(t *testing.T) {
	h := newTestHub()
	go h.Run()
	defer func() { _ = h.Shutdown(time.Second) }()

	h.GetRegisterChan() <- nil

	require.Equal(t, 0, h.Len())
}

func TestHub_Deliver_ClosedChannelReportsItsReason(t *testing.T) {
	req := require.New(t)
	h := newTestHub()
	broken := attach(h, "broken", 1)
	close(broken.send)
	full := attach(h, "full", 1)
	full.send <- []byte("queued")

	err := h.Deliver(context.Background(), []string{"broken", "full"}, message("hi"))

	reasons := map[string]string{}
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var de *chat.DeliveryError
		req.True(errors.As(e, &de))
		reasons[de.ClientID] = de.Reason
	}
	req.Equal(map[string]string{"broken": "send channel closed", "full": "send buffer full"}, reasons)
	// Only the client with a live channel is dropped by the hub.
	req.Equal(1, h.Len())
	req.Equal(2.0, testutil.ToFloat64(h.metrics.deliveryFailures.WithLabelValues(string(chat.KindMessageReceived))))
}
