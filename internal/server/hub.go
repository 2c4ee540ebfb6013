// Package server coordinates connection registration, per-recipient event
// delivery, and connection cleanup for the chat WebSocket system via the Hub
// type.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Hub owns every live connection and delivers encoded events to them. It is
// the chat.Dispatcher used by the session manager.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	log        *slog.Logger
	metrics    *Metrics
}

var _ chat.Dispatcher = (*Hub)(nil)

// NewHub creates and initializes a new Hub instance with all necessary channels
// and the client map. The returned Hub is ready once Run is started.
func NewHub(log *slog.Logger, metrics *Metrics) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
		metrics:    metrics,
	}
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Deliver encodes evt once and queues it on each recipient's send channel.
// Queueing never blocks: a recipient whose buffer is full is dropped and
// reported, and delivery continues with the others.
func (h *Hub) Deliver(_ context.Context, recipients []string, evt chat.Event) error {
	payload, err := protocol.EncodeEvent(evt)
	if err != nil {
		return err
	}

	var failures []error
	for _, id := range recipients {
		client, reason := h.safeSend(id, payload)
		if reason == "" {
			continue
		}
		h.metrics.deliveryFailed(evt.Kind)
		failures = append(failures, &chat.DeliveryError{ClientID: id, Kind: evt.Kind, Reason: reason})
		if client != nil {
			h.removeClients([]*Client{client}, reason)
		}
	}

	return errors.Join(failures...)
}

// safeSend queues payload for the client registered under id. It returns the
// failure reason, empty on success, and the client when it should be dropped.
// A client whose send channel is already closed is not returned.
func (h *Hub) safeSend(id string, payload []byte) (client *Client, reason string) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Recovered from panic in safeSend", "client", id, "panic", r)
			client, reason = nil, "send channel closed"
		}
	}()

	// Hold the lock during the entire send operation so the channel cannot be
	// closed underneath us
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	client, exists := h.clients[id]
	if !exists || client.closed {
		return nil, "not connected"
	}

	select {
	case client.send <- payload:
		return client, ""
	default:
		return client, "send buffer full"
	}
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. It returns once Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()
			h.metrics.connectionOpened()
			h.log.Info("Client registered", "client", client.id, "remote", client.addr, "total", clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump(h.ctx)
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if current, ok := h.clients[client.id]; ok && current == client {
				delete(h.clients, client.id)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				h.metrics.connectionClosed()
				h.log.Info("Client unregistered", "client", client.id, "remote", client.addr, "total", clientCount)
			} else {
				h.mutex.Unlock()
			}
		}
	}
}

// detach unregisters a client whose read pump has ended. Once the event loop
// has stopped the client is removed directly.
func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		h.removeClients([]*Client{client}, "hub stopped")
	}
}

// removeClients drops clients from the hub. Closing the send channel stops
// the write pump, which closes the connection; the read pump then fails and
// runs the session disconnect.
func (h *Hub) removeClients(clientsToRemove []*Client, reason string) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if current, exists := h.clients[client.id]; exists && current == client {
			delete(h.clients, client.id)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			h.metrics.connectionClosed()
			h.log.Warn("Client removed", "client", client.id, "remote", client.addr, "reason", reason)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients closes all active client connections.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("Error closing client connection", "client", client.id, "error", err)
			}
		}
	}

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
