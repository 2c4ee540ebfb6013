// Package server assembles the chat service: the room registry, the session
// manager, the WebSocket hub and the HTTP routes that expose them.
package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Server owns every long-lived component of one chat service instance. It is
// constructed once at start-up and shared by all connection handlers.
type Server struct {
	cfg      Config
	log      *slog.Logger
	registry *chat.Registry
	manager  *chat.Manager
	hub      *Hub
	metrics  *Metrics
	prom     *prometheus.Registry
	origins  *originPolicy
	upgrader websocket.Upgrader
}

// New builds a Server from cfg. The configuration is sanitized first.
func New(cfg Config, log *slog.Logger) (*Server, error) {
	cfg = Sanitize(cfg)
	policy, err := chat.ParseReapPolicy(cfg.ReapPolicy)
	if err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	prom := prometheus.NewRegistry()
	prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(prom)

	hub := NewHub(log.With("component", "hub"), metrics)
	registry := chat.NewRegistry(metrics)
	manager := chat.NewManager(registry, hub, log.With("component", "sessions"),
		chat.WithReapPolicy(policy),
		chat.WithHistoryLimit(cfg.HistoryLimit),
		chat.WithObserver(metrics),
	)

	s := &Server{
		cfg:      cfg,
		log:      log,
		registry: registry,
		manager:  manager,
		hub:      hub,
		metrics:  metrics,
		prom:     prom,
		origins:  newOriginPolicy(cfg.AllowedOrigins, log),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s, nil
}

// Config returns the sanitized configuration in use.
func (s *Server) Config() Config { return s.cfg }

// Registry returns the room registry.
func (s *Server) Registry() *chat.Registry { return s.registry }

// Manager returns the session manager.
func (s *Server) Manager() *chat.Manager { return s.manager }

// Hub returns the connection hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start runs the hub event loop in a separate goroutine. Call it before
// serving HTTP.
func (s *Server) Start() {
	go s.hub.Run()
	s.log.Info("Hub started and ready to manage WebSocket connections")
}

// Shutdown closes every connection and waits for the pumps to stop.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.hub.Shutdown(timeout)
}
