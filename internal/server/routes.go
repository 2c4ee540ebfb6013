// Package server wires HTTP handlers into a chi router for the chat service.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes returns the HTTP handler exposing health, the WebSocket endpoint,
// the room listing, metrics and the test page.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", HealthHandler)
	r.HandleFunc("/ws", s.WebSocketHandler)
	r.Get("/rooms", s.RoomsHandler)
	r.Get("/test", TestPageHandler)
	r.Handle("/metrics", promhttp.HandlerFor(s.prom, promhttp.HandlerOpts{}))
	return r
}
