// Package server implements the HTTP and WebSocket transport of the chat
// service.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, routing, metrics and HTTP handlers. Room and
// session state live in package chat; this package only moves events between
// connections and the session manager.
package server
