// Package chat implements the room-based messaging core: the Registry of
// active rooms, the Room itself with its members and append-only history, and
// the session Manager that moves each connection through the join, message
// and leave state machine.
//
// The package knows nothing about the network. Outbound events are handed to
// a Dispatcher, which the server package implements on top of its WebSocket
// hub.
package chat
