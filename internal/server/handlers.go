// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, the room listing, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// RoomList is the body of GET /rooms.
type RoomList struct {
	Rooms []chat.RoomInfo `json:"rooms"`
}

// WebSocketHandler handles WebSocket upgrade requests and manages client connections.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, creates a new Client instance, and hands it to the hub, which
// starts the client's read/write pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, s.manager, r.RemoteAddr, s.cfg)

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		s.log.Warn("Rejecting connection during shutdown", "remote", r.RemoteAddr)
		_ = conn.Close()
	}
}

// RoomsHandler lists the rooms currently held by the registry.
func (s *Server) RoomsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(RoomList{Rooms: s.registry.Snapshot()}); err != nil {
		s.log.Warn("Error writing room list", "error", err)
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Room chat server is running!")
}

// TestPageHandler serves an HTML test page for joining a room, sending
// messages and watching membership changes from a browser.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Room Chat WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Room Chat WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="username" placeholder="Username">
        <input type="text" id="room" placeholder="Room">
        <button onclick="join()">Join</button>
        <button onclick="leave()">Leave</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const statusDiv = document.getElementById('status');

        function addLine(text, color) {
            const line = document.createElement('div');
            line.style.margin = '5px 0';
            line.style.color = color || 'gray';
            line.textContent = text;
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function send(event, data) {
            ws.send(JSON.stringify({event: event, data: data}));
        }

        function handle(envelope) {
            const d = envelope.data || {};
            switch (envelope.event) {
            case 'userJoined':
                addLine(d.username + ' joined ' + d.roomId + ' - active users: ' + d.users.join(', '));
                break;
            case 'userLeft':
                addLine(d.username + ' left ' + d.roomId + ' - active users: ' + d.users.join(', '));
                break;
            case 'messageReceived':
                addLine(d.username + ': ' + d.message, 'green');
                break;
            case 'error':
                addLine('Error ' + d.code + ': ' + d.message, 'red');
                break;
            default:
                addLine(JSON.stringify(envelope));
            }
        }

        function connect(onOpen) {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() {
                statusDiv.textContent = 'Connected';
                statusDiv.className = 'status connected';
                onOpen();
            };
            ws.onmessage = function(event) {
                event.data.split('\n').forEach(function(line) {
                    if (line) { handle(JSON.parse(line)); }
                });
            };
            ws.onclose = function() {
                statusDiv.textContent = 'Disconnected';
                statusDiv.className = 'status disconnected';
                ws = null;
            };
        }

        function join() {
            const data = {
                username: document.getElementById('username').value.trim(),
                roomId: document.getElementById('room').value.trim()
            };
            if (ws && ws.readyState === WebSocket.OPEN) {
                send('join', data);
            } else {
                connect(function() { send('join', data); });
            }
        }

        function leave() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                send('leaveRoom', {});
            }
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            const message = input.value.trim();
            if (message && ws && ws.readyState === WebSocket.OPEN) {
                send('sendMessage', {message: message});
                input.value = '';
            }
        }

        document.getElementById('messageInput').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
