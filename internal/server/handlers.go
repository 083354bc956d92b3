// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// NewUpgrader returns the WebSocket upgrader used by the relay endpoint.
func NewUpgrader(policy *OriginPolicy) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     policy.CheckOrigin,
	}
}

// WebSocketHandler upgrades GET requests to WebSocket and attaches the
// resulting connection to hub. A failed handshake affects only that request.
func WebSocketHandler(hub *Hub, upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Info("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
			return
		}

		hub.Attach(conn, r.RemoteAddr)
	}
}

// HealthHandler provides a simple liveness endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Party relay is running!")
}

type healthStatus struct {
	Status       string `json:"status"`
	Connections  int    `json:"connections"`
	Questions    int    `json:"questions"`
	FallbackPool bool   `json:"fallback_pool"`
}

// HealthzHandler reports the number of live connections and loaded questions as JSON.
func HealthzHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		pool := hub.Game().Pool()
		body, err := json.Marshal(healthStatus{
			Status:       "ok",
			Connections:  hub.Registry().Len(),
			Questions:    pool.Len(),
			FallbackPool: pool.Fallback(),
		})
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

// TestPageHandler serves an HTML page for exercising the relay by hand.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPageHTML)
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Party Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; margin-right: 5px; }
        .game { color: #007cba; } .question { color: #b35c00; } .chat { color: #155724; }
    </style>
</head>
<body>
    <h1>Party Relay Test</h1>
    <div id="status">Disconnected</div>
    <div>
        <input type="text" id="user" placeholder="Your name">
        <button onclick="connect()">Connect</button>
    </div>
    <div>
        <button onclick="send({action: 'roll'})">Roll</button>
        <button onclick="send({action: 'draw'})">Draw</button>
        <input type="text" id="chat" placeholder="Say something...">
        <button onclick="sendChat()">Send</button>
    </div>
    <div id="events"></div>
    <script>
        let ws = null;
        const events = document.getElementById('events');
        function addEvent(ev) {
            const line = document.createElement('div');
            line.className = ev.type || '';
            line.textContent = '[' + ev.type + '] ' + ev.user + ': ' + ev.msg;
            events.appendChild(line);
            events.scrollTop = events.scrollHeight;
        }
        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = () => { document.getElementById('status').textContent = 'Connected'; };
            ws.onclose = () => { document.getElementById('status').textContent = 'Disconnected'; ws = null; };
            ws.onmessage = (e) => addEvent(JSON.parse(e.data));
        }
        function send(action) {
            if (!ws || ws.readyState !== WebSocket.OPEN) return;
            const user = document.getElementById('user').value.trim();
            if (user) action.user = user;
            ws.send(JSON.stringify(action));
        }
        function sendChat() {
            const input = document.getElementById('chat');
            send({action: 'chat', msg: input.value});
            input.value = '';
        }
    </script>
</body>
</html>`
