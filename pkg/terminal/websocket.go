package terminal

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antibyte/retrobasic/pkg/auth"
	"github.com/antibyte/retrobasic/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 16 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The session token already gates access; the origin check stays
	// permissive so the frontend can be served from another port in dev.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMessage is what the frontend sends over the socket.
type clientMessage struct {
	Type    string `json:"type"` // "line", "keydown", "keyup", "break"
	Content string `json:"content,omitempty"`
	Key     string `json:"key,omitempty"`
}

// Handler upgrades authenticated requests to a websocket and binds them to
// their session.
func Handler(manager *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := auth.SessionFromRequest(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn(logger.AreaTerminal, "websocket upgrade failed: %v", err)
			return
		}
		session := manager.Get(sessionID)
		logger.Info(logger.AreaTerminal, "client connected: %s", sessionID)

		go writePump(conn, session)
		go readPump(conn, session)
	}
}

func readPump(conn *websocket.Conn, session *Session) {
	defer conn.Close()
	conn.SetReadLimit(maxMsgSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Debug(logger.AreaTerminal, "client disconnected: %s", session.ID)
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn(logger.AreaTerminal, "bad client message from %s", session.ID)
			continue
		}
		switch msg.Type {
		case "line":
			session.HandleLine(msg.Content)
		case "keydown":
			session.HandleKey(msg.Key, true)
		case "keyup":
			session.HandleKey(msg.Key, false)
		case "break":
			session.Stop()
		}
	}
}

func writePump(conn *websocket.Conn, session *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-session.Output():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
