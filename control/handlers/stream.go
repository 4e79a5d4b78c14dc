package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sv4u/playlistroulette/game/session"
)

const (
	// Ping interval for keepalive.
	wsPingInterval = 30 * time.Second
	// Write deadline after which a slow client is dropped.
	wsWriteTimeout = 10 * time.Second
	// Read deadline extended by every pong.
	wsPongWait = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamGame handles GET /api/games/{id}/stream - upgrades to a WebSocket
// that receives the game's view now and after every state change.
// Browsers pass the bearer token as ?access_token=.
func (h *Handlers) StreamGame(w http.ResponseWriter, r *http.Request) {
	g, ok := h.lookupGame(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ERROR: websocket upgrade failed: %v", err)
		return
	}

	// Subscribe before sending the current state so no change is missed.
	states, unsubscribe := g.ctrl.Subscribe()
	closed := make(chan struct{})
	go readPump(conn, closed)
	writePump(conn, g.id, g.ctrl.State(), states, closed)
	unsubscribe()
}

func gameFrame(id string, st session.State) []byte {
	data, err := json.Marshal(gameResponse{GameID: id, View: session.ViewOf(st)})
	if err != nil {
		log.Printf("WARN: failed to marshal game state: %v", err)
		return nil
	}
	return data
}

// writePump sends current, then every state from states, until the client
// goes away or the subscription ends. It owns closing conn.
func writePump(conn *websocket.Conn, id string, current session.State, states <-chan session.State, closed <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if data := gameFrame(id, current); data != nil {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	for {
		select {
		case st, ok := <-states:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data := gameFrame(id, st)
			if data == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// readPump reads messages from the WebSocket (needed to detect disconnections).
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WARN: websocket unexpected close: %v", err)
			}
			return
		}
	}
}
