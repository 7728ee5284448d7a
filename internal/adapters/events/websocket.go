package events

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"chamahub/internal/core/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Authenticator resolves an access token to a user id
type Authenticator interface {
	Authenticate(token string) (uint, error)
}

// RoomAuthorizer lists the chamas whose rooms a user may read
type RoomAuthorizer interface {
	ReadableChamas(ctx context.Context, userID uint) ([]uint, error)
}

// WSHandler upgrades authenticated clients and streams their room events
type WSHandler struct {
	hub           *Hub
	auth          Authenticator
	rooms         RoomAuthorizer
	originAllowed func(origin string) bool
}

// NewWSHandler creates a websocket handler
func NewWSHandler(hub *Hub, auth Authenticator, rooms RoomAuthorizer, originAllowed func(string) bool) *WSHandler {
	return &WSHandler{hub: hub, auth: auth, rooms: rooms, originAllowed: originAllowed}
}

func (h *WSHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if h.originAllowed == nil || h.originAllowed(origin) {
				return true
			}
			log.Printf("⚠️ Websocket origin rejected: %s", origin)
			return false
		},
	}
}

// bearerToken reads the token from ?token= or the Authorization header
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// ServeHTTP authenticates before upgrading, then joins the user's room and
// the room of every chama the user may read
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing access token", http.StatusUnauthorized)
		return
	}
	userID, err := h.auth.Authenticate(token)
	if err != nil {
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return
	}

	chamaIDs, err := h.rooms.ReadableChamas(r.Context(), userID)
	if err != nil {
		log.Printf("❌ Resolve rooms for user %d: %v", userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	rooms := make([]string, 0, len(chamaIDs)+1)
	rooms = append(rooms, domain.UserRoom(userID))
	for _, id := range chamaIDs {
		rooms = append(rooms, domain.ChamaRoom(id))
	}

	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ Websocket upgrade failed: %v", err)
		return
	}

	client := NewClient(uuid.NewString(), userID, rooms)
	h.hub.Register(client)

	go h.writePump(ws, client)
	h.readPump(ws, client)
}

// readPump discards client messages and detects disconnects
func (h *WSHandler) readPump(ws *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Unregister(client.ID)
		ws.Close()
	}()

	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️ Websocket closed unexpectedly for user %d: %v", client.UserID, err)
			}
			return
		}
	}
}

// writePump sends queued events and keeps the connection alive with pings
func (h *WSHandler) writePump(ws *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case ev, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
