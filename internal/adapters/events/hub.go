package events

import (
	"context"
	"log"
	"sync"

	"chamahub/internal/core/domain"
	"chamahub/internal/observability/metrics"
)

// clientBuffer is how many undelivered events a client may queue
const clientBuffer = 32

// Client is one connected subscriber and the rooms it joined
type Client struct {
	ID     string
	UserID uint
	Rooms  []string
	Send   chan domain.Event
}

// NewClient creates a client with a buffered send channel
func NewClient(id string, userID uint, rooms []string) *Client {
	return &Client{ID: id, UserID: userID, Rooms: rooms, Send: make(chan domain.Event, clientBuffer)}
}

// Hub fans events out to the clients of a room on this instance
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register adds a client to the hub and to each of its rooms
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	for _, room := range client.Rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[string]*Client)
			h.rooms[room] = members
		}
		members[client.ID] = client
	}
	metrics.SetWSClients(len(h.clients))
	log.Printf("📡 Client registered: %s (user=%d, rooms=%d) | total=%d",
		client.ID, client.UserID, len(client.Rooms), len(h.clients))
}

// Unregister removes a client and closes its channel
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	for _, room := range client.Rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, clientID)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.clients, clientID)
	close(client.Send)
	metrics.SetWSClients(len(h.clients))
	log.Printf("📡 Client unregistered: %s | total=%d", clientID, len(h.clients))
}

// Broadcast delivers an event to every local client in its room.
// Slow clients are skipped rather than blocking the publisher.
func (h *Hub) Broadcast(event domain.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.rooms[event.Room] {
		select {
		case client.Send <- event:
			sent++
		default:
			metrics.ObserveDroppedEvent()
			log.Printf("⚠️ Event channel full for client %s, skipping %s", client.ID, event.Type)
		}
	}
	return sent
}

// Publish delivers events locally. It satisfies the services' event publisher.
func (h *Hub) Publish(_ context.Context, events ...domain.Event) {
	for _, ev := range events {
		metrics.ObserveEvent(ev.Type)
		h.Broadcast(ev)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of local clients in room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
