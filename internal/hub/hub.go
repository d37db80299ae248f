// Package hub is the room-based fan-out layer for realtime clients.
// Rooms follow the naming scheme "type:<device_type>", "device:<device_id>"
// and "admins".
package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

type Client struct {
	ID   string
	Send chan []byte
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]struct{}
}

// Envelope is the wire frame for every outbound event.
type Envelope struct {
	Event      string      `json:"event"`
	Data       interface{} `json:"data,omitempty"`
	Timestamp  int64       `json:"timestamp"`
	ServerTime string      `json:"serverTime"`
}

func New() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	for room, members := range h.rooms {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(client.Send)
}

func (h *Hub) Join(clientID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[clientID]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[clientID] = struct{}{}
}

func (h *Hub) Leave(clientID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) InRoom(clientID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	_, in := members[clientID]
	return in
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) EmitToAll(event string, data interface{}) {
	payload := encode(event, data)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		h.send(client, payload)
	}
}

func (h *Hub) EmitToRoom(room, event string, data interface{}) {
	payload := encode(event, data)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id := range h.rooms[room] {
		if client, ok := h.clients[id]; ok {
			h.send(client, payload)
		}
	}
}

// EmitToDevice targets the per-device room so every connection the
// device holds receives the event.
func (h *Hub) EmitToDevice(deviceID, event string, data interface{}) {
	h.EmitToRoom("device:"+deviceID, event, data)
}

func (h *Hub) EmitToClient(clientID, event string, data interface{}) {
	payload := encode(event, data)
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[clientID]; ok {
		h.send(client, payload)
	}
}

// send never blocks; a client that cannot drain its channel loses the
// frame and recovers from the next periodic snapshot.
func (h *Hub) send(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		log.Printf("drop message for client %s", client.ID)
	}
}

func encode(event string, data interface{}) []byte {
	now := time.Now().UTC()
	payload, err := json.Marshal(Envelope{
		Event:      event,
		Data:       data,
		Timestamp:  now.UnixMilli(),
		ServerTime: now.Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("encode event %s: %v", event, err)
		return nil
	}
	return payload
}
