package websocket

import (
	"encoding/json"
	"sync"
)

// DrawerUpdate is pushed to the owning staff member whenever a drawer
// balance changes (record, void, drop, top-up).
type DrawerUpdate struct {
	SessionID string `json:"session_id"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(staffID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[staffID] == nil {
		h.clients[staffID] = make(map[*Client]struct{})
	}
	h.clients[staffID][client] = struct{}{}
}

func (h *Hub) Unregister(staffID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[staffID] == nil {
		return
	}
	delete(h.clients[staffID], client)
	if len(h.clients[staffID]) == 0 {
		delete(h.clients, staffID)
	}
}

func (h *Hub) BroadcastDrawer(staffID string, update DrawerUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[staffID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
