package websocket

import (
	"encoding/json"
	"sync"
)

// BalanceUpdate is pushed to every connection of the account's business after a committed change.
type BalanceUpdate struct {
	AccountID    string `json:"account_id"`
	Balance      string `json:"balance"`
	PendingCount int    `json:"pending_count"`
}

type Hub struct {
	mu             sync.RWMutex
	clients        map[string]map[*Client]struct{}
	allowedOrigins map[string]struct{}
}

// NewHub accepts upgrades from the given origins; "*" or an empty list allows any.
func NewHub(allowedOrigins []string) *Hub {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = struct{}{}
	}
	if _, wildcard := origins["*"]; wildcard {
		origins = nil
	}
	return &Hub{
		clients:        make(map[string]map[*Client]struct{}),
		allowedOrigins: origins,
	}
}

func (h *Hub) Register(businessID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[businessID] == nil {
		h.clients[businessID] = make(map[*Client]struct{})
	}
	h.clients[businessID][client] = struct{}{}
}

func (h *Hub) Unregister(businessID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[businessID] == nil {
		return
	}
	delete(h.clients[businessID], client)
	if len(h.clients[businessID]) == 0 {
		delete(h.clients, businessID)
	}
}

// BroadcastBalance never blocks; a client with a full buffer misses the update.
func (h *Hub) BroadcastBalance(businessID string, update BalanceUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[businessID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *Hub) connections(businessID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[businessID])
}

func (h *Hub) originAllowed(origin string) bool {
	if len(h.allowedOrigins) == 0 || origin == "" {
		return true
	}
	_, ok := h.allowedOrigins[origin]
	return ok
}
