// Package rpc provides the WebSocket JSON-RPC transport: connection
// lifecycle, request routing and group broadcast.
package rpc

import (
	"encoding/json"
	"sync"

	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// Hub maintains the set of active clients and their broadcast groups.
// All operations are synchronous: callers invoke them while holding room
// handles, and the per-group message order is exactly the call order.
type Hub struct {
	// clients maps connection ids to clients.
	clients map[string]*Client

	// groups maps group names to the member clients by connection id.
	groups map[string]map[string]*Client

	mutex sync.RWMutex

	logger *utils.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *utils.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]*Client),
		logger:  logger.Named("hub"),
	}
}

// register adds a client to the hub.
func (h *Hub) register(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client.ConnectionID] = client
	h.logger.Debug("Client registered", "connectionId", client.ConnectionID, "userId", client.UserID)
}

// unregister removes a client from the hub and from every group it is in.
func (h *Hub) unregister(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client.ConnectionID]; !ok {
		return
	}
	delete(h.clients, client.ConnectionID)

	for group := range client.groups {
		h.removeFromGroupLocked(client.ConnectionID, group)
	}
	h.logger.Debug("Client unregistered", "connectionId", client.ConnectionID, "userId", client.UserID)
}

// AddToGroup registers a connection in a group. Unknown connections are
// ignored; the caller may race a disconnect.
func (h *Hub) AddToGroup(connectionID, group string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	client, ok := h.clients[connectionID]
	if !ok {
		return
	}
	if _, ok := h.groups[group]; !ok {
		h.groups[group] = make(map[string]*Client)
	}
	h.groups[group][connectionID] = client
	client.groups[group] = true
}

// RemoveFromGroup removes a connection from a group.
func (h *Hub) RemoveFromGroup(connectionID, group string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.removeFromGroupLocked(connectionID, group)
	if client, ok := h.clients[connectionID]; ok {
		delete(client.groups, group)
	}
}

func (h *Hub) removeFromGroupLocked(connectionID, group string) {
	if members, ok := h.groups[group]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// SendToGroup fans a notification out to every member of a group. Delivery
// failures (slow or closed clients) are logged and the client dropped; they
// never surface to the caller.
func (h *Hub) SendToGroup(group, event string, payload any) {
	message, err := json.Marshal(&Notification{
		JSONRPC: "2.0",
		Method:  event,
		Params:  payload,
	})
	if err != nil {
		h.logger.Error("Failed to marshal notification", err, "event", event)
		return
	}

	h.mutex.RLock()
	members := make([]*Client, 0, len(h.groups[group]))
	for _, client := range h.groups[group] {
		members = append(members, client)
	}
	h.mutex.RUnlock()

	for _, client := range members {
		if !client.trySend(message) {
			h.logger.Warn("Dropping unresponsive client", "connectionId", client.ConnectionID, "userId", client.UserID)
			client.close()
		}
	}
}

// GroupSize returns the number of connections in a group.
func (h *Hub) GroupSize(group string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.groups[group])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
