package ws

import (
	"context"
	"encoding/json"
	"sync"

	"project-hub/internal/logger"
	"project-hub/internal/models"
	"project-hub/internal/observability"
)

// Hub is the room registry. A room exists while it has members and is
// keyed by project id.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}
	clients map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		joined:  make(map[*Client]map[string]struct{}),
		clients: make(map[*Client]struct{}),
	}
}

// Register tracks a live connection that has not joined any room yet.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Join adds c to the project room. Joining twice is a no-op.
func (h *Hub) Join(c *Client, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if _, ok := h.rooms[projectID]; !ok {
		h.rooms[projectID] = make(map[*Client]struct{})
	}
	h.rooms[projectID][c] = struct{}{}
	if _, ok := h.joined[c]; !ok {
		h.joined[c] = make(map[string]struct{})
	}
	h.joined[c][projectID] = struct{}{}
}

// Leave removes c from the project room. Leaving a room c is not in is a
// no-op.
func (h *Hub) Leave(c *Client, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, projectID)
}

// Disconnect removes c from every room it joined and returns those rooms.
func (h *Hub) Disconnect(c *Client) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var left []string
	for projectID := range h.joined[c] {
		left = append(left, projectID)
		h.leaveLocked(c, projectID)
	}
	delete(h.joined, c)
	delete(h.clients, c)
	return left
}

func (h *Hub) leaveLocked(c *Client, projectID string) {
	if members, ok := h.rooms[projectID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, projectID)
		}
	}
	if rooms, ok := h.joined[c]; ok {
		delete(rooms, projectID)
		if len(rooms) == 0 {
			delete(h.joined, c)
		}
	}
}

// MembersOf returns a snapshot of the room. Unknown rooms are empty.
func (h *Hub) MembersOf(projectID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]*Client, 0, len(h.rooms[projectID]))
	for c := range h.rooms[projectID] {
		members = append(members, c)
	}
	return members
}

// Rooms reports the number of non-empty rooms.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Clients reports the number of registered connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll drops every connection and empties the hub. It returns the
// number of connections closed.
func (h *Hub) CloseAll() int {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.Disconnect(c)
		c.close()
	}
	return len(all)
}

// PublishMessage fans a stored message out to its room, sender included.
func (h *Hub) PublishMessage(msg models.ChatMessage) {
	h.broadcast(msg.ProjectID, newMessageFrame(msg))
}

// PublishDeletion tells the room a message was deleted. Clients drop a
// per-user deletion unless userId is their own.
func (h *Hub) PublishDeletion(ev models.MessageDeletion) {
	h.broadcast(ev.ProjectID, messageDeletedFrame(ev))
}

// broadcast queues frame on every member without blocking. Members whose
// buffer is full are disconnected.
func (h *Hub) broadcast(projectID string, frame outFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		logger.Error().Err(err).Str("event", frame.Event).Msg("[Room] encode failed")
		return
	}

	var slow []*Client
	members := h.MembersOf(projectID)
	for _, c := range members {
		if !c.enqueue(payload) && !c.closed() {
			slow = append(slow, c)
		}
	}
	observability.ObserveRoomFanout(frame.Event, len(members)-len(slow))
	for _, c := range slow {
		observability.IncWSEviction()
		logger.Warn().Str("conn_id", c.ConnID()).Str("project_id", projectID).Msg("[Room] send buffer full, dropping connection")
		h.Disconnect(c)
		c.close()
		publishLifecycle(context.Background(), c.info, "ws_error", projectID, "send buffer full")
	}
}

// sendTo queues frame for a single connection.
func (h *Hub) sendTo(c *Client, frame outFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		logger.Error().Err(err).Str("event", frame.Event).Msg("[Room] encode failed")
		return
	}
	c.enqueue(payload)
}
