package core

import (
	"sort"
	"sync"
)

// Room groups the connections currently joined to one room id.
type Room struct {
	ID      string
	clients map[string]*Client
}

// NewRoom constructs a room with no clients.
func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		clients: make(map[string]*Client),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c.ID]; exists {
		return false
	}
	r.clients[c.ID] = c
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(id string) bool {
	if _, exists := r.clients[id]; !exists {
		return false
	}
	delete(r.clients, id)
	return true
}

// Broadcast sends an event to every client except the one with id except and
// reports how many accepted it.
func (r *Room) Broadcast(event *Event, except string) int {
	delivered := 0
	for id, client := range r.clients {
		if id == except {
			continue
		}
		if client.send(event) {
			delivered++
		}
		// Drop if slow consumer.
	}
	return delivered
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

// Registry maps room ids to their live connections. It is safe for
// concurrent use; the hub is the only writer.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	byConn map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		byConn: make(map[string]string),
	}
}

// Add registers c under room, creating the room on first use.
func (r *Registry) Add(room string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[room]
	if !ok {
		rm = NewRoom(room)
		r.rooms[room] = rm
	}
	if !rm.AddClient(c) {
		return false
	}
	r.byConn[c.ID] = room
	return true
}

// Remove drops the connection from room and deletes the room once empty.
func (r *Registry) Remove(room, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[room]
	if !ok || !rm.RemoveClient(connID) {
		return false
	}
	delete(r.byConn, connID)
	if rm.Empty() {
		delete(r.rooms, room)
	}
	return true
}

// Lookup returns the room a connection is registered in.
func (r *Registry) Lookup(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.byConn[connID]
	return room, ok
}

// Connections lists the connection ids in room, sorted.
func (r *Registry) Connections(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[room]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(rm.clients))
	for id := range rm.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Broadcast sends event to every connection of room except the one named.
func (r *Registry) Broadcast(room string, event *Event, except string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[room]
	if !ok {
		return 0
	}
	return rm.Broadcast(event, except)
}

// Len reports the number of non-empty rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
