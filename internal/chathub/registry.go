package chathub

import (
	"sync"

	"github.com/samber/lo"
)

// Registry tracks live connections by room. The lock is only held while the maps
// are touched, never while a frame is being sent.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uint]map[string]Client
}

// NewRegistry Constructor
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[uint]map[string]Client)}
}

// Add registers c under its room.
func (r *Registry) Add(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.rooms[c.GetRoomID()]
	if !ok {
		conns = make(map[string]Client)
		r.rooms[c.GetRoomID()] = conns
	}
	conns[c.GetID()] = c
}

// Remove drops c and reports whether it was registered.
func (r *Registry) Remove(c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.rooms[c.GetRoomID()]
	if !ok {
		return false
	}
	if _, ok := conns[c.GetID()]; !ok {
		return false
	}
	delete(conns, c.GetID())
	if len(conns) == 0 {
		delete(r.rooms, c.GetRoomID())
	}
	return true
}

// Snapshot copies the connections of a room.
func (r *Registry) Snapshot(roomID uint) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.rooms[roomID])
}

// Count returns the number of connections in a room.
func (r *Registry) Count(roomID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// Total returns the number of connections across all rooms.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.SumBy(lo.Values(r.rooms), func(conns map[string]Client) int { return len(conns) })
}

// All copies every registered connection.
func (r *Registry) All() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.FlatMap(lo.Values(r.rooms), func(conns map[string]Client, _ int) []Client { return lo.Values(conns) })
}
