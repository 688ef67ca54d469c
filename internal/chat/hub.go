package chat

import (
	"sync"

	"go.uber.org/zap"
)

// Hub tracks which sessions are joined to which rooms on this instance.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Session]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{rooms: make(map[string]map[*Session]struct{}), logger: logger}
}

func (h *Hub) Join(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range s.rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Session]struct{})
			h.rooms[room] = members
		}
		members[s] = struct{}{}
	}
}

func (h *Hub) Leave(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range s.rooms {
		members := h.rooms[room]
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Deliver enqueues payload once per session across all rooms and returns
// the number of sessions that accepted it.
func (h *Hub) Deliver(rooms []string, payload []byte) int {
	h.mu.RLock()
	targets := make(map[*Session]struct{})
	for _, room := range rooms {
		for s := range h.rooms[room] {
			targets[s] = struct{}{}
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for s := range targets {
		if s.enqueue(payload) {
			delivered++
			continue
		}
		h.logger.Debug("dropped chat frame", zap.String("session_id", s.ID), zap.String("user_id", s.Principal.UserID))
	}
	return delivered
}

// Members reports how many sessions are joined to room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
