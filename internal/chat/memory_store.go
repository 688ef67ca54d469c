package chat

import (
	"context"
	"sync"

	"projectportal/internal/model"
)

// MemoryStore keeps messages in process. Used by tests and single-node dev.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string][]model.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string][]model.ChatMessage)}
}

func (s *MemoryStore) Save(_ context.Context, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(msg.RoomType) + "|" + msg.RoomID
	s.rooms[key] = append(s.rooms[key], *msg)
	return nil
}

func (s *MemoryStore) ListRoom(_ context.Context, roomType model.RoomType, roomID string, limit int) ([]model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.rooms[string(roomType)+"|"+roomID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]model.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}
