package chat

import (
	"context"
	"fmt"

	"projectportal/internal/model"
	"projectportal/pkg/rbac"
)

const DefaultHistoryLimit = 200

// BroadcastSourceAdmin selects the admin-to-teachers room for a teacher.
const BroadcastSourceAdmin = "admin"

type History struct {
	store       MessageStore
	allocations Allocations
	limit       int
}

func NewHistory(store MessageStore, allocations Allocations, limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{store: store, allocations: allocations, limit: limit}
}

// Direct returns the conversation between userID and otherID.
func (h *History) Direct(ctx context.Context, userID, otherID string) ([]model.ChatMessage, error) {
	if otherID == "" || otherID == userID {
		return nil, fmt.Errorf("%w: invalid peer", ErrInvalidPayload)
	}
	return h.store.ListRoom(ctx, model.RoomDirect, DirectRoomID(userID, otherID), h.limit)
}

// Broadcast resolves the broadcast room visible to p. A student reads their
// guide's room; a teacher reads their own room, or the admin room when
// source is "admin"; an admin reads the admin room.
func (h *History) Broadcast(ctx context.Context, p model.Principal, source string) ([]model.ChatMessage, error) {
	var roomID string
	switch p.Role {
	case rbac.RoleStudent:
		a, err := h.allocations.ForStudent(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return []model.ChatMessage{}, nil
		}
		roomID = BroadcastRoomID(a.TeacherID)
	case rbac.RoleTeacher:
		roomID = BroadcastRoomID(p.UserID)
		if source == BroadcastSourceAdmin {
			roomID = TeachersRoomID
		}
	case rbac.RoleAdmin:
		roomID = TeachersRoomID
	default:
		return nil, ErrModeNotAllowed
	}
	return h.store.ListRoom(ctx, model.RoomBroadcast, roomID, h.limit)
}
