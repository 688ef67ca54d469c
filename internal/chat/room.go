package chat

import (
	"projectportal/internal/model"
	"projectportal/pkg/rbac"
)

// Mode is the delivery mode a sender asks for.
type Mode string

const (
	ModeDirect            Mode = "direct"
	ModeBroadcast         Mode = "broadcast"
	ModeBroadcastTeachers Mode = "broadcast_teachers"
)

// TeachersRoomID is the admin-to-teachers broadcast room.
const TeachersRoomID = "broadcast:teachers"

// SendIntent is the payload of an inbound chat:send event.
type SendIntent struct {
	ToUserID string `json:"toUserId" validate:"required_if=Mode direct,max=64"`
	Text     string `json:"text" validate:"notblank,max=4000"`
	Mode     Mode   `json:"mode" validate:"required,oneof=direct broadcast broadcast_teachers"`
}

// DirectRoomID is the canonical room for a pair of users, independent of
// who sends first.
func DirectRoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "direct:" + a + ":" + b
}

func BroadcastRoomID(teacherID string) string {
	return "broadcast:" + teacherID
}

// PersonalRoom receives everything addressed to one user.
func PersonalRoom(userID string) string {
	return "user:" + userID
}

// RoomFor returns where an accepted intent is stored.
func RoomFor(sender model.Principal, in SendIntent) (model.RoomType, string) {
	switch in.Mode {
	case ModeDirect:
		return model.RoomDirect, DirectRoomID(sender.UserID, in.ToUserID)
	case ModeBroadcast:
		return model.RoomBroadcast, BroadcastRoomID(sender.UserID)
	case ModeBroadcastTeachers:
		return model.RoomBroadcast, TeachersRoomID
	}
	return "", ""
}

// FanoutTargets lists the live rooms an accepted message is emitted to.
func FanoutTargets(sender model.Principal, in SendIntent) []string {
	switch in.Mode {
	case ModeDirect:
		return []string{PersonalRoom(in.ToUserID), PersonalRoom(sender.UserID)}
	case ModeBroadcast:
		return []string{BroadcastRoomID(sender.UserID)}
	case ModeBroadcastTeachers:
		return []string{TeachersRoomID, PersonalRoom(sender.UserID)}
	}
	return nil
}

// ConnectRooms is the room set a connection joins for its lifetime.
// allocations are the caller's own allocation rows: the students a teacher
// guides, or the single guide row of a student.
func ConnectRooms(p model.Principal, allocations []model.Allocation) []string {
	rooms := []string{PersonalRoom(p.UserID)}
	switch p.Role {
	case rbac.RoleTeacher:
		for _, a := range allocations {
			if a.TeacherID == p.UserID {
				rooms = append(rooms, DirectRoomID(p.UserID, a.StudentID))
			}
		}
		rooms = append(rooms, BroadcastRoomID(p.UserID), TeachersRoomID)
	case rbac.RoleStudent:
		for _, a := range allocations {
			if a.StudentID == p.UserID && a.TeacherID != "" {
				rooms = append(rooms, BroadcastRoomID(a.TeacherID))
				break
			}
		}
	case rbac.RoleAdmin:
	}
	return rooms
}
