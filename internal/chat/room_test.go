package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"projectportal/internal/model"
	"projectportal/pkg/rbac"
)

func TestDirectRoomIDIsSymmetric(t *testing.T) {
	assert.Equal(t, DirectRoomID("a", "b"), DirectRoomID("b", "a"))
	assert.Equal(t, "direct:a:b", DirectRoomID("b", "a"))
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		role rbac.Role
		mode Mode
		want bool
	}{
		{rbac.RoleStudent, ModeDirect, true},
		{rbac.RoleStudent, ModeBroadcast, false},
		{rbac.RoleStudent, ModeBroadcastTeachers, false},
		{rbac.RoleTeacher, ModeDirect, true},
		{rbac.RoleTeacher, ModeBroadcast, true},
		{rbac.RoleTeacher, ModeBroadcastTeachers, false},
		{rbac.RoleAdmin, ModeDirect, true},
		{rbac.RoleAdmin, ModeBroadcast, false},
		{rbac.RoleAdmin, ModeBroadcastTeachers, true},
		{rbac.Role(0), ModeDirect, false},
	}
	for _, tt := range tests {
		t.Run(tt.role.String()+"/"+string(tt.mode), func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.role, tt.mode))
		})
	}
}

func TestRoomForAndFanoutTargets(t *testing.T) {
	teacher := model.Principal{UserID: "t1", Role: rbac.RoleTeacher}
	admin := model.Principal{UserID: "a1", Role: rbac.RoleAdmin}

	tests := []struct {
		name     string
		sender   model.Principal
		in       SendIntent
		roomType model.RoomType
		roomID   string
		targets  []string
	}{
		{
			name:     "direct",
			sender:   teacher,
			in:       SendIntent{ToUserID: "s1", Mode: ModeDirect},
			roomType: model.RoomDirect,
			roomID:   "direct:s1:t1",
			targets:  []string{"user:s1", "user:t1"},
		},
		{
			name:     "teacher broadcast",
			sender:   teacher,
			in:       SendIntent{Mode: ModeBroadcast},
			roomType: model.RoomBroadcast,
			roomID:   "broadcast:t1",
			targets:  []string{"broadcast:t1"},
		},
		{
			name:     "admin to teachers",
			sender:   admin,
			in:       SendIntent{Mode: ModeBroadcastTeachers},
			roomType: model.RoomBroadcast,
			roomID:   TeachersRoomID,
			targets:  []string{TeachersRoomID, "user:a1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roomType, roomID := RoomFor(tt.sender, tt.in)
			assert.Equal(t, tt.roomType, roomType)
			assert.Equal(t, tt.roomID, roomID)
			assert.Equal(t, tt.targets, FanoutTargets(tt.sender, tt.in))
		})
	}
}

func TestConnectRooms(t *testing.T) {
	allocations := []model.Allocation{
		{StudentID: "s1", TeacherID: "t1"},
		{StudentID: "s2", TeacherID: "t1"},
	}

	t.Run("teacher", func(t *testing.T) {
		rooms := ConnectRooms(model.Principal{UserID: "t1", Role: rbac.RoleTeacher}, allocations)
		assert.Equal(t, []string{
			"user:t1",
			"direct:s1:t1",
			"direct:s2:t1",
			"broadcast:t1",
			TeachersRoomID,
		}, rooms)
	})

	t.Run("allocated student", func(t *testing.T) {
		rooms := ConnectRooms(model.Principal{UserID: "s2", Role: rbac.RoleStudent}, allocations[1:])
		assert.Equal(t, []string{"user:s2", "broadcast:t1"}, rooms)
	})

	t.Run("unallocated student", func(t *testing.T) {
		rooms := ConnectRooms(model.Principal{UserID: "s9", Role: rbac.RoleStudent}, nil)
		assert.Equal(t, []string{"user:s9"}, rooms)
	})

	t.Run("admin", func(t *testing.T) {
		rooms := ConnectRooms(model.Principal{UserID: "a1", Role: rbac.RoleAdmin}, allocations)
		assert.Equal(t, []string{"user:a1"}, rooms)
	})
}
