package chat

import "projectportal/pkg/rbac"

// Authorize reports whether role may send in mode.
func Authorize(role rbac.Role, mode Mode) bool {
	switch role {
	case rbac.RoleStudent:
		return mode == ModeDirect
	case rbac.RoleTeacher:
		return mode == ModeDirect || mode == ModeBroadcast
	case rbac.RoleAdmin:
		return mode == ModeDirect || mode == ModeBroadcastTeachers
	}
	return false
}
