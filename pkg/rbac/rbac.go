package rbac

import (
	"fmt"
	"slices"
)

// Role 是封闭的角色集合，只能通过 ParseRole 从外部字符串构造
type Role uint8

const (
	RoleStudent Role = iota + 1
	RoleTeacher
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleTeacher:
		return "teacher"
	case RoleAdmin:
		return "admin"
	}
	return "unknown"
}

// Valid 报告 r 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// ParseRole 解析 token / 数据库中的角色字符串
func ParseRole(s string) (Role, error) {
	switch s {
	case "student":
		return RoleStudent, nil
	case "teacher":
		return RoleTeacher, nil
	case "admin":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", r)
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// 权限常量
const (
	PermissionProgressReadOwn   = "progress:read_own"
	PermissionProgressUpdateOwn = "progress:update_own"
	PermissionProjectSubmit     = "project:submit"

	PermissionProgressReadStudents = "progress:read_students"
	PermissionMilestoneApprove     = "milestone:approve"
	PermissionProjectReview        = "project:review"

	PermissionTemplateManage = "template:manage"
	PermissionTemplateApply  = "template:apply"

	PermissionAllocationManage = "allocation:manage"
	PermissionOutboxReplay     = "outbox:replay"

	PermissionChat          = "chat:use"
	PermissionNotifications = "notification:read"
)

// 角色权限映射
var rolePermissions = map[Role][]string{
	RoleStudent: {
		PermissionProgressReadOwn,
		PermissionProgressUpdateOwn,
		PermissionProjectSubmit,
		PermissionChat,
		PermissionNotifications,
	},
	RoleTeacher: {
		PermissionProgressReadStudents,
		PermissionMilestoneApprove,
		PermissionProjectReview,
		PermissionTemplateManage,
		PermissionTemplateApply,
		PermissionChat,
		PermissionNotifications,
	},
	RoleAdmin: {
		PermissionTemplateManage,
		PermissionTemplateApply,
		PermissionAllocationManage,
		PermissionOutboxReplay,
		PermissionChat,
		PermissionNotifications,
	},
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role Role, permission string) bool {
	return slices.Contains(rolePermissions[role], permission)
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(userID string, role Role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	UserID     string
	Role       Role
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
