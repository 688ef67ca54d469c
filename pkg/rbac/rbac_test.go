package rbac

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, r := range []Role{RoleStudent, RoleTeacher, RoleAdmin} {
		parsed, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}

	_, err := ParseRole("superuser")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestRoleJSON(t *testing.T) {
	var body struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"teacher"}`), &body))
	assert.Equal(t, RoleTeacher, body.Role)

	assert.Error(t, json.Unmarshal([]byte(`{"role":"guest"}`), &body))

	_, err := json.Marshal(struct{ R Role }{R: 0})
	assert.Error(t, err)
}

func TestCheckPermission(t *testing.T) {
	tests := []struct {
		role       Role
		permission string
		allowed    bool
	}{
		{RoleStudent, PermissionProgressUpdateOwn, true},
		{RoleStudent, PermissionMilestoneApprove, false},
		{RoleTeacher, PermissionMilestoneApprove, true},
		{RoleTeacher, PermissionAllocationManage, false},
		{RoleAdmin, PermissionAllocationManage, true},
		{RoleAdmin, PermissionProjectSubmit, false},
		{Role(0), PermissionChat, false},
	}

	for _, tt := range tests {
		t.Run(tt.role.String()+"/"+tt.permission, func(t *testing.T) {
			err := CheckPermission("u1", tt.role, tt.permission)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			var denied *PermissionDeniedError
			require.ErrorAs(t, err, &denied)
			assert.Equal(t, tt.permission, denied.Permission)
		})
	}
}
