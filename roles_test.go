package userpool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/orangewhip/go-userpool"
)

func TestRoleIsAtLeast(t *testing.T) {
	assert.True(t, userpool.RoleAdmin.IsAtLeast(userpool.RoleGuest))
	assert.True(t, userpool.RoleAdmin.IsAtLeast(userpool.RoleAdmin))
	assert.True(t, userpool.RoleEditor.IsAtLeast(userpool.RoleBand))
	assert.False(t, userpool.RoleBand.IsAtLeast(userpool.RoleEditor))
	assert.False(t, userpool.Role("roadie").IsAtLeast(userpool.RoleGuest))
	assert.False(t, userpool.RoleGuest.IsAtLeast(userpool.Role("roadie")))
}

func TestParseRole(t *testing.T) {
	role, ok := userpool.ParseRole("Admin")
	assert.True(t, ok)
	assert.Equal(t, userpool.RoleAdmin, role)

	role, ok = userpool.ParseRole("  editor  ")
	assert.True(t, ok)
	assert.Equal(t, userpool.RoleEditor, role)

	_, ok = userpool.ParseRole("roadie")
	assert.False(t, ok)
}

func TestRoleFromGroups(t *testing.T) {
	tests := []struct {
		name   string
		groups []string
		want   userpool.Role
	}{
		{"no groups", nil, userpool.RoleGuest},
		{"single role group", []string{"band"}, userpool.RoleBand},
		{"highest wins", []string{"band", "admin", "editor"}, userpool.RoleAdmin},
		{"unknown groups ignored", []string{"newsletter", "beta-testers"}, userpool.RoleGuest},
		{"mixed known and unknown", []string{"newsletter", "manager"}, userpool.RoleManager},
		{"case insensitive", []string{"Editor"}, userpool.RoleEditor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userpool.RoleFromGroups(tt.groups))
		})
	}
}

func TestAllRolesAreOrdered(t *testing.T) {
	roles := userpool.AllRoles()
	for i := 1; i < len(roles); i++ {
		assert.True(t, roles[i].IsAtLeast(roles[i-1]), "%s should outrank %s", roles[i], roles[i-1])
	}
}
