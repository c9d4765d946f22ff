package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleClient, PermissionReadOwnProject, true},
		{RoleClient, PermissionToggleChecklist, true},
		{RoleClient, PermissionSubmitOnboarding, true},
		{RoleClient, PermissionReadAllProjects, false},
		{RoleClient, PermissionUpdatePhase, false},
		{RoleClient, PermissionReplayOutbox, false},
		{RoleAdmin, PermissionReadAllProjects, true},
		{RoleAdmin, PermissionUpdateProject, true},
		{RoleAdmin, PermissionReadSubmissions, true},
		{RoleAdmin, PermissionReplayOutbox, true},
		{"guest", PermissionReadOwnProject, false},
		{"", PermissionReadOwnProject, false},
	}
	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.permission, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.role, tt.permission))
		})
	}
}

func TestCheckPermission(t *testing.T) {
	assert.NoError(t, CheckPermission(RoleAdmin, PermissionUpdatePhase))

	err := CheckPermission(RoleClient, PermissionUpdatePhase)
	var denied *PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
	assert.Equal(t, RoleClient, denied.Role)
	assert.Equal(t, PermissionUpdatePhase, denied.Permission)
	assert.Equal(t, "insufficient permissions", err.Error())
}

func TestIsKnownRole(t *testing.T) {
	assert.True(t, IsKnownRole(RoleClient))
	assert.True(t, IsKnownRole(RoleAdmin))
	assert.False(t, IsKnownRole("owner"))
}
