package projects_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/creators-notebook/backend/internal/models"
	"github.com/creators-notebook/backend/internal/projects"
)

func Test_CanRead(t *testing.T) {
	membership := &models.Membership{Authority: models.RoleViewer}

	tests := []struct {
		name       string
		public     bool
		membership *models.Membership
		want       bool
	}{
		{name: "public_without_membership", public: true, membership: nil, want: true},
		{name: "public_with_membership", public: true, membership: membership, want: true},
		{name: "private_without_membership", public: false, membership: nil, want: false},
		{name: "private_with_membership", public: false, membership: membership, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &models.Project{OpenToPublic: tc.public}
			assert.Equal(t, tc.want, projects.CanRead(p, tc.membership))
		})
	}
}

func Test_CanRead_AnyRoleReadsPrivate(t *testing.T) {
	p := &models.Project{OpenToPublic: false}
	for _, role := range []models.Role{models.RoleCreator, models.RoleAdmin, models.RoleEditor, models.RoleViewer} {
		assert.True(t, projects.CanRead(p, &models.Membership{Authority: role}), "role %s", role)
	}
}

func Test_CanMutate(t *testing.T) {
	structural := []projects.Action{
		projects.ActionRenameProject,
		projects.ActionDescribeProject,
		projects.ActionDeleteProject,
		projects.ActionManageMembers,
		projects.ActionSetVisibility,
	}

	tests := []struct {
		name string
		role models.Role
		want bool
	}{
		{name: "creator", role: models.RoleCreator, want: true},
		{name: "admin", role: models.RoleAdmin, want: true},
		{name: "editor", role: models.RoleEditor, want: false},
		{name: "viewer", role: models.RoleViewer, want: false},
		{name: "no_membership", role: "", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, action := range structural {
				assert.Equal(t, tc.want, projects.CanMutate(tc.role, action), "action %s", action)
			}
		})
	}
}

func Test_CanMutate_ContentEditsOpenToAnyMember(t *testing.T) {
	for _, role := range []models.Role{models.RoleCreator, models.RoleAdmin, models.RoleEditor, models.RoleViewer} {
		assert.True(t, projects.CanMutate(role, projects.ActionEditContent), "role %s", role)
	}
	assert.False(t, projects.CanMutate("", projects.ActionEditContent))
}

func Test_Role_IsPrivileged(t *testing.T) {
	assert.True(t, models.RoleCreator.IsPrivileged())
	assert.True(t, models.RoleAdmin.IsPrivileged())
	assert.False(t, models.RoleEditor.IsPrivileged())
	assert.False(t, models.RoleViewer.IsPrivileged())
	assert.False(t, models.Role("").IsPrivileged())
}
