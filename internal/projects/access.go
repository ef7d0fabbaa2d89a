package projects

import "github.com/creators-notebook/backend/internal/models"

// Action is a mutating operation on a project, checked by CanMutate.
type Action string

const (
	ActionRenameProject   Action = "rename_project"
	ActionDescribeProject Action = "describe_project"
	ActionDeleteProject   Action = "delete_project"
	ActionManageMembers   Action = "manage_members"
	ActionSetVisibility   Action = "set_visibility"
	ActionEditContent     Action = "edit_content"
)

// CanRead decides read access to a project. Public projects are readable by
// anyone, membership or not; private projects only by members, any role.
// membership is nil when the caller has no relationship to the project.
func CanRead(project *models.Project, membership *models.Membership) bool {
	if project.OpenToPublic {
		return true
	}
	return membership != nil
}

// CanMutate decides whether a membership role permits a mutating action.
// Structural and destructive actions require a privileged role; CREATOR and
// ADMIN are deliberately not differentiated per action. Every other action
// is open to any member. An empty role means no membership and always denies.
func CanMutate(role models.Role, action Action) bool {
	if role == "" {
		return false
	}
	switch action {
	case ActionRenameProject, ActionDescribeProject, ActionDeleteProject, ActionManageMembers, ActionSetVisibility:
		return role.IsPrivileged()
	default:
		return true
	}
}
