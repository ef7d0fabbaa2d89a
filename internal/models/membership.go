package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a membership role on a project.
type Role string

const (
	RoleCreator Role = "CREATOR"
	RoleAdmin   Role = "ADMIN"
	RoleEditor  Role = "EDITOR"
	RoleViewer  Role = "VIEWER"
)

// IsPrivileged reports whether the role may perform destructive or
// structural actions on the project. The policy is deliberately two-tier:
// CREATOR and ADMIN are treated identically, everything else is not
// privileged. Finer-grained roles extend this predicate, not the call sites.
func (r Role) IsPrivileged() bool {
	return r == RoleCreator || r == RoleAdmin
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCreator, RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Membership is the bridge between one user and one project. At most one
// membership exists per (user, project) pair; every project has exactly one
// CREATOR membership, created in the same transaction as the project row.
type Membership struct {
	No          int64     `json:"no"`
	ProjectUUID uuid.UUID `json:"project_uuid"`
	UserNo      int64     `json:"user_no"`
	Authority   Role      `json:"authority"`
	CreatedAt   time.Time `json:"created_at"`
}

// Member is a membership joined with user details, for member listings.
type Member struct {
	No        int64     `json:"no"`
	UserNo    int64     `json:"user_no"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	Authority Role      `json:"authority"`
	AddedAt   time.Time `json:"added_at"`
}
