package projects

import "errors"

var (
	// ErrProjectNotFound covers both a missing project and a private project
	// the caller may not read. The two cases are deliberately merged so the
	// existence of private projects cannot be probed by id.
	ErrProjectNotFound = errors.New("project not found")

	// ErrMembershipExists signals a duplicate (user, project) membership.
	ErrMembershipExists = errors.New("membership already exists")

	// ErrStorage signals an image save failure; it aborts project creation.
	ErrStorage = errors.New("image storage failed")

	// ErrUserNotFound signals an invite to an unknown email.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotAuthorized signals a member-management call by a non-privileged
	// role. The four project mutations report denial as a plain false
	// instead; this error exists only for operations that return data.
	ErrNotAuthorized = errors.New("not authorized")
)
