package models

import (
	"time"

	"github.com/google/uuid"
)

// Project represents one creative-writing project (a notebook).
// Visibility is a single flag: private projects are readable by members
// only, public projects by anyone.
type Project struct {
	UUID         uuid.UUID `json:"uuid"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Image        string    `json:"image,omitempty"` // blob storage key, empty when no cover image
	ImageURL     string    `json:"image_url,omitempty"`
	OpenToPublic bool      `json:"open_to_public"`
	CreateDate   time.Time `json:"create_date"`
	EditDate     time.Time `json:"edit_date"`
}

// ProjectWithRole pairs a project with the requesting user's membership role,
// as returned by the accessible-projects listing.
type ProjectWithRole struct {
	Project
	Authority Role  `json:"authority"`
	BridgeNo  int64 `json:"bridge_no"`
}

// ProjectDetail is a project aggregate: the project row, the caller's role
// (empty for non-member readers of a public project), and all characters.
type ProjectDetail struct {
	Project
	Authority  Role        `json:"authority,omitempty"`
	Characters []Character `json:"characters"`
}
