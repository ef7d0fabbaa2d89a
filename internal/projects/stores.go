package projects

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/creators-notebook/backend/internal/models"
	"github.com/creators-notebook/backend/pkg/queue"
)

// ProjectStore is the persistence contract for project rows. Absence is
// reported as (nil, nil), never as an error. The two compound operations
// (create-with-creator, delete-cascade) are each one atomic transaction:
// a concurrent reader sees either the pre-state or the committed post-state,
// never a project without its CREATOR membership.
type ProjectStore interface {
	GetByUUID(ctx context.Context, id uuid.UUID) (*models.Project, error)

	// CreateWithCreator inserts the project row and the owner's CREATOR
	// membership in one transaction, returning the new bridge number.
	CreateWithCreator(ctx context.Context, p *models.Project, ownerNo int64) (int64, error)

	// DeleteCascade removes the project row and all of its memberships and
	// characters in one transaction. Returns true iff the project row was
	// deleted by this call, so concurrent deletes resolve to one winner.
	DeleteCascade(ctx context.Context, id uuid.UUID) (bool, error)

	// The targeted updates return true iff exactly one row matched.
	UpdateTitle(ctx context.Context, id uuid.UUID, title string, editDate time.Time) (bool, error)
	UpdateDescription(ctx context.Context, id uuid.UUID, description string, editDate time.Time) (bool, error)
	UpdateVisibility(ctx context.Context, id uuid.UUID, openToPublic bool, editDate time.Time) (bool, error)
}

// MembershipStore is the persistence contract for the user-project bridge.
// Find reports absence as (nil, nil); absence is a fact, not a failure.
type MembershipStore interface {
	Find(ctx context.Context, projectUUID uuid.UUID, userNo int64) (*models.Membership, error)
	ListForUser(ctx context.Context, userNo int64) ([]models.ProjectWithRole, error)

	// Create fails with ErrMembershipExists when a membership for the
	// (project, user) pair already exists.
	Create(ctx context.Context, projectUUID uuid.UUID, userNo int64, role models.Role) (*models.Membership, error)

	// Delete removes one membership, reporting whether a row was removed.
	Delete(ctx context.Context, projectUUID uuid.UUID, userNo int64) (bool, error)

	// DeleteForProject removes every membership of a project. Idempotent;
	// used only during project destruction.
	DeleteForProject(ctx context.Context, projectUUID uuid.UUID) error

	ListForProject(ctx context.Context, projectUUID uuid.UUID) ([]models.Member, error)
}

// CharacterStore loads the child characters merged into a project aggregate.
type CharacterStore interface {
	ListByProject(ctx context.Context, projectUUID uuid.UUID) ([]models.Character, error)
}

// UserDirectory resolves invitees by email. Satisfied by auth.Repository.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// BlobStore stores cover images. Satisfied by storage.S3.
type BlobStore interface {
	SaveImage(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	DeleteImage(ctx context.Context, key string) error
}

// CleanupQueue hands off deferred image deletion. Satisfied by queue.Queue.
type CleanupQueue interface {
	EnqueueImageDelete(ctx context.Context, payload queue.ImageDeletePayload) error
}
