package projects

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creators-notebook/backend/internal/models"
	"github.com/creators-notebook/backend/pkg/queue"
	"github.com/creators-notebook/backend/pkg/storage"
)

// Clock supplies the current time; injected so timestamps are deterministic
// in tests.
type Clock func() time.Time

// AnonymousUser is the user handle of an unauthenticated caller. Real user
// handles start at 1.
const AnonymousUser int64 = 0

// CreateProjectParams are the caller-supplied attributes of a new project.
type CreateProjectParams struct {
	Title       string
	Description string
}

// ImageUpload is an optional cover image accompanying project creation.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service orchestrates the membership store, the visibility gate and the
// role policy to answer whether a user may read or mutate a project, and
// owns the project lifecycle.
type Service struct {
	projects    ProjectStore
	memberships MembershipStore
	characters  CharacterStore
	users       UserDirectory
	blobs       BlobStore
	cleanup     CleanupQueue
	now         Clock
	logger      *zap.Logger
}

// NewService creates the project access service. blobs and cleanup may be
// nil when image storage is disabled; now defaults to time.Now.
func NewService(projects ProjectStore, memberships MembershipStore, characters CharacterStore, users UserDirectory, blobs BlobStore, cleanup CleanupQueue, now Clock, logger *zap.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		projects:    projects,
		memberships: memberships,
		characters:  characters,
		users:       users,
		blobs:       blobs,
		cleanup:     cleanup,
		now:         now,
		logger:      logger,
	}
}

// CreateProject persists a new private project with the owner's CREATOR
// membership, as one atomic unit. An optional cover image is saved first;
// if the image save fails the whole operation fails with ErrStorage and
// nothing is persisted.
func (s *Service) CreateProject(ctx context.Context, ownerNo int64, params CreateProjectParams, image *ImageUpload) (*models.ProjectWithRole, error) {
	var imageKey, imageURL string
	if image != nil {
		if s.blobs == nil {
			return nil, fmt.Errorf("%w: image storage not configured", ErrStorage)
		}
		imageKey = storage.ImageKey(image.Filename)
		url, err := s.blobs.SaveImage(ctx, imageKey, image.ContentType, image.Body, image.Size)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		imageURL = url
	}

	now := s.now()
	p := &models.Project{
		Title:        params.Title,
		Description:  params.Description,
		Image:        imageKey,
		ImageURL:     imageURL,
		OpenToPublic: false,
		CreateDate:   now,
		EditDate:     now,
	}
	bridgeNo, err := s.projects.CreateWithCreator(ctx, p, ownerNo)
	if err != nil {
		// The image is already in blob storage but the project never made
		// it; remove the orphan best-effort.
		if imageKey != "" {
			s.deleteImage(ctx, p.UUID, imageKey)
		}
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("project created",
		zap.String("project_uuid", p.UUID.String()),
		zap.Int64("owner_no", ownerNo))
	return &models.ProjectWithRole{Project: *p, Authority: models.RoleCreator, BridgeNo: bridgeNo}, nil
}

// LoadAccessibleProjects returns every project the user holds a membership
// on, paired with that membership's role. Public projects the user is not a
// member of are not included: readable is not the same as belongs-to.
func (s *Service) LoadAccessibleProjects(ctx context.Context, userNo int64) ([]models.ProjectWithRole, error) {
	list, err := s.memberships.ListForUser(ctx, userNo)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return list, nil
}

// LoadProject returns the project aggregate (row, caller role, characters).
// A missing project and a private project the caller may not read both
// yield ErrProjectNotFound; callers must not be able to tell them apart.
// userNo is AnonymousUser for unauthenticated callers.
func (s *Service) LoadProject(ctx context.Context, projectUUID uuid.UUID, userNo int64) (*models.ProjectDetail, error) {
	p, err := s.projects.GetByUUID(ctx, projectUUID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}

	var membership *models.Membership
	if userNo != AnonymousUser {
		membership, err = s.memberships.Find(ctx, projectUUID, userNo)
		if err != nil {
			return nil, fmt.Errorf("find membership: %w", err)
		}
	}
	if !CanRead(p, membership) {
		return nil, ErrProjectNotFound
	}

	detail := &models.ProjectDetail{Project: *p}
	if membership != nil {
		detail.Authority = membership.Authority
	}
	characters, err := s.characters.ListByProject(ctx, projectUUID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	if characters == nil {
		characters = []models.Character{}
	}
	detail.Characters = characters
	return detail, nil
}

// DeleteProject destroys a project with its memberships and characters as
// one atomic unit. The caller must hold a privileged membership; otherwise
// it returns false with no side effects. The stored cover image is removed
// best-effort and never blocks or aborts the deletion. Under concurrent
// deletes exactly one caller observes true.
func (s *Service) DeleteProject(ctx context.Context, projectUUID uuid.UUID, userNo int64) (bool, error) {
	membership, err := s.memberships.Find(ctx, projectUUID, userNo)
	if err != nil {
		return false, fmt.Errorf("find membership: %w", err)
	}
	if membership == nil || !CanMutate(membership.Authority, ActionDeleteProject) {
		return false, nil
	}

	p, err := s.projects.GetByUUID(ctx, projectUUID)
	if err != nil {
		return false, fmt.Errorf("get project: %w", err)
	}
	if p == nil {
		return false, nil
	}

	deleted, err := s.projects.DeleteCascade(ctx, projectUUID)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	if deleted && p.Image != "" {
		s.deleteImage(ctx, projectUUID, p.Image)
	}
	if deleted {
		s.logger.Info("project deleted",
			zap.String("project_uuid", projectUUID.String()),
			zap.Int64("user_no", userNo))
	}
	return deleted, nil
}

// RenameProject updates the title and refreshes the edit date, returning
// true iff exactly one row was updated. The role is the one the caller
// resolved earlier via LoadProject or LoadAccessibleProjects; it is trusted
// without a second membership query.
func (s *Service) RenameProject(ctx context.Context, projectUUID uuid.UUID, role models.Role, title string) (bool, error) {
	if !CanMutate(role, ActionRenameProject) {
		return false, nil
	}
	ok, err := s.projects.UpdateTitle(ctx, projectUUID, title, s.now())
	if err != nil {
		return false, fmt.Errorf("update title: %w", err)
	}
	return ok, nil
}

// RedescribeProject updates the description; same contract as RenameProject.
func (s *Service) RedescribeProject(ctx context.Context, projectUUID uuid.UUID, role models.Role, description string) (bool, error) {
	if !CanMutate(role, ActionDescribeProject) {
		return false, nil
	}
	ok, err := s.projects.UpdateDescription(ctx, projectUUID, description, s.now())
	if err != nil {
		return false, fmt.Errorf("update description: %w", err)
	}
	return ok, nil
}

// SetVisibility publishes or unpublishes a project. A plain flag flip with
// the same trusted-role contract as RenameProject.
func (s *Service) SetVisibility(ctx context.Context, projectUUID uuid.UUID, role models.Role, openToPublic bool) (bool, error) {
	if !CanMutate(role, ActionSetVisibility) {
		return false, nil
	}
	ok, err := s.projects.UpdateVisibility(ctx, projectUUID, openToPublic, s.now())
	if err != nil {
		return false, fmt.Errorf("update visibility: %w", err)
	}
	return ok, nil
}

// MembershipFor returns the caller's membership on a project, or nil when
// none exists. Exposed for collaborators gating child content.
func (s *Service) MembershipFor(ctx context.Context, projectUUID uuid.UUID, userNo int64) (*models.Membership, error) {
	return s.memberships.Find(ctx, projectUUID, userNo)
}

// InviteMember adds a user to a project by email with the given role. Only
// privileged members may invite; a second CREATOR cannot be minted. Fails
// with ErrMembershipExists when the user is already a member.
func (s *Service) InviteMember(ctx context.Context, projectUUID uuid.UUID, inviterRole models.Role, email string, role models.Role) (*models.Membership, error) {
	if !CanMutate(inviterRole, ActionManageMembers) {
		return nil, ErrNotAuthorized
	}
	if !role.Valid() || role == models.RoleCreator {
		return nil, fmt.Errorf("invalid membership role %q", role)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("resolve invitee: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	membership, err := s.memberships.Create(ctx, projectUUID, user.No, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("member invited",
		zap.String("project_uuid", projectUUID.String()),
		zap.Int64("user_no", user.No),
		zap.String("authority", string(role)))
	return membership, nil
}

// RemoveMember removes a member from a project. Only privileged members may
// remove, and the CREATOR membership can never be removed, so a live project
// always keeps at least one membership.
func (s *Service) RemoveMember(ctx context.Context, projectUUID uuid.UUID, requesterRole models.Role, memberNo int64) (bool, error) {
	if !CanMutate(requesterRole, ActionManageMembers) {
		return false, nil
	}
	membership, err := s.memberships.Find(ctx, projectUUID, memberNo)
	if err != nil {
		return false, fmt.Errorf("find membership: %w", err)
	}
	if membership == nil || membership.Authority == models.RoleCreator {
		return false, nil
	}
	removed, err := s.memberships.Delete(ctx, projectUUID, memberNo)
	if err != nil {
		return false, fmt.Errorf("delete membership: %w", err)
	}
	return removed, nil
}

// ListMembers returns the project's members. Restricted to members; a
// non-member gets ErrProjectNotFound, same as for a missing project.
func (s *Service) ListMembers(ctx context.Context, projectUUID uuid.UUID, userNo int64) ([]models.Member, error) {
	membership, err := s.memberships.Find(ctx, projectUUID, userNo)
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if membership == nil {
		return nil, ErrProjectNotFound
	}
	members, err := s.memberships.ListForProject(ctx, projectUUID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// deleteImage removes a cover image, preferring the deferred queue and
// falling back to a direct delete. Failures are logged and swallowed; image
// cleanup never decides the outcome of the logical operation.
func (s *Service) deleteImage(ctx context.Context, projectUUID uuid.UUID, key string) {
	if s.cleanup != nil {
		err := s.cleanup.EnqueueImageDelete(ctx, queue.ImageDeletePayload{ProjectUUID: projectUUID, ImageKey: key})
		if err == nil {
			return
		}
		s.logger.Warn("enqueue image delete failed, deleting inline",
			zap.String("image_key", key), zap.Error(err))
	}
	if s.blobs == nil {
		return
	}
	if err := s.blobs.DeleteImage(ctx, key); err != nil {
		s.logger.Warn("image delete failed",
			zap.String("image_key", key), zap.Error(err))
	}
}
