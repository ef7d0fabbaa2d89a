package projects

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creators-notebook/backend/internal/middleware"
	"github.com/creators-notebook/backend/internal/models"
	"github.com/creators-notebook/backend/pkg/response"
	"github.com/creators-notebook/backend/pkg/storage"
)

// Handler handles project HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a projects handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RenameRequest is the body for PATCH /projects/:id/title. The authority is
// the role the client received from an earlier load; the service trusts it.
type RenameRequest struct {
	Title     string      `json:"title" binding:"required"`
	Authority models.Role `json:"authority" binding:"required"`
}

// RedescribeRequest is the body for PATCH /projects/:id/description.
type RedescribeRequest struct {
	Description string      `json:"description"`
	Authority   models.Role `json:"authority" binding:"required"`
}

// VisibilityRequest is the body for PATCH /projects/:id/visibility.
type VisibilityRequest struct {
	OpenToPublic *bool       `json:"open_to_public" binding:"required"`
	Authority    models.Role `json:"authority" binding:"required"`
}

// InviteRequest is the body for POST /projects/:id/members.
type InviteRequest struct {
	Email     string      `json:"email" binding:"required,email"`
	Authority models.Role `json:"authority" binding:"required"`
}

// Create handles POST /projects. Multipart form: title, description and an
// optional cover image file.
func (h *Handler) Create(c *gin.Context) {
	userNo := c.MustGet(middleware.ContextUserNo).(int64)

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		response.BadRequest(c, "title required")
		return
	}
	params := CreateProjectParams{
		Title:       title,
		Description: strings.TrimSpace(c.PostForm("description")),
	}

	var image *ImageUpload
	if fileHeader, err := c.FormFile("image"); err == nil && fileHeader != nil {
		if fileHeader.Size > storage.MaxImageSize {
			response.BadRequest(c, "image exceeds 10MB limit")
			return
		}
		contentType := fileHeader.Header.Get("Content-Type")
		if !storage.ValidateImageType(contentType, fileHeader.Filename) {
			response.BadRequest(c, "unsupported image type")
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			response.Internal(c, "failed to read image")
			return
		}
		defer file.Close()
		image = &ImageUpload{
			Filename:    fileHeader.Filename,
			ContentType: contentType,
			Size:        fileHeader.Size,
			Body:        file,
		}
	}

	created, err := h.service.CreateProject(c.Request.Context(), userNo, params, image)
	if err != nil {
		if errors.Is(err, ErrStorage) {
			h.logger.Error("image storage", zap.Error(err))
			response.Internal(c, "failed to store image")
			return
		}
		h.logger.Error("create project", zap.Error(err))
		response.Internal(c, "failed to create project")
		return
	}
	response.Created(c, created)
}

// List handles GET /projects. Returns the caller's projects with roles.
func (h *Handler) List(c *gin.Context) {
	userNo := c.MustGet(middleware.ContextUserNo).(int64)
	list, err := h.service.LoadAccessibleProjects(c.Request.Context(), userNo)
	if err != nil {
		h.logger.Error("list projects", zap.Error(err))
		response.Internal(c, "failed to load projects")
		return
	}
	if list == nil {
		list = []models.ProjectWithRole{}
	}
	response.OK(c, list)
}

// Get handles GET /projects/:id. Works for anonymous callers on public
// projects; a private project the caller may not read is a plain 404.
func (h *Handler) Get(c *gin.Context) {
	projectUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	userNo, _ := middleware.UserNo(c) // 0 when anonymous

	detail, err := h.service.LoadProject(c.Request.Context(), projectUUID, userNo)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			response.NotFound(c, "project not found")
			return
		}
		h.logger.Error("load project", zap.Error(err))
		response.Internal(c, "failed to load project")
		return
	}
	response.OK(c, detail)
}

// Delete handles DELETE /projects/:id. An unauthorized or already-deleted
// project both come back as deleted=false.
func (h *Handler) Delete(c *gin.Context) {
	projectUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	userNo := c.MustGet(middleware.ContextUserNo).(int64)

	deleted, err := h.service.DeleteProject(c.Request.Context(), projectUUID, userNo)
	if err != nil {
		h.logger.Error("delete project", zap.Error(err))
		response.Internal(c, "failed to delete project")
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}

// Rename handles PATCH /projects/:id/title.
func (h *Handler) Rename(c *gin.Context) {
	projectUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "title and authority required")
		return
	}
	ok, err := h.service.RenameProject(c.Request.Context(), projectUUID, req.Authority, req.Title)
	if err != nil {
		h.logger.Error("rename project", zap.Error(err))
		response.Internal(c, "failed to rename project")
		return
	}
	response.OK(c, gin.H{"updated": ok})
}

// Redescribe handles PATCH /projects/:id/description.
func (h *Handler) Redescribe(c *gin.Context) {
	projectUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	var req RedescribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "authority required")
		return
	}
	ok, err := h.service.RedescribeProject(c.Request.Context(), projectUUID, req.Authority, req.Description)
	if err != nil {
		h.logger.Error("redescribe project", zap.Error(err))
		response.Internal(c, "failed to update description")
		return
	}
	response.OK(c, gin.H{"updated": ok})
}

// SetVisibility handles PATCH /projects/:id/visibility.
func (h *Handler) SetVisibility(c *gin.Context) {
	projectUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	var req VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OpenToPublic == nil {
		response.BadRequest(c, "open_to_public and authority required")
		return
	}
	ok, err := h.service.SetVisibility(c.Request.Context(), projectUUID, req.Authority, *req.OpenToPublic)
	if err != nil {
		h.logger.Error("set visibility", zap.Error(err))
		response.Internal(c, "failed to update visibility")
		return
	}
	response.OK(c, gin.H{"updated": ok})
}

// ListMembers handles GET /projects/:id/members.
func (h *Handler) ListMembers(c *gin.Context) {
	projectUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	userNo := c.MustGet(middleware.ContextUserNo).(int64)

	members, err := h.service.ListMembers(c.Request.Context(), projectUUID, userNo)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			response.NotFound(c, "project not found")
			return
		}
		h.logger.Error("list members", zap.Error(err))
		response.Internal(c, "failed to load members")
		return
	}
	if members == nil {
		members = []models.Member{}
	}
	response.OK(c, members)
}

// InviteMember handles POST /projects/:id/members. The inviter's own role is
// resolved from the store, not trusted from the request.
func (h *Handler) InviteMember(c *gin.Context) {
	projectUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	userNo := c.MustGet(middleware.ContextUserNo).(int64)

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email and authority required")
		return
	}

	inviter, err := h.service.MembershipFor(c.Request.Context(), projectUUID, userNo)
	if err != nil {
		h.logger.Error("find membership", zap.Error(err))
		response.Internal(c, "failed to check membership")
		return
	}
	if inviter == nil {
		response.NotFound(c, "project not found")
		return
	}

	membership, err := h.service.InviteMember(c.Request.Context(), projectUUID, inviter.Authority, req.Email, req.Authority)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotAuthorized):
			response.Forbidden(c, "not authorized to manage members")
		case errors.Is(err, ErrUserNotFound):
			response.NotFound(c, "no user with that email")
		case errors.Is(err, ErrMembershipExists):
			response.Conflict(c, "user is already a member")
		default:
			h.logger.Error("invite member", zap.Error(err))
			response.BadRequest(c, "failed to invite member")
		}
		return
	}
	response.Created(c, membership)
}

// RemoveMember handles DELETE /projects/:id/members/:userNo.
func (h *Handler) RemoveMember(c *gin.Context) {
	projectUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	memberNo, err := strconv.ParseInt(c.Param("userNo"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid member number")
		return
	}
	userNo := c.MustGet(middleware.ContextUserNo).(int64)

	requester, err := h.service.MembershipFor(c.Request.Context(), projectUUID, userNo)
	if err != nil {
		h.logger.Error("find membership", zap.Error(err))
		response.Internal(c, "failed to check membership")
		return
	}
	if requester == nil {
		response.NotFound(c, "project not found")
		return
	}

	removed, err := h.service.RemoveMember(c.Request.Context(), projectUUID, requester.Authority, memberNo)
	if err != nil {
		h.logger.Error("remove member", zap.Error(err))
		response.Internal(c, "failed to remove member")
		return
	}
	response.OK(c, gin.H{"removed": removed})
}
