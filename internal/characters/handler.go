package characters

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creators-notebook/backend/internal/middleware"
	"github.com/creators-notebook/backend/internal/models"
	"github.com/creators-notebook/backend/internal/projects"
	"github.com/creators-notebook/backend/pkg/response"
)

// Handler handles character HTTP endpoints. All access is gated through the
// project service: membership decides, and a project the caller may not see
// stays a 404.
type Handler struct {
	repo     *Repository
	projects *projects.Service
	logger   *zap.Logger
}

// NewHandler creates a characters handler.
func NewHandler(repo *Repository, projectService *projects.Service, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, projects: projectService, logger: logger}
}

// CreateRequest is the body for POST /projects/:id/characters.
type CreateRequest struct {
	Name string          `json:"name" binding:"required"`
	Data json.RawMessage `json:"data"`
}

// UpdateRequest is the body for PUT /characters/:id.
type UpdateRequest struct {
	Name string          `json:"name" binding:"required"`
	Data json.RawMessage `json:"data"`
}

// membershipOrFail resolves the caller's membership on a project and writes
// the error response when the caller may not edit. Non-members of private
// projects get the same 404 as a missing project.
func (h *Handler) membershipOrFail(c *gin.Context, projectUUID uuid.UUID, userNo int64) (models.Role, bool) {
	detail, err := h.projects.LoadProject(c.Request.Context(), projectUUID, userNo)
	if err != nil {
		if err == projects.ErrProjectNotFound {
			response.NotFound(c, "project not found")
		} else {
			h.logger.Error("load project", zap.Error(err))
			response.Internal(c, "failed to load project")
		}
		return "", false
	}
	if !projects.CanMutate(detail.Authority, projects.ActionEditContent) {
		// Readable (public) but not a member.
		response.Forbidden(c, "membership required to edit characters")
		return "", false
	}
	return detail.Authority, true
}

// Create handles POST /projects/:id/characters.
func (h *Handler) Create(c *gin.Context) {
	projectUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	userNo := c.MustGet(middleware.ContextUserNo).(int64)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	if _, ok := h.membershipOrFail(c, projectUUID, userNo); !ok {
		return
	}

	ch := &models.Character{ProjectUUID: projectUUID, Name: req.Name, Data: req.Data}
	if err := h.repo.Create(c.Request.Context(), ch); err != nil {
		h.logger.Error("create character", zap.Error(err))
		response.Internal(c, "failed to create character")
		return
	}
	response.Created(c, ch)
}

// Update handles PUT /characters/:id.
func (h *Handler) Update(c *gin.Context) {
	charUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid character id")
		return
	}
	userNo := c.MustGet(middleware.ContextUserNo).(int64)

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name required")
		return
	}

	ch, err := h.repo.GetByUUID(c.Request.Context(), charUUID)
	if err != nil {
		h.logger.Error("get character", zap.Error(err))
		response.Internal(c, "failed to load character")
		return
	}
	if ch == nil {
		response.NotFound(c, "character not found")
		return
	}
	if _, ok := h.membershipOrFail(c, ch.ProjectUUID, userNo); !ok {
		return
	}

	updated, err := h.repo.Update(c.Request.Context(), charUUID, req.Name, req.Data)
	if err != nil {
		h.logger.Error("update character", zap.Error(err))
		response.Internal(c, "failed to update character")
		return
	}
	response.OK(c, gin.H{"updated": updated})
}

// Delete handles DELETE /characters/:id.
func (h *Handler) Delete(c *gin.Context) {
	charUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid character id")
		return
	}
	userNo := c.MustGet(middleware.ContextUserNo).(int64)

	ch, err := h.repo.GetByUUID(c.Request.Context(), charUUID)
	if err != nil {
		h.logger.Error("get character", zap.Error(err))
		response.Internal(c, "failed to load character")
		return
	}
	if ch == nil {
		response.NotFound(c, "character not found")
		return
	}
	if _, ok := h.membershipOrFail(c, ch.ProjectUUID, userNo); !ok {
		return
	}

	deleted, err := h.repo.Delete(c.Request.Context(), charUUID)
	if err != nil {
		h.logger.Error("delete character", zap.Error(err))
		response.Internal(c, "failed to delete character")
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}
