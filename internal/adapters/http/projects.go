package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avdeck/cueroom/internal/domain"
	"github.com/avdeck/cueroom/internal/store"
)

// membership loads the caller's member row, answering 404 for both
// missing projects and projects the caller is not part of.
func (h *Handlers) membership(c *gin.Context) (domain.Member, bool) {
	member, err := h.store.GetMember(c.Request.Context(), c.Param("id"), currentUserID(c))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Project not found")
		return domain.Member{}, false
	}
	if err != nil {
		internalError(c)
		return domain.Member{}, false
	}
	return member, true
}

// GET /api/v1/projects
func (h *Handlers) ListProjects(c *gin.Context) {
	projects, err := h.store.ListProjectsForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list projects failed")
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ExportID    int    `json:"export_id"`
}

// POST /api/v1/projects
func (h *Handlers) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		fail(c, http.StatusBadRequest, "Project name is required")
		return
	}
	if req.ExportID < 1 {
		req.ExportID = domain.DefaultExportID
	}

	project, err := h.store.CreateProject(c.Request.Context(), domain.Project{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     currentUserID(c),
		ExportID:    req.ExportID,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create project failed")
		internalError(c)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

// GET /api/v1/projects/:id
func (h *Handlers) GetProject(c *gin.Context) {
	member, ok := h.membership(c)
	if !ok {
		return
	}
	project, err := h.store.GetProject(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Project not found")
		return
	}
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project, "role": member.Role})
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ExportID    *int    `json:"export_id"`
}

// PATCH /api/v1/projects/:id
func (h *Handlers) UpdateProject(c *gin.Context) {
	member, ok := h.membership(c)
	if !ok {
		return
	}
	if member.Role == domain.RoleViewer {
		fail(c, http.StatusForbidden, "Forbidden")
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			fail(c, http.StatusBadRequest, "Project name is required")
			return
		}
		req.Name = &trimmed
	}
	if req.ExportID != nil && *req.ExportID < 1 {
		def := domain.DefaultExportID
		req.ExportID = &def
	}

	project, err := h.store.UpdateProject(c.Request.Context(), c.Param("id"), store.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		ExportID:    req.ExportID,
	})
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Project not found")
		return
	}
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// DELETE /api/v1/projects/:id
func (h *Handlers) DeleteProject(c *gin.Context) {
	member, ok := h.membership(c)
	if !ok {
		return
	}
	if member.Role != domain.RoleOwner {
		fail(c, http.StatusForbidden, "Only the owner can delete a project")
		return
	}
	if err := h.store.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/v1/projects/:id/members
func (h *Handlers) ListMembers(c *gin.Context) {
	if _, ok := h.membership(c); !ok {
		return
	}
	members, err := h.store.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

type addMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// POST /api/v1/projects/:id/members — invite an existing account by
// email. The invited role is editor or viewer, never owner.
func (h *Handlers) AddMember(c *gin.Context) {
	member, ok := h.membership(c)
	if !ok {
		return
	}
	if member.Role == domain.RoleViewer {
		fail(c, http.StatusForbidden, "Forbidden")
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		fail(c, http.StatusBadRequest, "Email is required")
		return
	}
	role := domain.NormalizeRole(req.Role)
	if role == domain.RoleOwner {
		role = domain.RoleViewer
	}

	ctx := c.Request.Context()
	user, err := h.store.GetUserByEmail(ctx, strings.ToLower(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		internalError(c)
		return
	}

	now := time.Now().UTC()
	added, err := h.store.AddMember(ctx, domain.Member{
		ProjectID:  c.Param("id"),
		UserID:     user.ID,
		Role:       role,
		AcceptedAt: &now,
	})
	if errors.Is(err, store.ErrConflict) {
		fail(c, http.StatusConflict, "User is already a member")
		return
	}
	if err != nil {
		internalError(c)
		return
	}
	added.Email = user.Email
	added.DisplayName = user.DisplayName
	c.JSON(http.StatusCreated, gin.H{"member": added})
}

type memberRoleRequest struct {
	Role string `json:"role"`
}

// findMember resolves the :memberId path segment inside the project.
func (h *Handlers) findMember(c *gin.Context) (domain.Member, bool) {
	members, err := h.store.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		internalError(c)
		return domain.Member{}, false
	}
	for _, m := range members {
		if m.ID == c.Param("memberId") {
			return m, true
		}
	}
	fail(c, http.StatusNotFound, "Member not found")
	return domain.Member{}, false
}

// PATCH /api/v1/projects/:id/members/:memberId
func (h *Handlers) UpdateMemberRole(c *gin.Context) {
	member, ok := h.membership(c)
	if !ok {
		return
	}
	if member.Role != domain.RoleOwner {
		fail(c, http.StatusForbidden, "Only owner can change roles")
		return
	}

	var req memberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	role := domain.Role(req.Role)
	if role != domain.RoleEditor && role != domain.RoleViewer {
		fail(c, http.StatusBadRequest, "Invalid role")
		return
	}

	target, ok := h.findMember(c)
	if !ok {
		return
	}
	if target.Role == domain.RoleOwner {
		fail(c, http.StatusBadRequest, "Cannot change owner role")
		return
	}

	updated, err := h.store.UpdateMemberRole(c.Request.Context(), c.Param("id"), target.UserID, role)
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": updated})
}

// DELETE /api/v1/projects/:id/members/:memberId
func (h *Handlers) RemoveMember(c *gin.Context) {
	member, ok := h.membership(c)
	if !ok {
		return
	}
	if member.Role != domain.RoleOwner {
		fail(c, http.StatusForbidden, "Only owner can remove members")
		return
	}

	target, ok := h.findMember(c)
	if !ok {
		return
	}
	if target.Role == domain.RoleOwner {
		fail(c, http.StatusBadRequest, "Cannot remove the owner")
		return
	}

	if err := h.store.RemoveMember(c.Request.Context(), c.Param("id"), target.UserID); err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
