package organizations

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/internal/middleware"
	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/pkg/response"
)

// Slug must be lowercase alphanumeric and hyphens only, 2–64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Handler handles organization HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreateOrganizationRequest is the body for POST /organizations.
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// AddMemberRequest is the body for POST /organizations/:id/members.
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Role   string `json:"role" binding:"required,oneof=owner admin member"`
}

// CreateOrganization handles POST /organizations (platform admin). The creator becomes owner.
func (h *Handler) CreateOrganization(c *gin.Context) {
	userID, _, _ := middleware.CurrentUser(c)
	var body CreateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and slug required")
		return
	}
	body.Slug = strings.ToLower(strings.TrimSpace(body.Slug))
	if !slugRegex.MatchString(body.Slug) {
		response.BadRequest(c, "slug must be 2–64 chars, lowercase letters, numbers, hyphens only")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) < 1 || len(body.Name) > 255 {
		response.BadRequest(c, "name must be 1–255 characters")
		return
	}
	org := &models.Organization{Name: body.Name, Slug: body.Slug}
	if err := h.repo.Create(c.Request.Context(), org); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			response.Conflict(c, "An organization with this slug already exists")
			return
		}
		h.logger.Error("create organization failed", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	}
	if err := h.repo.AddUser(c.Request.Context(), org.ID, userID, models.OrgRoleOwner); err != nil {
		response.Internal(c, "failed to add you as owner")
		return
	}
	response.Created(c, org)
}

// ListPublic handles GET /registration/tenants. Lists tenants an applicant can register with.
func (h *Handler) ListPublic(c *gin.Context) {
	orgs, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("list tenants failed", zap.Error(err))
		response.Internal(c, "failed to load tenants")
		return
	}
	out := make([]gin.H, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, gin.H{"id": o.ID, "name": o.Name})
	}
	response.OK(c, out)
}

// ListMyOrganizations handles GET /organizations.
func (h *Handler) ListMyOrganizations(c *gin.Context) {
	userID, _, _ := middleware.CurrentUser(c)
	orgs, err := h.repo.ListOrganizationsForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, orgs)
}

// ListMembers handles GET /organizations/:id/members. Requires tenant admin or platform admin.
func (h *Handler) ListMembers(c *gin.Context) {
	orgID, ok := h.authorize(c)
	if !ok {
		return
	}
	members, err := h.repo.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}

// AddMember handles POST /organizations/:id/members. Grants a role, e.g. to appoint a tenant admin.
func (h *Handler) AddMember(c *gin.Context) {
	orgID, ok := h.authorize(c)
	if !ok {
		return
	}
	var body AddMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "user_id and role (owner, admin, member) required")
		return
	}
	userID := uuid.MustParse(body.UserID)
	if err := h.repo.AddUser(c.Request.Context(), orgID, userID, body.Role); err != nil {
		h.logger.Error("add member failed", zap.Error(err), zap.String("tenant_id", orgID.String()))
		response.Internal(c, "failed to add member")
		return
	}
	response.NoContent(c)
}

func (h *Handler) authorize(c *gin.Context) (uuid.UUID, bool) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return uuid.Nil, false
	}
	userID, global, _ := middleware.CurrentUser(c)
	if global {
		return orgID, true
	}
	ok, err := h.repo.IsTenantAdmin(c.Request.Context(), orgID, userID)
	if err != nil || !ok {
		response.Forbidden(c, "not authorized for this organization")
		return uuid.Nil, false
	}
	return orgID, true
}
