package privacy

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/pkg/response"
)

// SubjectRequest names the data subject by email.
type SubjectRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Handler handles privacy endpoints. Routes are mounted behind the platform admin role.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a privacy handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Export handles POST /admin/privacy/export.
func (h *Handler) Export(c *gin.Context) {
	var req SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Export(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, res)
}

// Erase handles DELETE /admin/privacy/registrations?email=...
func (h *Handler) Erase(c *gin.Context) {
	n, err := h.svc.Erase(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": n})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidEmail):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNoData):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrExportDisabled):
		response.ServiceUnavailable(c, err.Error())
	default:
		h.logger.Error("privacy request failed", zap.Error(err))
		response.Internal(c, "privacy request failed")
	}
}
