package registrations

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/internal/middleware"
	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/pkg/response"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Messages shown for confirmation outcomes. Every link failure shares one message.
const (
	msgInvalidLink      = "Invalid confirmation link. The link is incorrect or has expired."
	msgAlreadyConfirmed = "Your registration has already been confirmed."
	msgConfirmFailed    = "There was an error while confirming your registration. Please try again later or contact support for assistance."
	msgHeld             = "Your registration has been confirmed. Please await approval from your manager before accessing the platform."
	msgAutoApproved     = "Your registration is now confirmed, and your user account has been created. An email with a temporary password has been sent to your address."
	msgResent           = "If a pending registration exists for this address, a new confirmation email has been sent."
)

// ReasonRequest is the body for reject and notify.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ResendRequest is the body for POST /registration/resend-confirmation.
type ResendRequest struct {
	Email string `json:"email" binding:"required"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RenderForm handles view=form: policies, field options and countries.
func (h *Handler) RenderForm(c *gin.Context) {
	opts, err := h.svc.FormOptions(c.Request.Context())
	if err != nil {
		h.logger.Error("load form options failed", zap.Error(err))
		response.Internal(c, "failed to load registration form")
		return
	}
	response.OK(c, opts)
}

// RenderReview handles view=review&draft=...
func (h *Handler) RenderReview(c *gin.Context) {
	view, err := h.svc.GetDraft(c.Request.Context(), c.Query("draft"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, view)
}

// RenderConfirm handles view=confirm&id=...&token=...
func (h *Handler) RenderConfirm(c *gin.Context) {
	id, err := uuid.Parse(c.Query("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, string(OutcomeInvalidToken), msgInvalidLink)
		return
	}
	res, err := h.svc.Confirm(c.Request.Context(), id, c.Query("token"))
	if err != nil {
		h.logger.Error("confirm registration failed", zap.Error(err), zap.String("registration_id", id.String()))
		response.Fail(c, http.StatusInternalServerError, string(OutcomeWriteFailed), msgConfirmFailed)
		return
	}
	switch res.Outcome {
	case OutcomeAutoApproved:
		response.OK(c, gin.H{"outcome": res.Outcome, "message": msgAutoApproved, "login_url": h.svc.opts.PublicBaseURL + "/login"})
	case OutcomeHeld:
		response.OK(c, gin.H{"outcome": res.Outcome, "message": msgHeld})
	case OutcomeAlreadyConfirmed:
		response.OK(c, gin.H{"outcome": res.Outcome, "message": msgAlreadyConfirmed})
	case OutcomeWriteFailed:
		response.Fail(c, http.StatusInternalServerError, string(res.Outcome), msgConfirmFailed)
	default:
		response.Fail(c, http.StatusBadRequest, string(OutcomeInvalidToken), msgInvalidLink)
	}
}

// RenderEdit handles view=edit&id=...&token=... and opens an edit draft.
func (h *Handler) RenderEdit(c *gin.Context) {
	id, err := uuid.Parse(c.Query("id"))
	if err != nil {
		h.fail(c, ErrInvalidLink)
		return
	}
	view, err := h.svc.OpenEditDraft(c.Request.Context(), id, c.Query("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, view)
}

// CreateDraft handles POST /registration/drafts.
func (h *Handler) CreateDraft(c *gin.Context) {
	var form models.RegistrationForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	view, err := h.svc.StartDraft(c.Request.Context(), form)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, view)
}

// GetDraft handles GET /registration/drafts/:token.
func (h *Handler) GetDraft(c *gin.Context) {
	view, err := h.svc.GetDraft(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, view)
}

// UpdateDraft handles PUT /registration/drafts/:token.
func (h *Handler) UpdateDraft(c *gin.Context) {
	var form models.RegistrationForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	view, err := h.svc.UpdateDraft(c.Request.Context(), c.Param("token"), form)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, view)
}

// SubmitDraft handles POST /registration/drafts/:token/submit.
func (h *Handler) SubmitDraft(c *gin.Context) {
	reg, err := h.svc.SubmitDraft(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, gin.H{
		"registration_id": reg.ID,
		"status":          reg.Approved.String(),
		"confirmed":       reg.Confirmed,
	})
}

// ResendConfirmation handles POST /registration/resend-confirmation. The
// response never reveals whether the address is registered.
func (h *Handler) ResendConfirmation(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.ResendConfirmation(c.Request.Context(), req.Email); err != nil {
		h.logger.Error("resend confirmation failed", zap.Error(err))
	}
	response.OK(c, gin.H{"message": msgResent})
}

// List handles GET /admin/registrations and view=users.
func (h *Handler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	limit, offset := paging(c)
	page, err := h.svc.ListForReview(c.Request.Context(), actor, limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, page)
}

// Approve handles POST /admin/registrations/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	actor, id, ok := h.reviewTarget(c)
	if !ok {
		return
	}
	reg, err := h.svc.Approve(c.Request.Context(), actor, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, reg)
}

// Reject handles POST /admin/registrations/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	actor, id, ok := h.reviewTarget(c)
	if !ok {
		return
	}
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid_reason", ErrInvalidReason.Error())
		return
	}
	reg, err := h.svc.Reject(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, reg)
}

// Notify handles POST /admin/registrations/:id/notify.
func (h *Handler) Notify(c *gin.Context) {
	actor, id, ok := h.reviewTarget(c)
	if !ok {
		return
	}
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid_reason", ErrInvalidReason.Error())
		return
	}
	reg, err := h.svc.Notify(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, reg)
}

// ListEmails handles GET /admin/registrations/:id/emails.
func (h *Handler) ListEmails(c *gin.Context) {
	actor, id, ok := h.reviewTarget(c)
	if !ok {
		return
	}
	logs, err := h.svc.EmailHistory(c.Request.Context(), actor, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, logs)
}

func (h *Handler) reviewTarget(c *gin.Context) (Actor, uuid.UUID, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

func actorFrom(c *gin.Context) (Actor, bool) {
	userID, global, ok := middleware.CurrentUser(c)
	if !ok {
		return Actor{}, false
	}
	return Actor{UserID: userID, GlobalAdmin: global}, true
}

func paging(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err = strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// fail maps service errors to responses.
func (h *Handler) fail(c *gin.Context, err error) {
	fields := models.FieldErrors(err)
	switch {
	case fields != nil:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   "please correct the highlighted fields",
			"code":    "invalid_form",
			"fields":  fields,
		})
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "registration not found")
	case errors.Is(err, ErrDraftNotFound):
		response.Fail(c, http.StatusNotFound, "draft_not_found", ErrDraftNotFound.Error())
	case errors.Is(err, ErrInvalidLink):
		response.Fail(c, http.StatusBadRequest, "invalid_link", ErrInvalidLink.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, "you are not an administrator of this registration's tenant")
	case errors.Is(err, ErrInvalidState):
		response.Fail(c, http.StatusConflict, "invalid_state", ErrInvalidState.Error())
	case errors.Is(err, ErrInvalidReason):
		response.Fail(c, http.StatusBadRequest, "invalid_reason", ErrInvalidReason.Error())
	case errors.Is(err, ErrAccountExists):
		response.Fail(c, http.StatusConflict, "account_exists", "An account with this email already exists. Log in or reset your password instead.")
	case errors.Is(err, ErrEmailRejected):
		response.Fail(c, http.StatusConflict, "email_rejected", "A registration with this email was declined. Contact support for assistance.")
	case errors.Is(err, ErrEmailTaken):
		response.Fail(c, http.StatusConflict, "email_taken", "A registration with this email already exists. Check your inbox for the confirmation email.")
	case errors.Is(err, ErrWriteFailed):
		h.logger.Error("registration write failed", zap.Error(err))
		response.Fail(c, http.StatusInternalServerError, "write_failed", "The change could not be saved. Please try again.")
	case errors.Is(err, ErrProvisioning):
		h.logger.Error("account provisioning failed", zap.Error(err))
		response.Fail(c, http.StatusInternalServerError, "provisioning_failed", "The user account could not be created. Please try again.")
	default:
		h.logger.Error("registration request failed", zap.Error(err))
		response.Internal(c, "internal error")
	}
}
