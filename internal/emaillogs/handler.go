package emaillogs

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/pkg/queue"
	"github.com/aura-lms/registration/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   *Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, queue: q, logger: logger}
}

// Resend handles POST /admin/emails/:id/resend (platform admin). Re-queues a stored email.
func (h *Handler) Resend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid email log id")
		return
	}
	ctx := c.Request.Context()
	el, body, err := h.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "email log not found")
			return
		}
		response.Internal(c, "failed to load email log")
		return
	}
	if err := h.repo.MarkPending(ctx, el.ID); err != nil {
		response.Internal(c, "failed to reset email log")
		return
	}
	jobID, err := h.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailLogID:     el.ID,
		EmailType:      el.EmailType,
		RegistrationID: el.RegistrationID,
		RecipientEmail: el.RecipientEmail,
		Subject:        el.Subject,
		Body:           body,
	})
	if err != nil {
		h.logger.Error("resend enqueue failed", zap.Error(err), zap.String("email_log_id", el.ID.String()))
		response.ServiceUnavailable(c, "email queue unavailable")
		return
	}
	response.OK(c, gin.H{"message": "resend queued", "job_id": jobID})
}
