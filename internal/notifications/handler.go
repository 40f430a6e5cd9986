package notifications

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/internal/middleware"
	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/pkg/response"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Handler serves the authenticated user's in-app notifications.
type Handler struct {
	repo   *Repository
	pubsub *RedisPubSub
	logger *zap.Logger
}

// NewHandler creates a notifications handler. pubsub may be nil to disable streaming.
func NewHandler(repo *Repository, pubsub *RedisPubSub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, pubsub: pubsub, logger: logger}
}

// List handles GET /notifications?unread=true&limit=50.
func (h *Handler) List(c *gin.Context) {
	userID, _, _ := middleware.CurrentUser(c)
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	list, err := h.repo.ListForUser(c.Request.Context(), userID, c.Query("unread") == "true", limit)
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err))
		response.Internal(c, "failed to load notifications")
		return
	}
	response.OK(c, list)
}

// MarkRead handles POST /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	userID, _, _ := middleware.CurrentUser(c)
	ok, err := h.repo.MarkRead(c.Request.Context(), id, userID)
	if err != nil {
		response.Internal(c, "failed to update notification")
		return
	}
	if !ok {
		response.NotFound(c, "notification not found")
		return
	}
	response.NoContent(c)
}

// Stream handles GET /notifications/stream as server-sent events.
func (h *Handler) Stream(c *gin.Context) {
	if h.pubsub == nil {
		response.ServiceUnavailable(c, "notification stream unavailable")
		return
	}
	userID, _, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	events := make(chan *models.Notification, 16)
	err := h.pubsub.Subscribe(ctx, userID, func(n *models.Notification) {
		select {
		case events <- n:
		default:
			h.logger.Warn("notification stream backlog full", zap.String("user_id", userID.String()))
		}
	})
	if err != nil {
		h.logger.Error("notification subscribe failed", zap.Error(err))
		response.ServiceUnavailable(c, "notification stream unavailable")
		return
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n := <-events:
			c.SSEvent(n.Kind, n)
			return true
		}
	})
}
