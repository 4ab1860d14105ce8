package emaillogs

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherhub/backend/internal/middleware"
	"github.com/gatherhub/backend/internal/models"
	"github.com/gatherhub/backend/pkg/response"
)

// Lister is the read surface the notifications endpoint needs.
type Lister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.EmailLog, error)
}

// Handler exposes a user's notification history.
type Handler struct {
	store  Lister
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(store Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// ListMine handles GET /me/notifications for the authenticated user.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	list, err := h.store.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list notifications")
		return
	}
	response.OK(c, list)
}
