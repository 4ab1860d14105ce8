package registrations

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherhub/backend/internal/middleware"
	"github.com/gatherhub/backend/internal/models"
	"github.com/gatherhub/backend/pkg/response"
)

// Notifier announces a confirmed deposit to the attendee, after the
// confirmation has committed. Failures are the notifier's own concern.
type Notifier func(ctx context.Context, reg *models.Registration)

// Handler handles registration HTTP endpoints.
type Handler struct {
	manager *Manager
	notify  Notifier
	logger  *zap.Logger
}

// NewHandler creates a registrations handler. notify may be nil.
func NewHandler(manager *Manager, notify Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{manager: manager, notify: notify, logger: logger}
}

// Register handles POST /events/:id/registrations for the authenticated user.
func (h *Handler) Register(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	reg, err := h.manager.Create(c.Request.Context(), eventID, userID)
	if err != nil {
		h.respondError(c, err, eventID)
		return
	}
	response.Created(c, reg)
}

// Cancel handles DELETE /events/:id/registrations for the authenticated user.
func (h *Handler) Cancel(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.manager.Remove(c.Request.Context(), eventID, userID); err != nil {
		h.respondError(c, err, eventID)
		return
	}
	response.NoContent(c)
}

// ConfirmDeposit handles POST /events/:id/deposits/:userId (organizer or
// admin), invoked after the attendee's deposit payment lands.
func (h *Handler) ConfirmDeposit(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	reg, err := h.manager.ConfirmDeposit(c.Request.Context(), eventID, userID)
	if err != nil {
		h.respondError(c, err, eventID)
		return
	}
	if h.notify != nil {
		h.notify(c.Request.Context(), reg)
	}
	response.OK(c, reg)
}

// MyStatus handles GET /events/:id/registrations/me.
func (h *Handler) MyStatus(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	view, err := h.manager.GetStatus(c.Request.Context(), eventID, userID)
	if err != nil {
		h.respondError(c, err, eventID)
		return
	}
	response.OK(c, view)
}

func (h *Handler) respondError(c *gin.Context, err error, eventID uuid.UUID) {
	switch {
	case errors.Is(err, ErrEventNotFound), errors.Is(err, ErrRegistrationNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrEventNotOpen):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, ErrCapacityExceeded), errors.Is(err, ErrAlreadyRegistered), errors.Is(err, ErrDepositAlreadyConfirmed):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("registration operation failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "registration operation failed")
	}
}
