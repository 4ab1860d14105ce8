package payments

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherhub/backend/internal/middleware"
	"github.com/gatherhub/backend/internal/models"
	"github.com/gatherhub/backend/internal/sepay"
	"github.com/gatherhub/backend/pkg/response"
)

// WebhookPayload is the body SePay pushes on new bank transactions.
type WebhookPayload struct {
	Data []sepay.Transaction `json:"data"`
}

// WebhookHandler receives transaction pushes from the bank aggregator.
type WebhookHandler struct {
	reconciler *Reconciler
	secret     string
	logger     *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(reconciler *Reconciler, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{reconciler: reconciler, secret: secret, logger: logger}
}

// Handle handles POST /webhooks/sepay. The shared secret arrives as
// "Authorization: Apikey <secret>"; a mismatch is rejected before any body
// processing. Once authenticated the response is always 200, or the provider
// would retry delivery indefinitely: bad entries are logged, not bubbled.
func (h *WebhookHandler) Handle(c *gin.Context) {
	if !h.authorized(c.GetHeader("Authorization")) {
		response.Unauthorized(c, "invalid webhook secret")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Warn("webhook body read failed", zap.Error(err))
		response.OK(c, gin.H{"success": true})
		return
	}
	// An empty body is the provider's connectivity-test ping.
	if len(bytes.TrimSpace(body)) == 0 {
		response.OK(c, gin.H{"success": true})
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("webhook payload malformed", zap.Error(err))
		response.OK(c, gin.H{"success": true})
		return
	}

	h.reconciler.ProcessBatch(c.Request.Context(), payload.Data)
	response.OK(c, gin.H{"success": true})
}

func (h *WebhookHandler) authorized(header string) bool {
	if h.secret == "" {
		return false
	}
	const scheme = "Apikey "
	if !strings.HasPrefix(header, scheme) {
		return false
	}
	got := strings.TrimPrefix(header, scheme)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

// OrderHandler exposes the organizer-upgrade pending-order surface.
type OrderHandler struct {
	store  Store
	amount int64
	logger *zap.Logger
}

// NewOrderHandler creates an upgrade order handler.
func NewOrderHandler(store Store, amount int64, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{store: store, amount: amount, logger: logger}
}

// orderView augments a transaction with the transfer note the payer must use.
type orderView struct {
	*models.Transaction
	TransferNote string `json:"transfer_note"`
}

// CreateOrder handles POST /upgrade/orders. If the user already has an open
// pending order it is returned instead of issuing a second code, so the payer
// always has exactly one note to write.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	existing, err := h.store.PendingByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("lookup pending order failed", zap.Error(err))
		response.Internal(c, "failed to create order")
		return
	}
	if existing != nil {
		response.OK(c, orderView{Transaction: existing, TransferNote: existing.OrderCode})
		return
	}

	code, err := GenerateOrderCode()
	if err != nil {
		h.logger.Error("generate order code failed", zap.Error(err))
		response.Internal(c, "failed to create order")
		return
	}
	order := &models.Transaction{
		OrderCode: code,
		UserID:    userID,
		Amount:    h.amount,
	}
	if err := h.store.CreatePending(c.Request.Context(), order); err != nil {
		h.logger.Error("create pending order failed", zap.Error(err))
		response.Internal(c, "failed to create order")
		return
	}
	response.Created(c, orderView{Transaction: order, TransferNote: order.OrderCode})
}

// LatestOrder handles GET /upgrade/orders/latest for the authenticated user.
func (h *OrderHandler) LatestOrder(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	order, err := h.store.LatestByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("lookup latest order failed", zap.Error(err))
		response.Internal(c, "failed to get order")
		return
	}
	if order == nil {
		response.NotFound(c, "no upgrade order found")
		return
	}
	response.OK(c, orderView{Transaction: order, TransferNote: order.OrderCode})
}
