package emaillogs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gatherhub/backend/internal/middleware"
	"github.com/gatherhub/backend/internal/models"
)

type fakeLister struct {
	logs map[uuid.UUID][]*models.EmailLog
	err  error
}

func (f *fakeLister) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.EmailLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.logs[userID], nil
}

func newNotificationsRouter(store Lister, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandler(store, nil)
	router.GET("/me/notifications", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		h.ListMine(c)
	})
	return router
}

func TestListMine(t *testing.T) {
	user, other := uuid.New(), uuid.New()
	store := &fakeLister{logs: map[uuid.UUID][]*models.EmailLog{
		user: {
			{ID: uuid.New(), EmailType: models.EmailTypeUpgradeCompleted, Recipient: "a@example.com", Status: models.EmailLogStatusSent},
		},
		other: {
			{ID: uuid.New(), EmailType: models.EmailTypeDepositConfirmed, Recipient: "b@example.com", Status: models.EmailLogStatusSent},
		},
	}}
	router := newNotificationsRouter(store, user)

	req := httptest.NewRequest(http.MethodGet, "/me/notifications", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "a@example.com") {
		t.Fatalf("response missing own notification: %s", body)
	}
	if strings.Contains(body, "b@example.com") {
		t.Fatalf("response leaked another user's notification: %s", body)
	}
}

func TestListMineEmpty(t *testing.T) {
	router := newNotificationsRouter(&fakeLister{logs: map[uuid.UUID][]*models.EmailLog{}}, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/me/notifications", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"success":true`) {
		t.Fatalf("want success envelope, got %s", body)
	}
	if strings.Contains(body, "email_type") {
		t.Fatalf("want no notifications, got %s", body)
	}
}

func TestListMineStoreError(t *testing.T) {
	router := newNotificationsRouter(&fakeLister{err: errors.New("boom")}, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/me/notifications", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
