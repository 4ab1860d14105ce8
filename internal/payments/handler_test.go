package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gatherhub/backend/internal/models"
	"github.com/gatherhub/backend/pkg/database"
)

func newWebhookRouter(t *testing.T, rec *Reconciler, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewWebhookHandler(rec, secret, nil)
	router.POST("/webhooks/sepay", h.Handle)
	return router
}

func noopEffect(ctx context.Context, uow database.DBTX, userID uuid.UUID) error { return nil }

func postWebhook(router *gin.Engine, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sepay", strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	rec := NewReconciler(newFakeOrderStore(), noopEffect, nil, nil)
	router := newWebhookRouter(t, rec, "s3cret")

	tests := []struct {
		name string
		auth string
	}{
		{"missing header", ""},
		{"wrong secret", "Apikey nope"},
		{"wrong scheme", "Bearer s3cret"},
		{"bare secret without scheme", "s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postWebhook(router, tt.auth, `{"data":[]}`)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestWebhookRejectsAllWhenSecretUnset(t *testing.T) {
	rec := NewReconciler(newFakeOrderStore(), noopEffect, nil, nil)
	router := newWebhookRouter(t, rec, "")

	w := postWebhook(router, "Apikey ", `{"data":[]}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 with no secret configured", w.Code)
	}
}

func TestWebhookEmptyBodyIsPing(t *testing.T) {
	rec := NewReconciler(newFakeOrderStore(), noopEffect, nil, nil)
	router := newWebhookRouter(t, rec, "s3cret")

	for _, body := range []string{"", "   \n"} {
		w := postWebhook(router, "Apikey s3cret", body)
		if w.Code != http.StatusOK {
			t.Fatalf("ping body %q: status = %d, want 200", body, w.Code)
		}
	}
}

func TestWebhookMalformedPayloadStillOK(t *testing.T) {
	store := newFakeOrderStore()
	user := uuid.New()
	pending := store.addPending("UPGAB12CD34", user, 100000)
	rec := NewReconciler(store, noopEffect, nil, nil)
	router := newWebhookRouter(t, rec, "s3cret")

	w := postWebhook(router, "Apikey s3cret", `{"data": not json`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for malformed payload", w.Code)
	}
	if got := store.status(pending.ID); got != models.TransactionStatusPending {
		t.Fatalf("status = %q, want pending untouched", got)
	}
}

func TestWebhookProcessesBatch(t *testing.T) {
	store := newFakeOrderStore()
	user := uuid.New()
	pending := store.addPending("UPGAB12CD34", user, 100000)
	effect := newCountingEffect()
	rec := NewReconciler(store, effect.fn, nil, nil)
	router := newWebhookRouter(t, rec, "s3cret")

	body := `{"data":[
		{"description":"luong thang 8","amount":500000},
		{"description":"ck UPGAB12CD34","amount":120000}
	]}`
	w := postWebhook(router, "Apikey s3cret", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := store.status(pending.ID); got != models.TransactionStatusCompleted {
		t.Fatalf("status = %q, want completed", got)
	}
	if n := effect.count(user); n != 1 {
		t.Fatalf("effect invoked %d times, want 1", n)
	}

	// Redelivering the same batch is harmless.
	w = postWebhook(router, "Apikey s3cret", body)
	if w.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d, want 200", w.Code)
	}
	if n := effect.count(user); n != 1 {
		t.Fatalf("effect invoked %d times after redelivery, want 1", n)
	}
}
