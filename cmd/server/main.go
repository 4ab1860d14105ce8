// Package main runs the community platform HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gatherhub/backend/config"
	"github.com/gatherhub/backend/internal/auth"
	"github.com/gatherhub/backend/internal/emaillogs"
	"github.com/gatherhub/backend/internal/events"
	"github.com/gatherhub/backend/internal/middleware"
	"github.com/gatherhub/backend/internal/models"
	"github.com/gatherhub/backend/internal/payments"
	"github.com/gatherhub/backend/internal/registrations"
	"github.com/gatherhub/backend/internal/sepay"
	"github.com/gatherhub/backend/internal/worker"
	"github.com/gatherhub/backend/pkg/database"
	"github.com/gatherhub/backend/pkg/queue"
	"github.com/gatherhub/backend/pkg/redis"
	"github.com/gatherhub/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth / users
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)

	// Email logs / notifications
	emailRepo := emaillogs.NewRepository(pool)
	emailHandler := emaillogs.NewHandler(emailRepo, logger)

	// Registrations
	regStore := registrations.NewRepository(pool)
	regManager := registrations.NewManager(regStore, logger)
	depositNotify := func(ctx context.Context, reg *models.Registration) {
		u, err := authRepo.GetByID(ctx, reg.UserID)
		if err != nil {
			logger.Warn("deposit notify lookup failed", zap.Error(err), zap.String("user_id", reg.UserID.String()))
			return
		}
		err = jobQueue.EnqueueNotification(ctx, queue.NotificationPayload{
			EmailType: models.EmailTypeDepositConfirmed,
			UserID:    u.ID,
			Recipient: u.Email,
			Subject:   "Your event deposit is confirmed",
		})
		if err != nil {
			logger.Warn("enqueue deposit notification failed", zap.Error(err))
		}
	}
	regHandler := registrations.NewHandler(regManager, depositNotify, logger)

	// Payments: upgrade orders reconciled against SePay bank transactions.
	// Completing an order promotes the payer to organizer inside the same
	// database transaction, then queues a notification email.
	payStore := payments.NewRepository(pool)
	targetRole := models.Role(cfg.Upgrade.TargetRole)
	if !models.ValidRole(cfg.Upgrade.TargetRole) {
		logger.Fatal("invalid upgrade target role", zap.String("role", cfg.Upgrade.TargetRole))
	}
	effect := func(ctx context.Context, uow database.DBTX, userID uuid.UUID) error {
		return authRepo.PromoteRole(ctx, uow, userID, targetRole)
	}
	notify := func(ctx context.Context, order *models.Transaction) {
		u, err := authRepo.GetByID(ctx, order.UserID)
		if err != nil {
			logger.Warn("notify lookup failed", zap.Error(err), zap.String("user_id", order.UserID.String()))
			return
		}
		err = jobQueue.EnqueueNotification(ctx, queue.NotificationPayload{
			EmailType: models.EmailTypeUpgradeCompleted,
			UserID:    u.ID,
			Recipient: u.Email,
			Subject:   "Your organizer upgrade is active",
		})
		if err != nil {
			logger.Warn("enqueue notification failed", zap.Error(err))
		}
	}
	reconciler := payments.NewReconciler(payStore, effect, notify, logger)
	webhookHandler := payments.NewWebhookHandler(reconciler, cfg.SePay.WebhookSecret, logger)
	orderHandler := payments.NewOrderHandler(payStore, cfg.Upgrade.Amount, logger)

	// Notification worker
	processor := worker.NewNotificationProcessor(emailRepo, jobQueue, nil, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/me", authHandler.Me)
		api.GET("/me/notifications", emailHandler.ListMine)

		// Events
		api.GET("/events", eventHandler.List)
		api.GET("/events/:id", eventHandler.GetByID)
		api.POST("/events", middleware.RequireRole("organizer", "admin"), eventHandler.Create)
		api.PATCH("/events/:id/status", middleware.RequireRole("organizer", "admin"), eventHandler.UpdateStatus)

		// Registrations
		api.POST("/events/:id/registrations", regHandler.Register)
		api.DELETE("/events/:id/registrations", regHandler.Cancel)
		api.GET("/events/:id/registrations/me", regHandler.MyStatus)
		api.POST("/events/:id/deposits/:userId", middleware.RequireRole("organizer", "admin"), regHandler.ConfirmDeposit)

		// Organizer upgrade orders
		api.POST("/upgrade/orders", orderHandler.CreateOrder)
		api.GET("/upgrade/orders/latest", orderHandler.LatestOrder)
	}

	// Webhooks (no JWT; shared secret validated in handler)
	router.POST("/webhooks/sepay", webhookHandler.Handle)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go processor.Run(bgCtx)
	logger.Info("notification worker started")

	// Reconciliation poller, only when the poll credential is configured.
	if cfg.SePay.APIKey != "" {
		client := sepay.NewClient(cfg.SePay.BaseURL, cfg.SePay.APIKey,
			time.Duration(cfg.SePay.RequestTimeoutSec)*time.Second, logger)
		poller := payments.NewPoller(client, reconciler,
			time.Duration(cfg.SePay.PollIntervalMin)*time.Minute,
			time.Duration(cfg.SePay.LookbackHours)*time.Hour,
			cfg.SePay.PageSize, logger)
		go poller.Run(bgCtx)
	} else {
		logger.Warn("SEPAY_API_KEY not set, reconciliation poller disabled")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	bgCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
