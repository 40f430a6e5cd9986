// Package main runs the registration HTTP server with graceful shutdown.
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-lms/registration/config"
	"github.com/aura-lms/registration/internal/auth"
	"github.com/aura-lms/registration/internal/catalog"
	"github.com/aura-lms/registration/internal/drafts"
	"github.com/aura-lms/registration/internal/emaillogs"
	"github.com/aura-lms/registration/internal/metrics"
	"github.com/aura-lms/registration/internal/middleware"
	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/internal/notifications"
	"github.com/aura-lms/registration/internal/organizations"
	"github.com/aura-lms/registration/internal/privacy"
	"github.com/aura-lms/registration/internal/registrations"
	"github.com/aura-lms/registration/internal/tokens"
	"github.com/aura-lms/registration/pkg/database"
	"github.com/aura-lms/registration/pkg/queue"
	"github.com/aura-lms/registration/pkg/redis"
	"github.com/aura-lms/registration/pkg/response"
	"github.com/aura-lms/registration/pkg/storage"
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

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	codec, err := tokens.NewCodec(cfg.Registration.TokenSecret, cfg.Registration.PreviousTokenSecrets...)
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}

	var exports privacy.ObjectStore
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			exports = s3Client
		}
	}

	mx := metrics.New(prometheus.DefaultRegisterer)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth and host accounts
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	accounts := auth.NewAccounts(authRepo, logger)

	// Tenants
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo, logger)

	// Email logs and notifications
	emailLogsRepo := emaillogs.NewRepository(pool)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, jobQueue, logger)
	notificationRepo := notifications.NewRepository(pool)
	pubsub := notifications.NewRedisPubSub(rdb.Client, logger)
	notifier := notifications.NewService(emailLogsRepo, jobQueue, notificationRepo, pubsub, orgRepo,
		cfg.Registration.PublicBaseURL+"/registration?view=users", logger)
	notificationHandler := notifications.NewHandler(notificationRepo, pubsub, logger)

	// Registrations
	assessor := cfg.Registration.SystemAssessorID
	if assessor == uuid.Nil {
		assessor, err = authRepo.FirstAdminID(ctx)
		if err != nil {
			logger.Warn("no system assessor configured and no platform admin found; auto-approval stamps nil", zap.Error(err))
		}
	}
	registrationSvc := registrations.NewService(registrations.Deps{
		Store:     registrations.NewRepository(pool),
		Accounts:  accounts,
		Tenants:   orgRepo,
		Notifier:  notifier,
		Tokens:    codec,
		Drafts:    drafts.NewStore(rdb.Client, time.Duration(cfg.Registration.DraftTTLMinutes)*time.Minute, logger),
		Catalog:   catalog.NewRepository(pool),
		EmailLogs: emailLogsRepo,
		Metrics:   mx,
		Logger:    logger,
	}, registrations.Options{
		TrustedDomains: registrations.ParseDomainList(cfg.Registration.TrustedDomains),
		Retention:      time.Duration(cfg.Registration.RetentionHours) * time.Hour,
		SystemAssessor: assessor,
		PublicBaseURL:  cfg.Registration.PublicBaseURL,
		SiteName:       cfg.Registration.SiteName,
	})
	registrationHandler := registrations.NewHandler(registrationSvc, logger)

	// Privacy
	privacyHandler := privacy.NewHandler(privacy.NewService(registrations.NewRepository(pool), emailLogsRepo, exports, logger), logger)

	requireUser := middleware.JWT(jwtService)
	requireAdmin := middleware.RequireRole(models.RoleAdmin)
	views := registrations.NewViewRegistry(registrationHandler, requireUser)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health and metrics
	router.GET("/health", func(c *gin.Context) {
		if !rdb.Healthy(c.Request.Context()) || pool.Ping(c.Request.Context()) != nil {
			response.ServiceUnavailable(c, "dependencies unavailable")
			return
		}
		dead, err := jobQueue.DeadLetters(c.Request.Context())
		if err != nil {
			logger.Warn("dead letter count", zap.Error(err))
		}
		response.OK(c, gin.H{"status": "ok", "dead_letters": dead})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public registration flow
	router.GET("/registration", views.Dispatch)
	reg := router.Group("/registration")
	{
		reg.GET("/tenants", orgHandler.ListPublic)
		reg.POST("/drafts", registrationHandler.CreateDraft)
		reg.GET("/drafts/:token", registrationHandler.GetDraft)
		reg.PUT("/drafts/:token", registrationHandler.UpdateDraft)
		reg.POST("/drafts/:token/submit", registrationHandler.SubmitDraft)
		reg.POST("/resend-confirmation", registrationHandler.ResendConfirmation)
	}

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(requireUser)
	{
		api.GET("/users", requireAdmin, authHandler.List)

		// Tenant review (tenant admins see their tenants, platform admins see all)
		api.GET("/admin/registrations", registrationHandler.List)
		api.POST("/admin/registrations/:id/approve", registrationHandler.Approve)
		api.POST("/admin/registrations/:id/reject", registrationHandler.Reject)
		api.POST("/admin/registrations/:id/notify", registrationHandler.Notify)
		api.GET("/admin/registrations/:id/emails", registrationHandler.ListEmails)
		api.POST("/admin/emails/:id/resend", requireAdmin, emailLogsHandler.Resend)

		// Privacy (platform admin)
		api.POST("/admin/privacy/export", requireAdmin, privacyHandler.Export)
		api.DELETE("/admin/privacy/registrations", requireAdmin, privacyHandler.Erase)

		// In-app notifications
		api.GET("/notifications", notificationHandler.List)
		api.POST("/notifications/:id/read", notificationHandler.MarkRead)
		api.GET("/notifications/stream", notificationHandler.Stream)

		// Organizations
		api.GET("/organizations", orgHandler.ListMyOrganizations)
		api.POST("/organizations", requireAdmin, orgHandler.CreateOrganization)
		api.GET("/organizations/:id/members", orgHandler.ListMembers)
		api.POST("/organizations/:id/members", orgHandler.AddMember)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
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
