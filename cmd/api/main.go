package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safehaven-service/internal/config"
	"safehaven-service/internal/dispatch"
	"safehaven-service/internal/domain/account"
	"safehaven-service/internal/domain/identity"
	"safehaven-service/internal/domain/token"
	"safehaven-service/internal/domain/webhook"
	"safehaven-service/internal/handler"
	"safehaven-service/internal/middleware"
	"safehaven-service/internal/repository"
	"safehaven-service/internal/retry"
	"safehaven-service/internal/services"
	"safehaven-service/pkg/database"
	"safehaven-service/pkg/events"
	"safehaven-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Server.Environment)
	logger.SetGlobalLogger(appLogger)

	// Connect to Database
	database.Connect(cfg)

	// Run Raw Migrations (Extensions)
	if err := database.ApplyRawMigrations("migrations"); err != nil {
		log.Fatalf("Failed to apply raw migrations: %v", err)
	}

	// Run GORM AutoMigrate for Tables
	if err := database.DB.AutoMigrate(
		&webhook.EventLog{},
		&identity.Mapping{},
		&token.AccessToken{},
		&token.RefreshToken{},
		&account.SafeHaven{},
	); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}

	// Repositories
	webhookRepo := repository.NewWebhookEventRepository(database.DB)
	identityRepo := repository.NewIdentityMappingRepository(database.DB)
	tokenRepo := repository.NewTokenRepository(database.DB)
	accountRepo := repository.NewSafeHavenRepository(database.DB)

	// Services
	validator := services.NewSignatureValidator(cfg.Webhook.Secret, appLogger)
	if !validator.IsConfigured() {
		appLogger.Warnf("SAFEHAVEN_WEBHOOK_SECRET is not set, all webhook deliveries will be rejected")
	}

	idempotencySvc := services.NewIdempotencyService(webhookRepo, appLogger)
	identitySvc := services.NewIdentityService(identityRepo, appLogger)
	tokenSvc := services.NewTokenService(tokenRepo, appLogger)
	accountSvc := services.NewAccountService(accountRepo, appLogger)

	registry := services.NewHandlerRegistry(appLogger)
	services.RegisterWebhookHandlers(registry, identitySvc, tokenSvc, accountSvc, appLogger)
	router := services.NewEventRouter(registry, appLogger)

	pool := dispatch.NewPool(
		cfg.Dispatcher.MinWorkers,
		cfg.Dispatcher.MaxWorkers,
		cfg.Dispatcher.QueueCapacity,
		cfg.Dispatcher.ShutdownGrace,
		appLogger,
	)

	broker := events.NewRedisBroker(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	processingSvc := services.NewProcessingService(webhookRepo, router, pool, broker, appLogger)

	// Out-of-band retry sweep over the event log.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweeper := retry.NewSweeper(
		webhookRepo,
		processingSvc,
		cfg.Retry.MaxAttempts,
		cfg.Retry.RetryAfter,
		cfg.Retry.SweepInterval,
		cfg.Retry.BatchSize,
		cfg.Retry.StaleThreshold,
		appLogger,
	)
	sweeper.Start(sweepCtx)

	// HTTP
	if cfg.Server.Environment == logger.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(appLogger))

	webhookHandler := handler.NewWebhookHandler(validator, idempotencySvc, processingSvc, identitySvc, cfg.Webhook, appLogger)
	accountHandler := handler.NewAccountHandler(accountSvc)

	api := r.Group("/api/v1")
	{
		webhooks := api.Group("/safehaven/webhooks")
		{
			webhooks.POST("", webhookHandler.Receive)
			webhooks.GET("/health", webhookHandler.Health)
		}

		accounts := api.Group("/safehavens")
		{
			accounts.POST("", accountHandler.Create)
			accounts.GET("", accountHandler.List)
			accounts.GET("/:id", accountHandler.Get)
			accounts.PUT("/:id", accountHandler.Update)
			accounts.POST("/:id/suspend", accountHandler.Suspend)
			accounts.POST("/:id/activate", accountHandler.Activate)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		appLogger.Infof("starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Infof("shutting down")

	// Stop taking requests, stop the sweep, then drain in-flight processing.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("server shutdown error: %v", err)
	}
	stopSweep()
	pool.Shutdown()
	appLogger.Infof("shutdown complete")
}
