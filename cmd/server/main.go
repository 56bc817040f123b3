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

	"safecircle/internal/config"
	handlers "safecircle/internal/handlers/shared"
	"safecircle/internal/middleware"
	"safecircle/internal/repositories/interfaces"
	"safecircle/internal/repositories/memory"
	"safecircle/internal/repositories/mongodb"
	"safecircle/internal/services"
	"safecircle/internal/utils"
	"safecircle/pkg/cache"
	"safecircle/pkg/database"
	"safecircle/pkg/email"
	"safecircle/pkg/logger"
	"safecircle/pkg/metrics"
	"safecircle/pkg/websocket"
	"safecircle/pkg/worker"
	"safecircle/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
		Output:  "stdout",
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New("safecircle")

	appCache, err := cache.New(cfg.Redis)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer appCache.Close()

	checks := map[string]handlers.Pinger{}
	if redisCache, ok := appCache.(*cache.RedisCache); ok {
		checks["redis"] = redisCache
	}

	// Storage
	var store *interfaces.Store
	switch cfg.Database.Driver {
	case config.DriverMemory:
		appLogger.Warn("Using in-memory storage; data is lost on restart")
		store = memory.NewStore()
	default:
		db, err := database.NewMongoDB(cfg.Database)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to connect to MongoDB")
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err = database.NewMigrator(db.Database, appLogger).Up(migrateCtx)
		cancel()
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to run migrations")
		}

		store = mongodb.NewStore(db.Database, appCache, cfg.Redis.AlertTTL, m)
		checks["mongodb"] = db
	}

	// Background work and live fan-out
	pool := worker.NewPool(worker.Config{
		Workers:     cfg.Worker.Workers,
		QueueSize:   cfg.Worker.QueueSize,
		TaskTimeout: cfg.Worker.TaskTimeout,
	}, appLogger)
	pool.SetObserver(m.TaskFinished)

	registry := websocket.NewRegistry(cfg.WebSocket.ShardCount, appLogger)
	registry.SetObserver(m)
	live := websocket.NewHandler(registry, cfg.WebSocket, appLogger)

	mailer := email.NewSender(cfg.SMTP, appLogger)
	tokens := utils.NewTokenAuthority(cfg.Security.ShareTokenSecret)

	var verifier middleware.SubjectVerifier
	if cfg.Security.JWKSURL != "" {
		keys := utils.SharedJWKSCache(cfg.Security.JWKSURL, cfg.Security.JWKSFreshness)
		verifier = utils.NewIdentityVerifier(keys, cfg.Security.IdentityIssuer)
	}

	// Initialize services
	alertService := services.NewAlertService(cfg, store, tokens, registry, pool, mailer, m, appLogger)
	contactService := services.NewContactService(cfg, store, tokens, pool, mailer, m, appLogger)

	// Initialize handlers
	alertHandler := handlers.NewAlertHandler(alertService)
	publicHandler := handlers.NewPublicHandler(alertService, live)
	contactHandler := handlers.NewContactHandler(contactService)
	healthHandler := handlers.NewHealthHandler(cfg.App.Version, checks)

	limitStore, err := middleware.NewRateLimitStore(appCache)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to create rate limit store")
	}

	// Initialize Gin router
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodyLimit(utils.RequestBodyMaxSize))
	router.Use(m.Middleware())

	senderAuth := middleware.SenderAuth(verifier, cfg.Security.AuthRequired, appLogger)
	rateLimit := middleware.RateLimit(limitStore, cfg.Security.RateLimitPerMinute, appLogger)

	routes.SetupAlertRoutes(router, alertHandler, senderAuth)
	routes.SetupPublicRoutes(router, publicHandler, rateLimit)
	routes.SetupContactRoutes(router, contactHandler, senderAuth, rateLimit)
	routes.SetupSystemRoutes(router, healthHandler, m.Handler())

	// Start server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Infof("Starting server on port %d", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("Server shutdown failed")
	}
	if err := pool.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Warn("Background tasks did not drain")
	}
}
