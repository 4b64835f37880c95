package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/photoblog/photoblog/internal/api"
	"github.com/photoblog/photoblog/internal/cache"
	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/mail"
	"github.com/photoblog/photoblog/internal/service"
	"github.com/photoblog/photoblog/internal/storage"
	"github.com/photoblog/photoblog/pkg/auth"
	"github.com/photoblog/photoblog/pkg/config"
	"github.com/photoblog/photoblog/pkg/logging"
	"github.com/photoblog/photoblog/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Photoblog API Server")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	ctx := context.Background()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()
	pages := cache.NewPostPages(redisCache, cfg.Redis.PostsTTL)

	store, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to open image store", zap.Error(err))
	}
	tokens, err := auth.NewTokenCodec(cfg.Security.SecretKey)
	if err != nil {
		logger.Fatal("Failed to create token codec", zap.Error(err))
	}
	mailer := mail.New(cfg.Mail)

	services := service.New(db.NewRepository(database.DB), service.Options{
		Security: cfg.Security,
		Tokens:   tokens,
		Store:    store,
		Pages:    pages,
	})
	if err := services.Roles.InsertRoles(ctx); err != nil {
		logger.Fatal("Failed to insert roles", zap.Error(err))
	}

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	deps := api.Deps{
		Services: services,
		Pages:    pages,
		Notifier: mailer,
		Config:   cfg,
		Database: database,
		Cache:    redisCache,
	}
	if cfg.Storage.Backend == "local" {
		deps.Uploads = cfg.Storage.UploadsDir
	}
	api.NewRouter(deps).SetupRoutes(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.Telemetry.Enabled && cfg.Telemetry.PrometheusEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Telemetry.PrometheusPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("Metrics server starting", zap.String("address", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server forced to shutdown", zap.Error(err))
		}
	}

	// Let queued account mails go out
	mailer.Wait()

	logger.Info("Server exited")
}
