package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lukas/fieldinsights/internal/api"
	"github.com/lukas/fieldinsights/internal/config"
	"github.com/lukas/fieldinsights/internal/logger"
	"github.com/lukas/fieldinsights/internal/notify"
	"github.com/lukas/fieldinsights/internal/repository"
	"github.com/lukas/fieldinsights/internal/scheduler"
	"github.com/lukas/fieldinsights/internal/service"
	"github.com/lukas/fieldinsights/internal/storage"
	"github.com/lukas/fieldinsights/internal/task"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.GetDefault().WithError(err).Fatal("Failed to load config")
	}

	// Initialize logger
	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "fieldinsights",
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
	})
	logger.SetDefaultLogger(appLogger)

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	fieldRepo := repository.NewFieldRepository(db)
	readingRepo := repository.NewReadingRepository(db)
	aggregateRepo := repository.NewAggregateRepository(db)

	// Initialize task tracker
	tracker := task.NewTracker()

	// Initialize optional payload archive
	var archive storage.PayloadArchive
	if cfg.Archive.Enabled {
		s3Archive, err := storage.NewS3Archive(&storage.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize payload archive")
		}
		if err := s3Archive.EnsureBucket(context.Background()); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure archive bucket")
		}
		archive = s3Archive
	}

	// Initialize optional webhook notifier
	var notifier scheduler.TaskNotifier
	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		notifier = notify.NewWebhookNotifier(&notify.WebhookConfig{
			URL:     cfg.Webhook.URL,
			Timeout: cfg.Webhook.Timeout,
		}, appLogger)
	}

	// Initialize services
	ingestService := service.NewIngestService(fieldRepo, readingRepo, tracker, appLogger)
	aggregationService := service.NewAggregationService(readingRepo, aggregateRepo, appLogger)
	analyticsService := service.NewAnalyticsService(fieldRepo, readingRepo, aggregateRepo, appLogger)

	// Initialize scheduler and start the recurring aggregation job
	dispatcher := scheduler.NewScheduler(
		ingestService,
		aggregationService,
		tracker,
		archive,
		notifier,
		appLogger,
		scheduler.Config{
			AggregationInterval: cfg.Aggregation.Interval,
			TaskRetention:       cfg.Aggregation.TaskRetention,
		},
	)
	dispatcher.Start()

	// Setup router
	router := api.SetupRouter(dispatcher, ingestService, analyticsService, tracker, cfg, appLogger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Drain HTTP first so no new tasks arrive, then stop background work
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	dispatcher.Stop()

	appLogger.Info("Server exited")
}
