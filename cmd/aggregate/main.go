package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lukas/fieldinsights/internal/config"
	"github.com/lukas/fieldinsights/internal/logger"
	"github.com/lukas/fieldinsights/internal/repository"
	"github.com/lukas/fieldinsights/internal/service"
)

// One-shot hourly aggregation run. Useful for reprocessing a window by hand:
// the job upserts per (field, sensor type, hour), so re-running is safe.
func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "fieldinsights-aggregate",
	})
	logger.SetDefaultLogger(appLogger)

	configPath := flag.String("config", "", "Path to config file")
	at := flag.String("at", "", "Aggregate the hour window preceding this RFC 3339 time instead of now")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	now := time.Now().UTC()
	if *at != "" {
		parsed, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			appLogger.WithError(err).Fatal("Invalid -at timestamp")
		}
		now = parsed.UTC()
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	readingRepo := repository.NewReadingRepository(db)
	aggregateRepo := repository.NewAggregateRepository(db)
	aggregationService := service.NewAggregationService(readingRepo, aggregateRepo, appLogger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	groups, err := aggregationService.Run(ctx, now)
	if err != nil {
		appLogger.WithError(err).Fatal("Aggregation run failed")
	}

	start, _ := service.WindowFor(now)
	appLogger.WithFields(logger.Fields{
		"window_start": start.Format(time.RFC3339),
		"groups":       groups,
	}).Info("Aggregation run finished")
}
