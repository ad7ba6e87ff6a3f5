package api

import (
	"github.com/gin-gonic/gin"
	"github.com/lukas/fieldinsights/internal/api/handler"
	"github.com/lukas/fieldinsights/internal/api/middleware"
	"github.com/lukas/fieldinsights/internal/config"
	"github.com/lukas/fieldinsights/internal/logger"
	"github.com/lukas/fieldinsights/internal/scheduler"
	"github.com/lukas/fieldinsights/internal/service"
	"github.com/lukas/fieldinsights/internal/task"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	dispatcher *scheduler.Scheduler,
	ingestService *service.IngestService,
	analyticsService *service.AnalyticsService,
	tracker *task.Tracker,
	cfg *config.Config,
	log *logger.Logger,
) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler()
	sensorHandler := handler.NewSensorHandler(dispatcher, ingestService, cfg.Ingest.MaxPayloadBytes)
	taskHandler := handler.NewTaskHandler(tracker)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Ingestion
		v1.POST("/sensors", sensorHandler.CreateReading)
		v1.POST("/sensors/bulk", sensorHandler.BulkUpload)

		// Task polling
		v1.GET("/tasks/:id", taskHandler.GetTask)

		// Analytics
		v1.GET("/analytics", analyticsHandler.GetAnalytics)
		v1.GET("/analytics/hourly", analyticsHandler.ListHourlyAggregates)
		v1.GET("/readings/chart", analyticsHandler.GetChartData)
		v1.GET("/fields", analyticsHandler.ListFields)
	}

	return r
}
