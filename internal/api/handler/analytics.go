package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lukas/fieldinsights/internal/domain"
	"github.com/lukas/fieldinsights/internal/service"
)

// AnalyticsHandler serves aggregated statistics and chart data.
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler.
// Parameters:
//   - analyticsService: analytics service instance.
// Returns:
//   - *AnalyticsHandler: initialized handler.
func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// GetAnalytics handles GET /api/v1/analytics. A range with zero matching
// readings is a 404, not a zero-valued result.
func (h *AnalyticsHandler) GetAnalytics(c *gin.Context) {
	fieldID, err := strconv.Atoi(c.Query("field_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "field_id must be an integer",
		})
		return
	}

	sensorType := c.Query("sensor_type")
	if sensorType == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "sensor_type is required",
		})
		return
	}

	start, ok := parseTimeQuery(c, "start")
	if !ok {
		return
	}
	end, ok := parseTimeQuery(c, "end")
	if !ok {
		return
	}

	stats, err := h.analyticsService.GetAnalytics(c.Request.Context(), fieldID, sensorType, start, end)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No data found for the specified criteria",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to query analytics: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"min":   stats.MinValue,
		"max":   stats.MaxValue,
		"avg":   stats.AvgValue,
		"count": stats.ReadingCount,
	})
}

// GetChartData handles GET /api/v1/readings/chart.
func (h *AnalyticsHandler) GetChartData(c *gin.Context) {
	fieldID, _ := strconv.Atoi(c.DefaultQuery("field_id", "1"))
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))

	points, err := h.analyticsService.GetChartData(c.Request.Context(), fieldID, hours)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to build chart data: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, points)
}

// ListFields handles GET /api/v1/fields.
func (h *AnalyticsHandler) ListFields(c *gin.Context) {
	fields, err := h.analyticsService.ListFields(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list fields: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, fields)
}

// ListHourlyAggregates handles GET /api/v1/analytics/hourly, exposing the
// stored output of the recurring aggregation job.
func (h *AnalyticsHandler) ListHourlyAggregates(c *gin.Context) {
	fieldID, err := strconv.Atoi(c.Query("field_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "field_id must be an integer",
		})
		return
	}

	sensorType := c.Query("sensor_type")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	aggregates, err := h.analyticsService.ListHourlyAggregates(c.Request.Context(), fieldID, sensorType, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list hourly aggregates: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, aggregates)
}

// parseTimeQuery reads an optional RFC 3339 query parameter. The bool result
// is false when the handler already wrote an error response.
func parseTimeQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": name + " must be an RFC 3339 timestamp",
		})
		return time.Time{}, false
	}
	return ts.UTC(), true
}
