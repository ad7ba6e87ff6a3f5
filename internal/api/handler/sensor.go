package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lukas/fieldinsights/internal/domain"
	"github.com/lukas/fieldinsights/internal/scheduler"
	"github.com/lukas/fieldinsights/internal/service"
)

// SensorHandler handles sensor reading submission endpoints.
type SensorHandler struct {
	dispatcher      *scheduler.Scheduler
	ingestService   *service.IngestService
	maxPayloadBytes int64
}

// NewSensorHandler creates a new sensor handler.
// Parameters:
//   - dispatcher: scheduler accepting asynchronous ingestion submissions.
//   - ingestService: ingest service for synchronous single-reading writes.
//   - maxPayloadBytes: upper bound on accepted CSV upload size.
// Returns:
//   - *SensorHandler: initialized handler.
func NewSensorHandler(dispatcher *scheduler.Scheduler, ingestService *service.IngestService, maxPayloadBytes int64) *SensorHandler {
	return &SensorHandler{
		dispatcher:      dispatcher,
		ingestService:   ingestService,
		maxPayloadBytes: maxPayloadBytes,
	}
}

// BulkUpload handles POST /api/v1/sensors/bulk. It accepts a multipart CSV
// file, submits an asynchronous ingestion task, and returns the task ID
// immediately with status 202.
func (h *SensorHandler) BulkUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "A CSV file upload is required",
		})
		return
	}

	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid file type. Please upload a CSV.",
		})
		return
	}

	if h.maxPayloadBytes > 0 && fileHeader.Size > h.maxPayloadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "CSV payload exceeds the maximum accepted size",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read uploaded file",
		})
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read uploaded file",
		})
		return
	}

	taskID, err := h.dispatcher.SubmitIngestion(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to submit ingestion task: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": taskID,
	})
}

// CreateReadingRequest is the body of POST /api/v1/sensors.
type CreateReadingRequest struct {
	FieldID    int       `json:"field_id" binding:"required"`
	SensorType string    `json:"sensor_type" binding:"required"`
	Value      *float64  `json:"value" binding:"required"`
	Unit       string    `json:"unit"`
	Timestamp  time.Time `json:"timestamp"`
}

// CreateReading handles POST /api/v1/sensors, ingesting a single reading
// synchronously.
func (h *SensorHandler) CreateReading(c *gin.Context) {
	var req CreateReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	reading := &domain.SensorReading{
		FieldID:    req.FieldID,
		SensorType: req.SensorType,
		Value:      *req.Value,
		Unit:       req.Unit,
		Timestamp:  req.Timestamp,
	}

	if err := h.ingestService.CreateReading(c.Request.Context(), reading); err != nil {
		status := http.StatusInternalServerError
		if taskErr, ok := err.(*domain.TaskError); ok && taskErr.Kind == domain.ErrorKindValidation {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error": "Failed to create reading: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, reading)
}
