package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lukas/fieldinsights/internal/domain"
	"github.com/lukas/fieldinsights/internal/task"
)

// TaskHandler serves task state to polling clients.
type TaskHandler struct {
	tracker *task.Tracker
}

// NewTaskHandler creates a new task handler.
// Parameters:
//   - tracker: task state tracker to read from.
// Returns:
//   - *TaskHandler: initialized handler.
func NewTaskHandler(tracker *task.Tracker) *TaskHandler {
	return &TaskHandler{tracker: tracker}
}

// taskResponse is the poll response shape. Result carries the progress pair
// while the task runs and the terminal payload once it finishes.
type taskResponse struct {
	TaskID string      `json:"task_id"`
	Status string      `json:"status"`
	Result interface{} `json:"result"`
}

// GetTask handles GET /api/v1/tasks/:id. Terminal states are immutable, so
// repeated polls of a finished task always return the same result.
func (h *TaskHandler) GetTask(c *gin.Context) {
	id := c.Param("id")

	view, err := h.tracker.Get(id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Task not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to look up task",
		})
		return
	}

	c.JSON(http.StatusOK, taskResponse{
		TaskID: view.ID,
		Status: string(view.Status),
		Result: buildResult(view),
	})
}

// buildResult shapes the result payload by lifecycle stage.
func buildResult(view domain.TaskView) interface{} {
	switch view.Status {
	case domain.TaskStatusFailure:
		return gin.H{
			"error_kind":    string(view.Result.ErrorKind),
			"error_message": view.Result.ErrorMessage,
		}
	case domain.TaskStatusSuccess:
		return gin.H{
			"current": view.Progress.Current,
			"total":   view.Progress.Total,
			"status":  view.Result.Message,
		}
	default:
		return gin.H{
			"current": view.Progress.Current,
			"total":   view.Progress.Total,
		}
	}
}
