package domain

import "time"

// TaskStatus represents the lifecycle state of an ingestion task.
// Values include TaskStatusPending, TaskStatusRunning, TaskStatusSuccess,
// and TaskStatusFailure. SUCCESS and FAILURE are terminal.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "PENDING"
	TaskStatusRunning TaskStatus = "RUNNING"
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusFailure TaskStatus = "FAILURE"
)

// Terminal reports whether the status is final.
// Parameters: none.
// Returns:
//   - bool: true for SUCCESS or FAILURE.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailure
}

// TaskProgress is the per-task row counter pair reported to pollers.
// Current never decreases and never exceeds Total once Total is known.
type TaskProgress struct {
	Current int64 `json:"current"`
	Total   int64 `json:"total"`
}

// TaskResult is the terminal payload of a task: a completion message on
// success, or an error kind and message on failure.
type TaskResult struct {
	Message      string    `json:"status,omitempty"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// TaskView is an immutable snapshot of a task's state as observed by a
// poller. The tracker hands out copies, never internal pointers.
type TaskView struct {
	ID        string       `json:"task_id"`
	Status    TaskStatus   `json:"status"`
	Progress  TaskProgress `json:"progress"`
	Result    TaskResult   `json:"result"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
