// Package task tracks the lifecycle of asynchronous ingestion tasks so that
// HTTP pollers can observe progress and terminal results. State lives in
// process memory, mirroring a result backend with a retention window rather
// than durable storage.
package task

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lukas/fieldinsights/internal/domain"
)

var (
	// ErrNotFound is returned when a task ID is unknown.
	ErrNotFound = errors.New("task not found")

	// ErrTerminal is returned when mutating a task that already reached
	// SUCCESS or FAILURE.
	ErrTerminal = errors.New("task already in terminal state")
)

// Tracker is a concurrency-safe task state store shared between the
// ingestion engine (writer) and polling clients (readers).
type Tracker struct {
	mu    sync.RWMutex
	tasks map[string]*domain.TaskView

	now func() time.Time
}

// NewTracker creates an empty tracker.
// Parameters: none.
// Returns:
//   - *Tracker: initialized tracker.
func NewTracker() *Tracker {
	return &Tracker{
		tasks: make(map[string]*domain.TaskView),
		now:   time.Now,
	}
}

// Create registers a new task in PENDING state.
// Parameters: none.
// Returns:
//   - string: unique caller-opaque task ID.
func (t *Tracker) Create() string {
	id := uuid.New().String()
	now := t.now()

	t.mu.Lock()
	t.tasks[id] = &domain.TaskView{
		ID:        id,
		Status:    domain.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.mu.Unlock()

	return id
}

// Start transitions a task to RUNNING.
// Parameters:
//   - id: task ID.
// Returns:
//   - error: ErrNotFound for unknown IDs, ErrTerminal if already finished.
func (t *Tracker) Start(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tv, err := t.mutable(id)
	if err != nil {
		return err
	}
	tv.Status = domain.TaskStatusRunning
	tv.UpdatedAt = t.now()
	return nil
}

// Update records row progress. Progress is monotonic: a current value lower
// than what is already recorded is ignored, and current is clamped to total
// once total is known.
// Parameters:
//   - id: task ID.
//   - current: rows processed so far.
//   - total: total rows in the payload.
// Returns:
//   - error: ErrNotFound for unknown IDs, ErrTerminal if already finished.
func (t *Tracker) Update(id string, current, total int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tv, err := t.mutable(id)
	if err != nil {
		return err
	}
	if current < tv.Progress.Current {
		current = tv.Progress.Current
	}
	if total > 0 && current > total {
		current = total
	}
	tv.Status = domain.TaskStatusRunning
	tv.Progress = domain.TaskProgress{Current: current, Total: total}
	tv.UpdatedAt = t.now()
	return nil
}

// Succeed transitions a task to SUCCESS with a completion message. The state
// becomes immutable afterwards.
// Parameters:
//   - id: task ID.
//   - message: human-readable completion message.
// Returns:
//   - error: ErrNotFound for unknown IDs, ErrTerminal if already finished.
func (t *Tracker) Succeed(id, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tv, err := t.mutable(id)
	if err != nil {
		return err
	}
	tv.Status = domain.TaskStatusSuccess
	tv.Result = domain.TaskResult{Message: message}
	tv.UpdatedAt = t.now()
	return nil
}

// Fail transitions a task to FAILURE with a classified error. The state
// becomes immutable afterwards.
// Parameters:
//   - id: task ID.
//   - kind: error classification.
//   - message: captured error detail.
// Returns:
//   - error: ErrNotFound for unknown IDs, ErrTerminal if already finished.
func (t *Tracker) Fail(id string, kind domain.ErrorKind, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tv, err := t.mutable(id)
	if err != nil {
		return err
	}
	tv.Status = domain.TaskStatusFailure
	tv.Result = domain.TaskResult{ErrorKind: kind, ErrorMessage: message}
	tv.UpdatedAt = t.now()
	return nil
}

// Get retrieves a snapshot of the task state. Snapshots are copies; callers
// never observe later mutations through them.
// Parameters:
//   - id: task ID.
// Returns:
//   - domain.TaskView: task snapshot.
//   - error: ErrNotFound for unknown IDs.
func (t *Tracker) Get(id string) (domain.TaskView, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tv, ok := t.tasks[id]
	if !ok {
		return domain.TaskView{}, ErrNotFound
	}
	return *tv, nil
}

// SweepTerminal evicts terminal tasks whose last update is older than the
// retention window. A zero retention disables eviction.
// Parameters:
//   - retention: how long terminal tasks stay pollable.
// Returns:
//   - int: number of tasks evicted.
func (t *Tracker) SweepTerminal(retention time.Duration) int {
	if retention <= 0 {
		return 0
	}
	cutoff := t.now().Add(-retention)

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, tv := range t.tasks {
		if tv.Status.Terminal() && tv.UpdatedAt.Before(cutoff) {
			delete(t.tasks, id)
			evicted++
		}
	}
	return evicted
}

// mutable returns the stored view for id if it can still be written.
// Callers must hold the write lock.
func (t *Tracker) mutable(id string) (*domain.TaskView, error) {
	tv, ok := t.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if tv.Status.Terminal() {
		return nil, ErrTerminal
	}
	return tv, nil
}
